package model

import (
	"math"
	"strconv"
)

// Series is an indicator output aligned index-for-index with the candle snapshot
// it was computed from. NaN marks "not yet computable".
type Series []float64

// Last returns the final value, or NaN for an empty series.
func (s Series) Last() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// Defined returns the number of non-NaN entries.
func (s Series) Defined() int {
	n := 0
	for _, v := range s {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MarshalJSON encodes NaN and ±Inf as null, since JSON has no representation for them.
func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(s)*12)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = AppendFloat(buf, v)
	}
	buf = append(buf, ']')
	return buf, nil
}

// AppendFloat appends v in JSON form, writing null for NaN/Inf.
func AppendFloat(buf []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(buf, "null"...)
	}
	return strconv.AppendFloat(buf, v, 'f', -1, 64)
}

// Value is a single float that marshals NaN as null.
type Value float64

func (v Value) MarshalJSON() ([]byte, error) {
	return AppendFloat(nil, float64(v)), nil
}
