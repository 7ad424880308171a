package klinesim

import (
	"strconv"
	"strings"
	"time"
)

type frame struct {
	Stream string `json:"stream"`
	Data   event  `json:"data"`
}

type event struct {
	Type   string `json:"e"`
	Time   int64  `json:"E"`
	Symbol string `json:"s"`
	Kline  kline  `json:"k"`
}

type kline struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

func (s *Server) frame(symbol string, b bar, closed bool) frame {
	upper := strings.ToUpper(symbol)
	return frame{
		Stream: symbol + "@kline_" + s.cfg.Interval,
		Data: event{
			Type:   "kline",
			Time:   time.Now().UnixMilli(),
			Symbol: upper,
			Kline: kline{
				OpenTime:  b.openTime.UnixMilli(),
				CloseTime: b.openTime.Add(s.cfg.BarPeriod).UnixMilli() - 1,
				Symbol:    upper,
				Interval:  s.cfg.Interval,
				Open:      decimal(b.o),
				Close:     decimal(b.c),
				High:      decimal(b.h),
				Low:       decimal(b.l),
				Volume:    decimal(b.v),
				Closed:    closed,
			},
		},
	}
}

// decimal quotes prices the way the exchange does.
func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}
