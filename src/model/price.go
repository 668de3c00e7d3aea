package model

import "time"

// Bar is one completed OHLC candle built from mid prices.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Tick is one raw bid/ask quote.
type Tick struct {
	Timestamp time.Time `json:"timestamp"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2.0
}

// Spread returns the quoted spread in points.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}
