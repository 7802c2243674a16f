// Package market standardizes payloads shared between ingestion, storage, and analytics layers.
package market

// Tick models a single executed trade event.
// Timestamp is seconds since the Unix epoch (fractional part carries sub-second precision).
type Tick struct {
	Timestamp float64 `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
}

// Bar holds one OHLCV bucket. Timestamp is the bucket start in epoch seconds.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	VWAP      float64 `json:"vwap"`
}

// Closes extracts the close column of a bar series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
