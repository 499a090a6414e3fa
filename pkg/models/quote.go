package models

// Quote is the snapshot of one instrument after a price step
type Quote struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Trend      float64 `json:"trend"`      // fractional delta of the last step
	Timestamp  int64   `json:"timestamp"`  // unix milli
	Generation uint64  `json:"generation"` // tick that produced it, 0 before the first step
}
