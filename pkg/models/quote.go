package models

// Quote is a point-in-time view of one symbol's simulated book
type Quote struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
	Price    float64 `json:"price"`  // mid: (bid+ask)/2
	Spread   float64 `json:"spread"` // ask-bid, negative when crossed
	Volume   int     `json:"volume"`
	Share    int     `json:"share"`
}

// QuoteTick is a Quote as it travels through Kafka and Redis
type QuoteTick struct {
	Quote
	Timestamp int64 `json:"timestamp"` // unix micro
	SeqID     int64 `json:"seq_id"`    // monotonic counter per symbol within an epoch
	Epoch     int64 `json:"epoch"`     // producer start, unix micro; seq_id restarts with it
}
