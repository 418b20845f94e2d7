package model

// Decision is the single outcome of one atomic commit round. Timestamp is only meaningful
// when Commit is true.
type Decision struct {
	Commit    bool  `json:"commit"`
	Timestamp int64 `json:"timestamp"`
}
