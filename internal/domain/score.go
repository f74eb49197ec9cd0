package domain

// ScoreResult is the scorer's verdict for one event. Heat is display only.
type ScoreResult struct {
	Pass     bool
	Strategy string // strategy name that produced the verdict
	Tag      string // matched rule, empty when the strategy has none
	Heat     int    // 1..10
}
