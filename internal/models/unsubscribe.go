package models

// AttemptState is the state of a single unsubscribe attempt. An attempt starts
// Pending and ends in exactly one terminal state; it is never retried.
type AttemptState int

const (
	AttemptPending AttemptState = iota
	AttemptSucceeded
	AttemptFailed
)

func (s AttemptState) String() string {
	switch s {
	case AttemptSucceeded:
		return "succeeded"
	case AttemptFailed:
		return "failed"
	default:
		return "pending"
	}
}

// UnsubscribeResult is the outcome of one unsubscribe attempt
type UnsubscribeResult struct {
	Locator string       `yaml:"locator" json:"locator"`
	State   AttemptState `yaml:"-" json:"-"`
	Success bool         `yaml:"success" json:"success"`
	Reason  string       `yaml:"reason,omitempty" json:"reason,omitempty"`
}
