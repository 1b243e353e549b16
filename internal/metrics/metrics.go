package metrics

import (
	"net/http"
	"time"
)

// Metrics is what the scanner and the unsubscribe executor report to.
type Metrics interface {
	ServePrometheus() http.Handler

	ScanFinished(account, outcome string, took time.Duration)
	MessageScanned(account, origin string)
	FetchFailed(account string)
	ExtractionFailed(account string)
	UnsubscribeAttempt(method, state string)
}

// Scan outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Nop discards everything
type Nop struct{}

func (Nop) ServePrometheus() http.Handler {
	return http.NotFoundHandler()
}

func (Nop) ScanFinished(string, string, time.Duration) {}
func (Nop) MessageScanned(string, string)              {}
func (Nop) FetchFailed(string)                         {}
func (Nop) ExtractionFailed(string)                    {}
func (Nop) UnsubscribeAttempt(string, string)          {}
