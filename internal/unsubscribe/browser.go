package unsubscribe

import "context"

// BrowserResult is what a browser visit of an unsubscribe page ended with
type BrowserResult int

const (
	// BrowserConfirmed means a confirm or unsubscribe control was clicked
	BrowserConfirmed BrowserResult = iota
	// BrowserLoaded means the page loaded but offered nothing to click
	BrowserLoaded
	BrowserFailed
)

func (r BrowserResult) String() string {
	switch r {
	case BrowserConfirmed:
		return "confirmed"
	case BrowserLoaded:
		return "loaded"
	default:
		return "failed"
	}
}

type Browser interface {
	OpenUnsubscribePage(ctx context.Context, link string, traceID string) (BrowserResult, error)
}
