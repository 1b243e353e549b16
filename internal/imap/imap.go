package imap

import (
	"context"

	"inbox-unsubscriber/internal/models"
	"inbox-unsubscriber/internal/provider"

	"github.com/emersion/go-imap"
)

// DefaultFolder is scanned when a request names no folder
const DefaultFolder = "INBOX"

// Client is one IMAP session. Commands are issued strictly one after the
// other; a Client must not be shared between goroutines or scans.
type Client interface {
	Connect(ctx context.Context, params provider.ConnectionParameters) error
	Authenticate(ctx context.Context, address string, auth Authenticator) error
	SelectMailbox(name string) (uint32, error)
	ListMessages() ([]uint32, error)
	// FetchRaw returns a *FetchError when only that message is affected and a
	// *ConnectionError when the session is gone.
	FetchRaw(uid uint32) (*models.RawMessage, error)
	CountMatching(criteria *imap.SearchCriteria) (int, error)
	Close() error
}
