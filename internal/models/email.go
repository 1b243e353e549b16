package models

import (
	"fmt"
	"time"
)

// MessageKey identifies one message inside one folder state. UIDs are only
// meaningful together with the folder's UIDVALIDITY.
type MessageKey struct {
	Folder      string
	UIDValidity uint32
	UID         uint32
}

// String returns the cache key form of the message key.
func (k MessageKey) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Folder, k.UIDValidity, k.UID)
}

// RawMessage is a fetched, not yet parsed, RFC 822 message
type RawMessage struct {
	Key          MessageKey
	InternalDate time.Time
	Body         []byte
}

// Email represents a normalized parsed email message
type Email struct {
	Key                 MessageKey
	From                string
	FromAddress         string
	FromName            string
	Subject             string
	Date                time.Time
	InternalDate        time.Time
	MessageID           string
	ListUnsubscribe     string
	ListUnsubscribePost string
	GmailLabels         string
	HTMLBody            string
	TextBody            string
	TraceID             string
}
