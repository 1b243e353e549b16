package imap

import (
	"errors"
	"fmt"
)

// AuthenticationError means the server rejected the credentials. Help holds
// the provider specific remediation text.
type AuthenticationError struct {
	Provider string
	Help     string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return e.Help
	}
	return fmt.Sprintf("%s (%v)", e.Help, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConnectionError is any transport or protocol failure other than a
// credential rejection
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("IMAP %s error: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError is a failure to retrieve one message over a session that is
// still usable
type FetchError struct {
	UID uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch UID %d: %v", e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAuthenticationError reports whether err (or any error in its chain) is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsConnectionError reports whether err (or any error in its chain) is a ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

var (
	errNotConnected = errors.New("not connected")
	errNoMessage    = errors.New("no message retrieved")
	errNoBody       = errors.New("no body returned")
)
