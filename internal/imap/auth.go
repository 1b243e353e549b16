package imap

import (
	"context"
	"encoding/base64"
	"errors"

	"inbox-unsubscriber/internal/credential"

	"github.com/emersion/go-sasl"
)

// Authenticatee is the part of an IMAP connection an Authenticator drives.
type Authenticatee interface {
	Login(username, password string) error
	Authenticate(auth sasl.Client) error
}

// Authenticator logs an open connection in.
type Authenticator interface {
	Authenticate(ctx context.Context, conn Authenticatee, address string) error
}

// PasswordAuthenticator uses the LOGIN command
type PasswordAuthenticator struct {
	Password string
}

func (a PasswordAuthenticator) Authenticate(_ context.Context, conn Authenticatee, address string) error {
	if a.Password == "" {
		return errors.New("no password provided for password authentication")
	}
	return conn.Login(address, a.Password)
}

// OAuthAuthenticator uses SASL XOAUTH2 with a bearer token from Tokens
type OAuthAuthenticator struct {
	Tokens credential.TokenProvider
}

// TokenError wraps a failure to obtain an access token before talking to the server
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string { return "oauth token unavailable: " + e.Err.Error() }
func (e *TokenError) Unwrap() error { return e.Err }

func (a OAuthAuthenticator) Authenticate(ctx context.Context, conn Authenticatee, address string) error {
	if a.Tokens == nil {
		return &TokenError{Err: errors.New("no token provider")}
	}
	token, err := a.Tokens.AccessToken(ctx)
	if err != nil {
		return &TokenError{Err: err}
	}
	return conn.Authenticate(NewXOAuth2(address, token))
}

type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2 returns a sasl.Client for the XOAUTH2 mechanism.
func NewXOAuth2(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	return "XOAUTH2", xoauth2Response(c.username, c.token), nil
}

// Next answers the error challenge a server sends after a rejected token
// with an empty response so that it finishes with a tagged NO.
func (c *xoauth2Client) Next(_ []byte) ([]byte, error) {
	return []byte{}, nil
}

func xoauth2Response(username, token string) []byte {
	return []byte("user=" + username + "\x01auth=Bearer " + token + "\x01\x01")
}

// XOAuth2String is the base64 initial response as it appears on the wire
func XOAuth2String(username, token string) string {
	return base64.StdEncoding.EncodeToString(xoauth2Response(username, token))
}
