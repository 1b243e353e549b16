package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"inbox-unsubscriber/internal/models"
	"inbox-unsubscriber/internal/provider"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// DefaultTimeout bounds dialing and every command on the connection
const DefaultTimeout = 30 * time.Second

// DialFunc opens a connection to addr
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) (*client.Client, error)

type contextDialer struct {
	ctx context.Context
	*net.Dialer
}

func (d contextDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(d.ctx, network, addr)
}

// DialTLS opens an implicit TLS connection, the way every supported provider listens on 993
func DialTLS(ctx context.Context, addr string, timeout time.Duration) (*client.Client, error) {
	return client.DialWithDialerTLS(contextDialer{ctx, &net.Dialer{Timeout: timeout}}, addr, nil)
}

type StandardClient struct {
	client  *client.Client
	timeout time.Duration
	dial    DialFunc
	params  provider.ConnectionParameters

	folder      string
	uidValidity uint32
}

// NewStandardClient creates a new StandardClient that dials over TLS with a default timeout of 30 seconds
func NewStandardClient() *StandardClient {
	return NewStandardClientWithDialer(DialTLS, DefaultTimeout)
}

// NewStandardClientWithDialer creates a StandardClient with a custom dial function, used for plain connections in tests
func NewStandardClientWithDialer(dial DialFunc, timeout time.Duration) *StandardClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StandardClient{
		timeout: timeout,
		dial:    dial,
	}
}

// Connect opens the connection described by params. Any failure is a ConnectionError.
func (c *StandardClient) Connect(ctx context.Context, params provider.ConnectionParameters) error {
	if params == nil {
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("no connection parameters")}
	}
	cl, err := c.dial(ctx, params.Addr(), c.timeout)
	if err != nil {
		return &ConnectionError{Op: "connect", Err: err}
	}
	cl.Timeout = c.timeout
	c.client = cl
	c.params = params
	return nil
}

// Authenticate logs in as address. Rejections the provider recognises become an
// AuthenticationError carrying its help text, everything else a ConnectionError.
func (c *StandardClient) Authenticate(ctx context.Context, address string, auth Authenticator) error {
	if c.client == nil {
		return &ConnectionError{Op: "authenticate", Err: errNotConnected}
	}
	err := auth.Authenticate(ctx, c.client, address)
	if err == nil {
		return nil
	}
	return classifyAuthError(c.params, err)
}

func classifyAuthError(params provider.ConnectionParameters, err error) error {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return &AuthenticationError{Provider: params.Label(), Help: params.HelpText(), Err: err}
	}
	if params.IsAuthFailure(err.Error()) {
		return &AuthenticationError{Provider: params.Label(), Help: params.HelpText(), Err: err}
	}
	return &ConnectionError{Op: "authenticate", Err: err}
}

// SelectMailbox opens name read-only and returns its UIDVALIDITY.
func (c *StandardClient) SelectMailbox(name string) (uint32, error) {
	if c.client == nil {
		return 0, &ConnectionError{Op: "select", Err: errNotConnected}
	}
	if name == "" {
		name = DefaultFolder
	}
	status, err := c.client.Select(name, true)
	if err != nil {
		return 0, &ConnectionError{Op: "select", Err: fmt.Errorf("mailbox %q: %w", name, err)}
	}
	c.folder = name
	c.uidValidity = status.UidValidity
	return status.UidValidity, nil
}

// ListMessages returns the UIDs of every message in the selected folder, ascending.
func (c *StandardClient) ListMessages() ([]uint32, error) {
	if c.client == nil {
		return nil, &ConnectionError{Op: "search", Err: errNotConnected}
	}
	uids, err := c.client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, &ConnectionError{Op: "search", Err: err}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// CountMatching returns how many messages in the selected folder match criteria.
func (c *StandardClient) CountMatching(criteria *imap.SearchCriteria) (int, error) {
	if c.client == nil {
		return 0, &ConnectionError{Op: "search", Err: errNotConnected}
	}
	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return 0, &ConnectionError{Op: "search", Err: err}
	}
	return len(uids), nil
}

// FetchRaw retrieves the full RFC 822 bytes of the message with the given UID.
// BODY.PEEK is used so the message keeps its \Seen state.
func (c *StandardClient) FetchRaw(uid uint32) (*models.RawMessage, error) {
	if c.client == nil {
		return nil, &ConnectionError{Op: "fetch", Err: errNotConnected}
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	if err := <-done; err != nil {
		if c.sessionLost(err) {
			return nil, &ConnectionError{Op: "fetch", Err: fmt.Errorf("UID %d: %w", uid, err)}
		}
		return nil, &FetchError{UID: uid, Err: err}
	}
	if msg == nil {
		return nil, &FetchError{UID: uid, Err: errNoMessage}
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, &FetchError{UID: uid, Err: errNoBody}
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{UID: uid, Err: err}
	}

	return &models.RawMessage{
		Key:          models.MessageKey{Folder: c.folder, UIDValidity: c.uidValidity, UID: uid},
		InternalDate: msg.InternalDate,
		Body:         raw,
	}, nil
}

// sessionLost tells a dead connection apart from a NO or BAD answer about a
// single message.
func (c *StandardClient) sessionLost(err error) bool {
	select {
	case <-c.client.LoggedOut():
		return true
	default:
	}
	if c.client.State() == imap.LogoutState {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// Close logs out and drops the connection. Calling it again is a no-op.
func (c *StandardClient) Close() error {
	if c.client == nil {
		return nil
	}
	cl := c.client
	c.client = nil
	if err := cl.Logout(); err != nil {
		_ = cl.Terminate()
		return err
	}
	return nil
}
