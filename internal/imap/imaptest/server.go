// Package imaptest runs an in-memory IMAP server for tests.
package imaptest

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"inbox-unsubscriber/internal/provider"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// Credentials accepted by the in-memory backend
const (
	Username = "username"
	Password = "password"
)

type Server struct {
	Host string
	Port int

	srv *server.Server
}

// NewServer starts a plaintext server whose INBOX holds exactly messages, in
// order. It is shut down when the test ends.
func NewServer(t testing.TB, messages ...string) *Server {
	t.Helper()

	be := memory.New()
	user, err := be.Login(nil, Username, Password)
	if err != nil {
		t.Fatalf("memory backend login: %v", err)
	}
	mbox, err := user.GetMailbox("INBOX")
	if err != nil {
		t.Fatalf("memory backend inbox: %v", err)
	}
	inbox := mbox.(*memory.Mailbox)
	inbox.Messages = nil
	date := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, raw := range messages {
		if err := inbox.CreateMessage(nil, date.Add(time.Duration(i)*time.Minute), bytes.NewBufferString(raw)); err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := server.New(be)
	s.AllowInsecureAuth = true
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return &Server{Host: addr.IP.String(), Port: addr.Port, srv: s}
}

// Close stops listening and drops every open connection, as a server crash
// would.
func (s *Server) Close() error {
	return s.srv.Close()
}

// Params are the connection parameters pointing at the server
func (s *Server) Params() provider.ConnectionParameters {
	return provider.CustomProvider{Host: s.Host, Port: s.Port}
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Custom is the override an account config would carry for this server
func (s *Server) Custom() *provider.Custom {
	return &provider.Custom{Host: s.Host, Port: s.Port}
}

// Dial opens a plaintext connection. It satisfies imap.DialFunc.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*client.Client, error) {
	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return client.New(conn)
}
