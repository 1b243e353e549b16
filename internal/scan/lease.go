package scan

import (
	"errors"
	"strings"
	"sync"
)

// ErrScanInProgress is returned when a scan for the same account is already running
var ErrScanInProgress = errors.New("a scan is already in progress for this account")

type leases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func accountKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (l *leases) acquire(address string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	key := accountKey(address)
	if _, busy := l.held[key]; busy {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *leases) release(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, accountKey(address))
}
