package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	imapclient "inbox-unsubscriber/internal/imap"
	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/provider"
	"inbox-unsubscriber/internal/scan"
)

const failureSleepDuration = 30 * time.Minute

// watch scans every account once per refresh interval until ctx is done,
// one goroutine per account
func (a *app) watch(ctx context.Context, accounts []configuredAccount) {
	var wg sync.WaitGroup
	for _, ca := range accounts {
		ca := ca
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watchAccount(ctx, ca)
		}()
	}
	wg.Wait()
}

func (a *app) watchAccount(ctx context.Context, ca configuredAccount) {
	log := logging.ForAccount(ca.cfg.Email)
	var failures atomic.Int32

	for {
		records, err := a.scanOne(ctx, ca)
		switch {
		case err == nil:
			failures.Store(0)
			found := 0
			for _, r := range records {
				if r.HasLocator() {
					found++
				}
			}
			log.Infof("Scan found %d new messages, %d with an unsubscribe locator", len(records), found)
		case ctx.Err() != nil:
			return
		case provider.IsUnsupportedProvider(err), imapclient.IsAuthenticationError(err):
			// retrying cannot fix these
			log.Errorf("Giving up on account: %v", err)
			return
		case imapclient.IsConnectionError(err):
			if !sleep(ctx, handleIMAPFailure(&failures, err)) {
				return
			}
		case errors.Is(err, scan.ErrScanInProgress):
			log.Warn("Previous scan still running, skipping this round")
		default:
			log.Errorf("Scan failed: %v", err)
		}

		if !sleep(ctx, a.cfg.Scan.RefreshTime) {
			return
		}
	}
}

// handleIMAPFailure increments the failure count and returns how long to
// back off, growing exponentially from the fifth consecutive failure
func handleIMAPFailure(failures *atomic.Int32, err error) time.Duration {
	n := failures.Add(1)
	logging.Log.Errorf("IMAP connection error: %v", err)
	backoff := backoffFor(n)
	if backoff > 0 {
		logging.Log.Warnf("IMAP failed %d times, waiting %s before next attempt", n, backoff)
	}
	return backoff
}

func backoffFor(failures int32) time.Duration {
	if failures < 5 {
		return 0
	}
	base := 5 * time.Minute
	maxSteps := int32(10)

	n := failures - 5
	if n > maxSteps {
		n = maxSteps
	}

	backoff := base * time.Duration(1<<n)
	if backoff > failureSleepDuration {
		backoff = failureSleepDuration
	}
	return backoff
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
