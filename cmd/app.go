package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"inbox-unsubscriber/internal/cache"
	"inbox-unsubscriber/internal/config"
	"inbox-unsubscriber/internal/credential"
	imapclient "inbox-unsubscriber/internal/imap"
	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/metrics"
	"inbox-unsubscriber/internal/models"
	"inbox-unsubscriber/internal/provider"
	"inbox-unsubscriber/internal/scan"

	"github.com/jmoiron/sqlx"
)

type app struct {
	cfg     *models.Config
	metrics metrics.Metrics
	scanner *scan.Scanner
	// out receives results; logs go elsewhere
	out io.Writer

	dbMu sync.Mutex
	db   *sqlx.DB
}

// configuredAccount pairs an account config with its position, which names
// its password environment variable
type configuredAccount struct {
	index int
	cfg   models.AccountConfig
}

func newApp(cfg *models.Config, m metrics.Metrics) *app {
	return &app{
		cfg:     cfg,
		metrics: m,
		scanner: newScanner(cfg, m),
		out:     os.Stdout,
	}
}

func (a *app) close() {
	a.dbMu.Lock()
	defer a.dbMu.Unlock()
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

func (a *app) selectAccounts(address string) ([]configuredAccount, error) {
	if len(a.cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured")
	}
	var out []configuredAccount
	for i, acct := range a.cfg.Accounts {
		if address == "" || strings.EqualFold(acct.Email, address) {
			out = append(out, configuredAccount{index: i, cfg: acct})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("account %s is not configured", address)
	}
	return out, nil
}

// scanAccount turns the configuration of one mailbox into what the scanner needs
func scanAccount(ctx context.Context, ca configuredAccount) (scan.Account, error) {
	acct := scan.Account{Address: ca.cfg.Email}
	if ca.cfg.IMAP != nil {
		acct.Custom = &provider.Custom{Host: ca.cfg.IMAP.Host, Port: ca.cfg.IMAP.Port}
	}

	if ca.cfg.OAuth != nil {
		tokens, err := credential.NewTokenProvider(ctx, ca.cfg.OAuth)
		if err != nil {
			return acct, fmt.Errorf("%s: %w", ca.cfg.Email, err)
		}
		acct.Auth = imapclient.OAuthAuthenticator{Tokens: tokens}
		return acct, nil
	}

	password, err := credential.ResolvePassword(ca.cfg, ca.index)
	if err != nil {
		return acct, err
	}
	acct.Auth = imapclient.PasswordAuthenticator{Password: password}
	return acct, nil
}

func (a *app) openCache(ctx context.Context, address string) (*cache.ProcessedCache, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		a.dbMu.Lock()
		if a.db == nil {
			db, err := cache.OpenSQLite(a.cfg.Cache.Path)
			if err != nil {
				a.dbMu.Unlock()
				return nil, err
			}
			a.db = db
		}
		db := a.db
		a.dbMu.Unlock()
		return cache.Open(ctx, cache.NewSQLiteStore(db, strings.ToLower(address)))
	default:
		return cache.Open(ctx, cache.NewFileStore(cache.AccountPath(a.cfg.Cache.Path, address)))
	}
}

// scanOne runs a single scan of one account with its configured folder and limit
func (a *app) scanOne(ctx context.Context, ca configuredAccount) ([]models.SubscriptionRecord, error) {
	acct, err := scanAccount(ctx, ca)
	if err != nil {
		return nil, err
	}
	processed, err := a.openCache(ctx, ca.cfg.Email)
	if err != nil {
		return nil, err
	}
	return a.scanner.Scan(ctx, acct, scan.Request{Folder: ca.cfg.Folder, Limit: ca.cfg.Limit}, processed)
}

func (a *app) runScan(ctx context.Context, accounts []configuredAccount, format string) error {
	var all []models.SubscriptionRecord
	for _, ca := range accounts {
		records, err := a.scanOne(ctx, ca)
		all = append(all, records...)
		if err != nil {
			return describe(ca.cfg.Email, err)
		}
	}
	return writeOutput(a.out, format, all)
}

func (a *app) runStats(ctx context.Context, accounts []configuredAccount, format string) error {
	var all []*models.SubscriptionStats
	for _, ca := range accounts {
		acct, err := scanAccount(ctx, ca)
		if err != nil {
			return err
		}
		stats, err := a.scanner.Stats(ctx, acct, ca.cfg.Folder)
		if err != nil {
			return describe(ca.cfg.Email, err)
		}
		all = append(all, stats)
	}
	return writeOutput(a.out, format, all)
}

// runUnsubscribe works through a locator file in batches, or without one
// scans each account and acts on every record that has a locator.
func (a *app) runUnsubscribe(ctx context.Context, accounts []configuredAccount, linksFile string, format string) error {
	executor := newExecutor(ctx, a.cfg.Unsubscribe, a.metrics)

	if linksFile != "" {
		locators, err := readLocators(linksFile)
		if err != nil {
			return err
		}
		return writeOutput(a.out, format, executor.Bulk(ctx, locators))
	}

	var actionable []models.SubscriptionRecord
	for _, ca := range accounts {
		records, err := a.scanOne(ctx, ca)
		if err != nil {
			return describe(ca.cfg.Email, err)
		}
		for _, r := range records {
			if r.HasLocator() {
				actionable = append(actionable, r)
			}
		}
	}
	return writeOutput(a.out, format, executor.BulkRecords(ctx, actionable))
}

func readLocators(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var locators []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locators = append(locators, line)
	}
	return locators, scanner.Err()
}

// describe tags err with the account it happened on
func describe(address string, err error) error {
	if imapclient.IsAuthenticationError(err) {
		logging.ForAccount(address).Warn("Authentication rejected, check the account credentials")
	}
	return fmt.Errorf("%s: %w", address, err)
}

// keyringSet is swapped out in tests
var keyringSet = credential.Set

// storePasswords reads one password per account from r and stores it in the
// OS keyring under the account's passwordKeyring key.
func storePasswords(r io.Reader, accounts []configuredAccount) error {
	scanner := bufio.NewScanner(r)
	for _, ca := range accounts {
		if ca.cfg.PasswordKeyring == "" {
			return fmt.Errorf("%s: passwordKeyring is not set", ca.cfg.Email)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%s: no password on input", ca.cfg.Email)
		}
		pw := strings.TrimRight(scanner.Text(), "\r")
		if pw == "" {
			return fmt.Errorf("%s: empty password", ca.cfg.Email)
		}
		if err := keyringSet(ca.cfg.PasswordKeyring, pw); err != nil {
			return err
		}
		logging.ForAccount(ca.cfg.Email).Infof("Stored password under keyring key %q", ca.cfg.PasswordKeyring)
	}
	return nil
}
