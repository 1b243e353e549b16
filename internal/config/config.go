package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"inbox-unsubscriber/internal/models"

	"gopkg.in/yaml.v2"
)

const (
	DefaultFolder      = "INBOX"
	DefaultLimit       = 50
	DefaultCachePath   = "processed_messages.txt"
	DefaultWorkers     = 4
	DefaultFlushEvery  = 10
	DefaultRefreshTime = 24 * time.Hour
	DefaultTimeout     = 10 * time.Second
	DefaultPacing      = 1 * time.Second
	DefaultBatchSize   = 5
	DefaultBatchDelay  = 2 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"
)

// CategorizerKeyword enables keyword scoring on top of the heuristic
const CategorizerKeyword = "keyword"

// Load reads the configuration from the specified YAML file, fills in defaults
// and validates the result
func Load(filepath string) (*models.Config, error) {
	configFile, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := yaml.Unmarshal(configFile, &config); err != nil {
		return nil, err
	}

	ApplyDefaults(&config)
	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults sets every unset tunable to its default value
func ApplyDefaults(cfg *models.Config) {
	for i := range cfg.Accounts {
		acct := &cfg.Accounts[i]
		if acct.Folder == "" {
			acct.Folder = DefaultFolder
		}
		if acct.Limit <= 0 {
			acct.Limit = DefaultLimit
		}
		if acct.IMAP != nil && acct.IMAP.Port == 0 {
			acct.IMAP.Port = 993
		}
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheBackendFile
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath
	}

	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = DefaultWorkers
	}
	if cfg.Scan.FlushEvery <= 0 {
		cfg.Scan.FlushEvery = DefaultFlushEvery
	}
	if cfg.Scan.RefreshTime <= 0 {
		cfg.Scan.RefreshTime = DefaultRefreshTime
	}

	u := &cfg.Unsubscribe
	if u.Timeout <= 0 {
		u.Timeout = DefaultTimeout
	}
	if u.Pacing < 0 {
		u.Pacing = 0
	} else if u.Pacing == 0 {
		u.Pacing = DefaultPacing
	}
	if u.BatchSize <= 0 {
		u.BatchSize = DefaultBatchSize
	}
	if u.BatchDelay <= 0 {
		u.BatchDelay = DefaultBatchDelay
	}
	if u.UserAgent == "" {
		u.UserAgent = DefaultUserAgent
	}
}

// Validate reports configuration mistakes that would only surface mid-scan
func Validate(cfg *models.Config) error {
	var errs []error

	seen := make(map[string]bool)
	for i, acct := range cfg.Accounts {
		if !strings.Contains(acct.Email, "@") {
			errs = append(errs, fmt.Errorf("accounts[%d]: invalid email %q", i, acct.Email))
			continue
		}
		key := strings.ToLower(acct.Email)
		if seen[key] {
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate account %s", i, acct.Email))
		}
		seen[key] = true

		if acct.IMAP != nil && acct.IMAP.Host == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: imap.host is required when imap is set", i))
		}
		if acct.OAuth != nil && acct.OAuth.AccessToken == "" && acct.OAuth.RefreshToken == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: oauth needs an accessToken or a refreshToken", i))
		}
	}

	switch cfg.Cache.Backend {
	case CacheBackendFile, CacheBackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", cfg.Cache.Backend))
	}

	switch cfg.Scan.Categorizer {
	case "", CategorizerKeyword:
	default:
		errs = append(errs, fmt.Errorf("scan.categorizer: unknown categorizer %q", cfg.Scan.Categorizer))
	}

	return errors.Join(errs...)
}

// FindAccount returns the configured account with the given address
func FindAccount(cfg *models.Config, email string) (*models.AccountConfig, bool) {
	for i := range cfg.Accounts {
		if strings.EqualFold(cfg.Accounts[i].Email, email) {
			return &cfg.Accounts[i], true
		}
	}
	return nil, false
}
