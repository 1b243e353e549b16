package models

import "time"

// Config represents the application configuration
type Config struct {
	Accounts    []AccountConfig   `yaml:"accounts"`
	Cache       CacheConfig       `yaml:"cache"`
	Scan        ScanConfig        `yaml:"scan"`
	Unsubscribe UnsubscribeConfig `yaml:"unsubscribe"`
	LogLevel    string            `yaml:"logLevel"`
	MetricsAddr string            `yaml:"metricsAddr"`
}

// AccountConfig represents one mailbox to scan
type AccountConfig struct {
	Email           string       `yaml:"email"`
	Password        string       `yaml:"password"`
	PasswordKeyring string       `yaml:"passwordKeyring"`
	OAuth           *OAuthConfig `yaml:"oauth"`
	IMAP            *IMAPConfig  `yaml:"imap"`
	Folder          string       `yaml:"folder"`
	Limit           int          `yaml:"limit"`
}

// OAuthConfig holds what is needed to obtain XOAUTH2 access tokens
type OAuthConfig struct {
	Provider     string   `yaml:"provider"`
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	RefreshToken string   `yaml:"refreshToken"`
	AccessToken  string   `yaml:"accessToken"`
	TokenURL     string   `yaml:"tokenUrl"`
	AuthURL      string   `yaml:"authUrl"`
	Scopes       []string `yaml:"scopes"`
}

// IMAPConfig represents custom IMAP server settings
type IMAPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheConfig selects the processed-message cache backend
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ScanConfig tunes the scan loop
type ScanConfig struct {
	Workers     int           `yaml:"workers"`
	FlushEvery  int           `yaml:"flushEvery"`
	RefreshTime time.Duration `yaml:"refreshTime"`
	// Categorizer optionally overrides heuristic labels; "keyword" or empty
	Categorizer string `yaml:"categorizer"`
}

// UnsubscribeConfig tunes the unsubscribe executor
type UnsubscribeConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	Pacing     time.Duration `yaml:"pacing"`
	BatchSize  int           `yaml:"batchSize"`
	BatchDelay time.Duration `yaml:"batchDelay"`
	UserAgent  string        `yaml:"userAgent"`
	Browser    bool          `yaml:"browser"`
}
