package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"inbox-unsubscriber/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Remove(tmpFile.Name())
	})

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	_ = tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad(t *testing.T) {
	yamlContent := `accounts:
  - email: user@gmail.com
    password: "app-pass"
    limit: 20
  - email: someone@unknown.example
    imap:
      host: mail.unknown.example
    oauth:
      accessToken: tok
cache:
  backend: sqlite
  path: /tmp/cache.db
scan:
  refreshTime: 30s
unsubscribe:
  timeout: 5s
  batchSize: 3
logLevel: debug
`

	cfg, err := Load(writeConfig(t, yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(cfg.Accounts))
	}

	if cfg.Accounts[0].Folder != "INBOX" {
		t.Errorf("Expected default folder 'INBOX', got '%s'", cfg.Accounts[0].Folder)
	}

	if cfg.Accounts[0].Limit != 20 {
		t.Errorf("Expected limit 20, got %d", cfg.Accounts[0].Limit)
	}

	if cfg.Accounts[1].IMAP.Port != 993 {
		t.Errorf("Expected default custom port 993, got %d", cfg.Accounts[1].IMAP.Port)
	}

	if cfg.Scan.RefreshTime != 30*time.Second {
		t.Errorf("Expected refreshTime 30s, got %v", cfg.Scan.RefreshTime)
	}

	if cfg.Unsubscribe.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Unsubscribe.Timeout)
	}

	if cfg.Unsubscribe.Pacing != DefaultPacing {
		t.Errorf("Expected default pacing, got %v", cfg.Unsubscribe.Pacing)
	}

	if cfg.Unsubscribe.BatchSize != 3 {
		t.Errorf("Expected batchSize 3, got %d", cfg.Unsubscribe.BatchSize)
	}

	if cfg.Cache.Backend != CacheBackendSQLite {
		t.Errorf("Expected sqlite backend, got '%s'", cfg.Cache.Backend)
	}

	if cfg.Scan.FlushEvery != 10 {
		t.Errorf("Expected flushEvery 10, got %d", cfg.Scan.FlushEvery)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "Bad email",
			content: `accounts:
  - email: nobody
`,
			wantErr: "invalid email",
		},
		{
			name: "Duplicate account",
			content: `accounts:
  - email: a@gmail.com
  - email: A@gmail.com
`,
			wantErr: "duplicate account",
		},
		{
			name: "Custom imap without host",
			content: `accounts:
  - email: a@unknown.example
    imap:
      port: 143
`,
			wantErr: "imap.host",
		},
		{
			name: "Oauth without tokens",
			content: `accounts:
  - email: a@gmail.com
    oauth:
      clientId: id
`,
			wantErr: "oauth needs",
		},
		{
			name: "Unknown cache backend",
			content: `cache:
  backend: redis
`,
			wantErr: "unknown backend",
		},
		{
			name: "Unknown categorizer",
			content: `scan:
  categorizer: sklearn
`,
			wantErr: "unknown categorizer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults_NegativePacingDisables(t *testing.T) {
	cfg := &models.Config{Unsubscribe: models.UnsubscribeConfig{Pacing: -1}}
	ApplyDefaults(cfg)
	if cfg.Unsubscribe.Pacing != 0 {
		t.Errorf("Expected pacing 0, got %v", cfg.Unsubscribe.Pacing)
	}
}

func TestFindAccount(t *testing.T) {
	cfg := &models.Config{Accounts: []models.AccountConfig{{Email: "User@Gmail.com"}}}

	acct, ok := FindAccount(cfg, "user@gmail.com")
	if !ok || acct.Email != "User@Gmail.com" {
		t.Errorf("FindAccount() = %v, %v", acct, ok)
	}

	if _, ok := FindAccount(cfg, "other@gmail.com"); ok {
		t.Error("Expected no account for other@gmail.com")
	}
}
