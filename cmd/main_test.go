package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	imapclient "inbox-unsubscriber/internal/imap"
	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/metrics"
	"inbox-unsubscriber/internal/models"
)

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		failures int32
		want     time.Duration
	}{
		{1, 0},
		{4, 0},
		{5, 5 * time.Minute},
		{6, 10 * time.Minute},
		{7, 20 * time.Minute},
		{8, failureSleepDuration},
		{50, failureSleepDuration},
	}
	for _, tt := range tests {
		if got := backoffFor(tt.failures); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestHandleIMAPFailure_Counts(t *testing.T) {
	var failures atomic.Int32
	for i := 0; i < 4; i++ {
		if d := handleIMAPFailure(&failures, os.ErrDeadlineExceeded); d != 0 {
			t.Fatalf("failure %d backed off %v", i+1, d)
		}
	}
	if d := handleIMAPFailure(&failures, os.ErrDeadlineExceeded); d != 5*time.Minute {
		t.Errorf("fifth failure backed off %v, want 5m", d)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Error("sleep() = true after cancellation")
	}
	if !sleep(context.Background(), 0) {
		t.Error("sleep(0) = false")
	}
}

func TestReadLocators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	content := "# exported\nhttps://a.example/u\n\n  mailto:x@y.example  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readLocators(path)
	if err != nil {
		t.Fatalf("readLocators() error = %v", err)
	}
	want := []string{"https://a.example/u", "mailto:x@y.example"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("readLocators() = %v, want %v", got, want)
	}
}

func TestWriteOutput(t *testing.T) {
	records := []models.SubscriptionRecord{{
		SenderDisplay: "Shop",
		Locator:       "https://a.example/u",
		LocatorOrigin: models.OriginHeader,
		Provider:      "gmail.com",
		Category:      models.CategoryShopping,
		ReceivedAt:    "2024-03-01",
		MessageID:     "INBOX:1:2",
	}}

	var buf bytes.Buffer
	if err := writeOutput(&buf, formatYAML, records); err != nil {
		t.Fatalf("writeOutput(yaml) error = %v", err)
	}
	if !strings.Contains(buf.String(), "method: Header") {
		t.Errorf("yaml output = %s", buf.String())
	}

	buf.Reset()
	if err := writeOutput(&buf, formatJSON, records); err != nil {
		t.Fatalf("writeOutput(json) error = %v", err)
	}
	if !strings.Contains(buf.String(), `"messageId": "INBOX:1:2"`) {
		t.Errorf("json output = %s", buf.String())
	}

	if err := writeOutput(&buf, "xml", records); err == nil {
		t.Error("writeOutput(xml) expected error")
	}
}

func TestSelectAccounts(t *testing.T) {
	cfg := &models.Config{Accounts: []models.AccountConfig{
		{Email: "a@gmail.com"},
		{Email: "b@yahoo.com"},
	}}
	a := newApp(cfg, metrics.Nop{})

	all, err := a.selectAccounts("")
	if err != nil || len(all) != 2 {
		t.Fatalf("selectAccounts(\"\") = %v, %v", all, err)
	}
	one, err := a.selectAccounts("B@Yahoo.com")
	if err != nil || len(one) != 1 || one[0].index != 1 {
		t.Fatalf("selectAccounts(b) = %v, %v", one, err)
	}
	if _, err := a.selectAccounts("c@aol.com"); err == nil {
		t.Error("selectAccounts(unknown) expected error")
	}
}

func TestScanAccount(t *testing.T) {
	ctx := context.Background()

	acct, err := scanAccount(ctx, configuredAccount{cfg: models.AccountConfig{
		Email:    "me@corp.example",
		Password: "secret",
		IMAP:     &models.IMAPConfig{Host: "mail.corp.example", Port: 993},
	}})
	if err != nil {
		t.Fatalf("scanAccount(password) error = %v", err)
	}
	if _, ok := acct.Auth.(imapclient.PasswordAuthenticator); !ok {
		t.Errorf("Auth = %T, want PasswordAuthenticator", acct.Auth)
	}
	if acct.Custom == nil || acct.Custom.Host != "mail.corp.example" {
		t.Errorf("Custom = %+v", acct.Custom)
	}

	acct, err = scanAccount(ctx, configuredAccount{cfg: models.AccountConfig{
		Email: "me@gmail.com",
		OAuth: &models.OAuthConfig{Provider: "google", AccessToken: "tok"},
	}})
	if err != nil {
		t.Fatalf("scanAccount(oauth) error = %v", err)
	}
	if _, ok := acct.Auth.(imapclient.OAuthAuthenticator); !ok {
		t.Errorf("Auth = %T, want OAuthAuthenticator", acct.Auth)
	}
}

func TestStorePasswords(t *testing.T) {
	stored := map[string]string{}
	orig := keyringSet
	keyringSet = func(key, value string) error {
		stored[key] = value
		return nil
	}
	defer func() { keyringSet = orig }()

	accounts := []configuredAccount{
		{index: 0, cfg: models.AccountConfig{Email: "a@gmail.com", PasswordKeyring: "a"}},
		{index: 1, cfg: models.AccountConfig{Email: "b@gmail.com", PasswordKeyring: "b"}},
	}
	if err := storePasswords(strings.NewReader("pw-a\r\npw-b\n"), accounts); err != nil {
		t.Fatalf("storePasswords() error = %v", err)
	}
	if stored["a"] != "pw-a" || stored["b"] != "pw-b" {
		t.Errorf("stored = %v", stored)
	}

	if err := storePasswords(strings.NewReader("only-one\n"), accounts); err == nil {
		t.Error("storePasswords() with missing input returned nil error")
	}

	noKey := []configuredAccount{{cfg: models.AccountConfig{Email: "c@gmail.com"}}}
	if err := storePasswords(strings.NewReader("pw\n"), noKey); err == nil {
		t.Error("storePasswords() without passwordKeyring returned nil error")
	}
}

func TestRunUnsubscribe_ResultsOnlyOnOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "links.txt")
	if err := os.WriteFile(path, []byte(srv.URL+"/u\nmailto:x@y.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := configureLogging("info"); err != nil {
		t.Fatalf("configureLogging() error = %v", err)
	}
	if logging.Log.Out != os.Stderr {
		t.Error("logs are not written to stderr")
	}
	var logs bytes.Buffer
	logging.Log.SetOutput(&logs)
	defer logging.Log.SetOutput(os.Stderr)

	cfg := &models.Config{Unsubscribe: models.UnsubscribeConfig{Timeout: 5 * time.Second, BatchDelay: -1}}
	a := newApp(cfg, metrics.Nop{})
	var out bytes.Buffer
	a.out = &out

	if err := a.runUnsubscribe(context.Background(), nil, path, formatJSON); err != nil {
		t.Fatalf("runUnsubscribe() error = %v", err)
	}

	var results []models.UnsubscribeResult
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("output is not a JSON document: %v\n%s", err, out.String())
	}
	if len(results) != 2 || !results[0].Success || results[1].Success {
		t.Errorf("results = %+v", results)
	}
	if logs.Len() == 0 {
		t.Error("expected log lines on the log writer")
	}
}
