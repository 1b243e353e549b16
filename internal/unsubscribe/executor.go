// Package unsubscribe performs best-effort unsubscribe requests. Failures are
// reported as results and never returned as errors.
package unsubscribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/metrics"
	"inbox-unsubscriber/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultPacing     = time.Second
	DefaultBatchSize  = 5
	DefaultBatchDelay = 2 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	oneClickBody = "List-Unsubscribe=One-Click"
	maxDrain     = 1 << 20
)

// Attempt methods, as reported to metrics
const (
	MethodGet      = "get"
	MethodOneClick = "one-click"
	MethodBrowser  = "browser"
	MethodManual   = "manual"
	MethodInvalid  = "invalid"
)

type Options struct {
	Timeout    time.Duration
	Pacing     time.Duration
	BatchSize  int
	BatchDelay time.Duration
	UserAgent  string
	// Browser, when set, visits GET locators instead of a plain HTTP request
	Browser   Browser
	Transport http.RoundTripper
	Metrics   metrics.Metrics
}

type Executor struct {
	client    *http.Client
	userAgent string
	pacing    time.Duration
	batchSize int
	limiter   *rate.Limiter
	browser   Browser
	metrics   metrics.Metrics
}

// NewExecutor creates an Executor. Zero durations and sizes take defaults; a
// negative Pacing or BatchDelay disables it.
func NewExecutor(opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Pacing == 0 {
		opts.Pacing = DefaultPacing
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay == 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	limit := rate.Inf
	if opts.BatchDelay > 0 {
		limit = rate.Every(opts.BatchDelay)
	}

	return &Executor{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
		pacing:    opts.Pacing,
		batchSize: opts.BatchSize,
		limiter:   rate.NewLimiter(limit, 1),
		browser:   opts.Browser,
		metrics:   opts.Metrics,
	}
}

// Execute attempts to unsubscribe through locator and reports whether the
// server accepted it.
func (e *Executor) Execute(ctx context.Context, locator string) bool {
	return e.attempt(ctx, locator, false).Success
}

// ExecuteRecord is Execute for a scanned record. One-click records are sent
// as an RFC 8058 POST.
func (e *Executor) ExecuteRecord(ctx context.Context, record models.SubscriptionRecord) models.UnsubscribeResult {
	return e.attempt(ctx, record.Locator, record.OneClick)
}

// Bulk runs Execute over locators in order, in batches separated by the
// batch delay. It returns exactly one result per locator.
func (e *Executor) Bulk(ctx context.Context, locators []string) []models.UnsubscribeResult {
	targets := make([]bulkItem, len(locators))
	for i, locator := range locators {
		targets[i] = bulkItem{locator: locator}
	}
	return e.runBatches(ctx, targets)
}

// BulkRecords is Bulk for scanned records, keeping the one-click POST of
// records that advertise it.
func (e *Executor) BulkRecords(ctx context.Context, records []models.SubscriptionRecord) []models.UnsubscribeResult {
	targets := make([]bulkItem, len(records))
	for i, r := range records {
		targets[i] = bulkItem{locator: r.Locator, oneClick: r.OneClick}
	}
	return e.runBatches(ctx, targets)
}

type bulkItem struct {
	locator  string
	oneClick bool
}

func (e *Executor) runBatches(ctx context.Context, targets []bulkItem) []models.UnsubscribeResult {
	results := make([]models.UnsubscribeResult, 0, len(targets))
	for start := 0; start < len(targets); start += e.batchSize {
		end := start + e.batchSize
		if end > len(targets) {
			end = len(targets)
		}

		if err := e.limiter.Wait(ctx); err != nil {
			for _, t := range targets[start:] {
				results = append(results, failed(t.locator, err.Error()))
			}
			break
		}
		for _, t := range targets[start:end] {
			results = append(results, e.attempt(ctx, t.locator, t.oneClick))
		}
	}
	return results
}

func failed(locator, reason string) models.UnsubscribeResult {
	return models.UnsubscribeResult{Locator: locator, State: models.AttemptFailed, Reason: reason}
}

func (e *Executor) attempt(ctx context.Context, locator string, oneClick bool) models.UnsubscribeResult {
	traceID := uuid.New().String()
	locallog := logging.Log.WithFields(logrus.Fields{
		"trace_id": traceID,
		"locator":  locator,
	})

	result := models.UnsubscribeResult{Locator: locator, State: models.AttemptPending}
	method := MethodGet
	finish := func(state models.AttemptState, reason string) models.UnsubscribeResult {
		result.State = state
		result.Success = state == models.AttemptSucceeded
		result.Reason = reason
		e.metrics.UnsubscribeAttempt(method, state.String())
		return result
	}

	trimmed := strings.TrimSpace(locator)
	switch {
	case trimmed == "":
		method = MethodInvalid
		locallog.Info("No unsubscribe locator, nothing to do")
		return finish(models.AttemptFailed, "no locator")
	case strings.HasPrefix(strings.ToLower(trimmed), "mailto:"):
		method = MethodManual
		locallog.Info("Mailto unsubscribe requires manual action")
		return finish(models.AttemptFailed, "manual action required")
	}

	target, err := parseHTTPURL(trimmed)
	if err != nil {
		method = MethodInvalid
		locallog.WithError(err).Warn("Malformed unsubscribe locator")
		return finish(models.AttemptFailed, err.Error())
	}

	switch {
	case oneClick:
		method = MethodOneClick
	case e.browser != nil:
		method = MethodBrowser
	}

	if err := pause(ctx, e.pacing); err != nil {
		return finish(models.AttemptFailed, err.Error())
	}

	if method == MethodBrowser {
		res, err := e.browser.OpenUnsubscribePage(ctx, target, traceID)
		if err != nil {
			locallog.WithError(err).Error("Browser error")
			return finish(models.AttemptFailed, err.Error())
		}
		if res == BrowserFailed {
			return finish(models.AttemptFailed, "browser visit failed")
		}
		locallog.Infof("Browser visit %s", res)
		return finish(models.AttemptSucceeded, "")
	}

	status, err := e.send(ctx, target, oneClick)
	if err != nil {
		locallog.WithError(err).Warn("Failed to unsubscribe")
		return finish(models.AttemptFailed, err.Error())
	}
	if status >= http.StatusBadRequest {
		locallog.Warnf("Unsubscribe rejected with status %d", status)
		return finish(models.AttemptFailed, fmt.Sprintf("status %d", status))
	}
	locallog.Infof("Unsubscribe accepted with status %d", status)
	return finish(models.AttemptSucceeded, "")
}

func (e *Executor) send(ctx context.Context, target string, oneClick bool) (int, error) {
	var req *http.Request
	var err error
	if oneClick {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(oneClickBody))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return resp.StatusCode, nil
}

func parseHTTPURL(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("malformed locator: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("malformed locator: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("malformed locator: missing host")
	}
	return u.String(), nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
