package unsubscribe

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"inbox-unsubscriber/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const tempDirPattern = "rod-unsubscribe-*"

// confirmControls matches the visible text or value of controls that finish an unsubscribe
const confirmControls = `(?i)unsubscribe|opt.?out|confirm|remove me|stop receiving`

var activeRodSessions atomic.Int32

type RodBrowser struct {
	// Timeout bounds the whole visit
	Timeout time.Duration
}

// NewRodBrowser creates a new instance of RodBrowser
func NewRodBrowser(timeout time.Duration) *RodBrowser {
	return &RodBrowser{Timeout: timeout}
}

// OpenUnsubscribePage opens link in a fresh headless browser and clicks the
// first confirm control it finds. There is a single attempt per link.
func (rb *RodBrowser) OpenUnsubscribePage(ctx context.Context, link string, traceID string) (BrowserResult, error) {
	activeRodSessions.Add(1)
	defer activeRodSessions.Add(-1)

	locallog := logging.Log.WithField("trace_id", traceID)
	locallog.Info("Open page with rod: ", link)

	if rb.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rb.Timeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		locallog.WithError(err).Error("failed to create temp user data dir")
		return BrowserFailed, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			locallog.WithError(err).Warn("failed to remove temp user data dir")
		}
	}()

	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		UserDataDir(tmpDir)
	defer l.Kill()

	u, err := l.Launch()
	if err != nil {
		return BrowserFailed, err
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return BrowserFailed, err
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: link})
	if err != nil {
		return BrowserFailed, err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return BrowserFailed, err
	}

	control, err := page.Timeout(5*time.Second).ElementR("button, a, input[type=submit], input[type=button]", confirmControls)
	if err != nil {
		locallog.Info("No confirm control on page, treating page load as the unsubscribe")
		return BrowserLoaded, nil
	}
	if err := control.Click(proto.InputMouseButtonLeft, 1); err != nil {
		locallog.WithError(err).Warn("Confirm control not clickable")
		return BrowserFailed, err
	}
	_ = page.WaitLoad()

	locallog.Info("Clicked on confirm control successfully")
	return BrowserConfirmed, nil
}

// StartCleanup starts a background goroutine that cleans up leftover Rod temp
// directories every interval until ctx is done
func StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if activeRodSessions.Load() > 0 {
				logging.Log.Info("Skipping /tmp cleanup: active Rod sessions detected")
				continue
			}
			removeTempDirs()
		}
	}()
}

func removeTempDirs() {
	pattern := filepath.Join(os.TempDir(), tempDirPattern)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logging.Log.WithError(err).Warn("Failed to glob temp directories")
		return
	}

	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			logging.Log.WithError(err).Warnf("Failed to remove temp dir: %s", dir)
		} else {
			logging.Log.Infof("Cleaned up temp dir: %s", dir)
		}
	}
}

// GetActiveSessionCount returns the current number of active Rod sessions (for testing)
func GetActiveSessionCount() int32 {
	return activeRodSessions.Load()
}
