package scan

import (
	"context"
	"fmt"
	"time"

	"inbox-unsubscriber/internal/cache"
	"inbox-unsubscriber/internal/category"
	imapclient "inbox-unsubscriber/internal/imap"
	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/metrics"
	"inbox-unsubscriber/internal/models"
	"inbox-unsubscriber/internal/provider"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds how many fetched messages are parsed at once
const DefaultWorkers = 4

// Account is what a scan needs to reach one mailbox
type Account struct {
	Address string
	Auth    imapclient.Authenticator
	// Custom overrides provider resolution when its Host is set
	Custom *provider.Custom
}

// Request selects what part of the mailbox to scan
type Request struct {
	Folder string
	// Limit keeps only the most recent messages; zero or less means all
	Limit int
}

type Options struct {
	Workers     int
	FlushEvery  int
	Categorizer category.Categorizer
	Metrics     metrics.Metrics
	NewClient   func() imapclient.Client
}

type Scanner struct {
	workers    int
	flushEvery int
	processor  *Processor
	metrics    metrics.Metrics
	newClient  func() imapclient.Client
	leases     leases
}

// New creates a Scanner. Zero options fall back to defaults and TLS connections.
func New(opts Options) *Scanner {
	s := &Scanner{
		workers:    opts.Workers,
		flushEvery: opts.FlushEvery,
		processor:  NewProcessor(opts.Categorizer),
		metrics:    opts.Metrics,
		newClient:  opts.NewClient,
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.flushEvery <= 0 {
		s.flushEvery = cache.DefaultFlushEvery
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.newClient == nil {
		s.newClient = func() imapclient.Client { return imapclient.NewStandardClient() }
	}
	return s
}

// Scan walks the most recent messages of one folder and returns a record for
// every message that parsed and was not in processed yet, in ascending UID
// order. Provider, authentication and connection failures abort the scan,
// including a session lost mid-scan; single messages that cannot be fetched
// or parsed are skipped.
//
// On cancellation or a lost session the records gathered so far are returned
// with the error, since their messages are already marked processed.
func (s *Scanner) Scan(ctx context.Context, acct Account, req Request, processed *cache.ProcessedCache) ([]models.SubscriptionRecord, error) {
	if !s.leases.acquire(acct.Address) {
		return nil, ErrScanInProgress
	}
	defer s.leases.release(acct.Address)

	start := time.Now()
	records, err := s.scan(ctx, acct, req, processed)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	s.metrics.ScanFinished(acct.Address, outcome, time.Since(start))
	return records, err
}

func (s *Scanner) scan(ctx context.Context, acct Account, req Request, processed *cache.ProcessedCache) ([]models.SubscriptionRecord, error) {
	log := logging.ForAccount(acct.Address)

	client, params, err := s.open(ctx, acct)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warnf("Error closing IMAP connection: %v", err)
		}
	}()

	folder := req.Folder
	if folder == "" {
		folder = imapclient.DefaultFolder
	}
	validity, err := client.SelectMailbox(folder)
	if err != nil {
		return nil, err
	}
	uids, err := client.ListMessages()
	if err != nil {
		return nil, err
	}
	window := imapclient.SelectWindow(uids, req.Limit)
	log.Infof("Scanning %d of %d messages in %s", len(window), len(uids), folder)

	results := make([]*models.SubscriptionRecord, len(window))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var fatal error
	for i, uid := range window {
		if ctx.Err() != nil {
			break
		}

		key := models.MessageKey{Folder: folder, UIDValidity: validity, UID: uid}
		id := key.String()
		if processed.Contains(id) {
			continue
		}

		raw, err := client.FetchRaw(uid)
		if imapclient.IsConnectionError(err) {
			fatal = err
			break
		}
		if err != nil {
			log.WithField("uid", uid).Warnf("Skipping message: %v", err)
			s.metrics.FetchFailed(acct.Address)
			continue
		}

		i := i
		g.Go(func() error {
			record, err := s.processor.ProcessMessage(gctx, raw, params.Label())
			if err != nil {
				s.metrics.ExtractionFailed(acct.Address)
			} else {
				results[i] = record
				s.metrics.MessageScanned(acct.Address, string(record.LocatorOrigin))
			}
			if processed.MarkProcessed(id) >= s.flushEvery {
				if err := processed.Flush(gctx); err != nil {
					log.Warnf("Error saving processed message cache: %v", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := processed.Flush(context.WithoutCancel(ctx)); err != nil {
		log.Errorf("Error saving processed message cache: %v", err)
	}

	records := make([]models.SubscriptionRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	log.WithFields(logrus.Fields{
		"records": len(records),
		"cached":  processed.Len(),
	}).Info("Scan finished")

	if fatal != nil {
		return records, fatal
	}
	return records, ctx.Err()
}

// open resolves, connects and authenticates. The client is closed on error.
func (s *Scanner) open(ctx context.Context, acct Account) (imapclient.Client, provider.ConnectionParameters, error) {
	params, err := provider.Resolve(acct.Address, acct.Custom)
	if err != nil {
		return nil, nil, err
	}
	if acct.Auth == nil {
		return nil, nil, fmt.Errorf("no authenticator configured for %s", acct.Address)
	}

	client := s.newClient()
	if err := client.Connect(ctx, params); err != nil {
		return nil, nil, err
	}
	if err := client.Authenticate(ctx, acct.Address, acct.Auth); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, params, nil
}

// Stats counts every message in folder and those that look like newsletters.
func (s *Scanner) Stats(ctx context.Context, acct Account, folder string) (*models.SubscriptionStats, error) {
	client, _, err := s.open(ctx, acct)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if folder == "" {
		folder = imapclient.DefaultFolder
	}
	if _, err := client.SelectMailbox(folder); err != nil {
		return nil, err
	}
	uids, err := client.ListMessages()
	if err != nil {
		return nil, err
	}
	promotional, err := client.CountMatching(newsletterCriteria())
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionStats{
		Folder:           folder,
		Total:            len(uids),
		TotalPromotional: promotional,
	}, nil
}

// newsletterCriteria is FROM "newsletter" OR SUBJECT "unsubscribe"
func newsletterCriteria() *imap.SearchCriteria {
	from := imap.NewSearchCriteria()
	from.Header.Add("From", "newsletter")
	subject := imap.NewSearchCriteria()
	subject.Header.Add("Subject", "unsubscribe")

	criteria := imap.NewSearchCriteria()
	criteria.Or = [][2]*imap.SearchCriteria{{from, subject}}
	return criteria
}
