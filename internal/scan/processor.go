package scan

import (
	"context"

	"inbox-unsubscriber/internal/category"
	"inbox-unsubscriber/internal/extract"
	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/mailparse"
	"inbox-unsubscriber/internal/models"

	"github.com/sirupsen/logrus"
)

type Processor struct {
	categorizer category.Categorizer
}

// NewProcessor creates a Processor. categorizer may be nil, in which case
// only the built-in heuristic labels messages.
func NewProcessor(categorizer category.Categorizer) *Processor {
	return &Processor{categorizer: categorizer}
}

// ProcessMessage orchestrates the per-message workflow:
// parse → extract locator → categorize → record
func (p *Processor) ProcessMessage(ctx context.Context, raw *models.RawMessage, providerLabel string) (*models.SubscriptionRecord, error) {
	email, err := mailparse.Parse(raw)
	if err != nil {
		logging.Log.WithField("trace_id", "unknown").Errorf("Error parsing message %s: %v", raw.Key, err)
		return nil, err
	}

	locallog := logging.Log.WithFields(logrus.Fields{
		"trace_id": email.TraceID,
		"uid":      raw.Key.UID,
	})

	record := &models.SubscriptionRecord{
		SenderDisplay: mailparse.SenderDisplay(email),
		SenderAddress: email.From,
		Subject:       email.Subject,
		Provider:      providerLabel,
		Category:      p.categorize(ctx, email, locallog),
		ReceivedAt:    mailparse.ReceivedAt(email),
		MessageID:     raw.Key.String(),
	}

	if found, ok := extract.Extract(email); ok {
		record.Locator = found.Locator
		record.LocatorOrigin = found.Origin
		record.OneClick = found.OneClick
		locallog.Debugf("Found unsubscribe locator via %s for %s", found.Origin, record.SenderDisplay)
	} else {
		locallog.Debugf("No unsubscribe locator for %s", record.SenderDisplay)
	}

	return record, nil
}

func (p *Processor) categorize(ctx context.Context, email *models.Email, log *logrus.Entry) string {
	label := category.Heuristic(email)
	if p.categorizer == nil {
		return label
	}

	override, _, err := p.categorizer.Categorize(ctx, category.SampleOf(email))
	if err != nil {
		log.Warnf("Categorizer failed, keeping %s: %v", label, err)
		return label
	}
	if normalized, ok := category.Normalize(override); ok {
		return normalized
	}
	log.Debugf("Categorizer returned unknown label %q, keeping %s", override, label)
	return label
}
