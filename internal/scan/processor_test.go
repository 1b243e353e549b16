package scan

import (
	"context"
	"errors"
	"testing"

	"inbox-unsubscriber/internal/category"
	"inbox-unsubscriber/internal/mailparse"
	"inbox-unsubscriber/internal/models"
)

type stubCategorizer struct {
	label string
	err   error
}

func (s stubCategorizer) Categorize(context.Context, category.Sample) (string, map[string]float64, error) {
	return s.label, nil, s.err
}

func rawMessage(body string) *models.RawMessage {
	return &models.RawMessage{
		Key:  models.MessageKey{Folder: "INBOX", UIDValidity: 3, UID: 11},
		Body: []byte(body),
	}
}

func TestProcessMessage_Categories(t *testing.T) {
	raw := rawMessage(message("Bank <news@bank.example>", "Your statement", "", "<p>hi</p>"))

	tests := []struct {
		name        string
		categorizer category.Categorizer
		want        string
	}{
		{"heuristic only", nil, models.CategoryFinance},
		{"override", stubCategorizer{label: "travel"}, models.CategoryTravel},
		{"unknown override ignored", stubCategorizer{label: "Entertainment"}, models.CategoryFinance},
		{"failing categorizer ignored", stubCategorizer{err: errors.New("model unavailable")}, models.CategoryFinance},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			record, err := NewProcessor(tt.categorizer).ProcessMessage(context.Background(), raw, "bank.example")
			if err != nil {
				t.Fatalf("ProcessMessage() error = %v", err)
			}
			if record.Category != tt.want {
				t.Errorf("Category = %q, want %q", record.Category, tt.want)
			}
		})
	}
}

func TestProcessMessage_Record(t *testing.T) {
	raw := rawMessage(message("deals@shop.example", "Sale", "List-Unsubscribe: <mailto:leave@shop.example>\r\n", "<p>hi</p>"))

	record, err := NewProcessor(nil).ProcessMessage(context.Background(), raw, "gmail.com")
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	want := models.SubscriptionRecord{
		SenderDisplay: "deals@shop.example",
		SenderAddress: "deals@shop.example",
		Subject:       "Sale",
		Locator:       "mailto:leave@shop.example",
		LocatorOrigin: models.OriginHeader,
		Provider:      "gmail.com",
		Category:      models.CategoryShopping,
		ReceivedAt:    "2024-03-01",
		MessageID:     "INBOX:3:11",
	}
	if *record != want {
		t.Errorf("ProcessMessage() = %+v, want %+v", *record, want)
	}
}

func TestProcessMessage_HeaderWinsOverUnreadableBody(t *testing.T) {
	raw := rawMessage("From: deals@shop.example\r\n" +
		"Subject: Sale\r\n" +
		"List-Unsubscribe: <https://a.example/unsub?u=1>\r\n" +
		"Content-Type: text/html; charset=x-bogus\r\n" +
		"\r\n" +
		"<a href=\"https://b.example/u\">Unsubscribe</a>\r\n")

	record, err := NewProcessor(nil).ProcessMessage(context.Background(), raw, "gmail.com")
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if record.Locator != "https://a.example/unsub?u=1" || record.LocatorOrigin != models.OriginHeader {
		t.Errorf("locator = %q (%s), want header locator", record.Locator, record.LocatorOrigin)
	}
}

func TestProcessMessage_ParseFailure(t *testing.T) {
	_, err := NewProcessor(nil).ProcessMessage(context.Background(), rawMessage(""), "gmail.com")
	if !mailparse.IsExtractionError(err) {
		t.Errorf("ProcessMessage() error = %v, want ExtractionError", err)
	}
}
