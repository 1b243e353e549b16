package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/models"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ExtractionError means a message could not be parsed at all
type ExtractionError struct {
	Key models.MessageKey
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("cannot parse message %s: %v", e.Key, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError reports whether err (or any error in its chain) is an ExtractionError.
func IsExtractionError(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}

// Parse turns raw RFC 822 bytes into an Email. Header level failures are
// fatal; a broken body only leaves the bodies empty.
func Parse(raw *models.RawMessage) (*models.Email, error) {
	if raw == nil || len(raw.Body) == 0 {
		return nil, &ExtractionError{Err: io.ErrUnexpectedEOF}
	}

	email := &models.Email{
		Key:          raw.Key,
		InternalDate: raw.InternalDate,
		TraceID:      uuid.New().String(),
	}

	// An unknown charset or transfer encoding still yields a readable entity;
	// its body is then taken as is and cleaned up as UTF-8 below.
	entity, err := message.Read(bytes.NewReader(raw.Body))
	if err != nil {
		if !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return nil, &ExtractionError{Key: raw.Key, Err: err}
		}
		logging.Log.WithFields(logrus.Fields{
			"trace_id": email.TraceID,
			"message":  raw.Key.String(),
		}).WithError(err).Warn("Unknown body charset or encoding, reading as UTF-8")
	}
	mr := mail.NewReader(entity)
	defer mr.Close()

	header := mr.Header

	email.From = decodeOrRaw(header.Get("From"))
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		email.FromName = strings.TrimSpace(from[0].Name)
		email.FromAddress = from[0].Address
	} else {
		email.FromAddress = extractEmailAddress(email.From)
	}

	email.Subject = decodeOrRaw(header.Get("Subject"))
	if date, err := header.Date(); err == nil {
		email.Date = date
	}
	if id, err := header.MessageID(); err == nil {
		email.MessageID = id
	}
	email.ListUnsubscribe = header.Get("List-Unsubscribe")
	email.ListUnsubscribePost = header.Get("List-Unsubscribe-Post")
	email.GmailLabels = header.Get("X-Gmail-Labels")

	if err := readBodies(mr, email); err != nil {
		logging.Log.WithFields(logrus.Fields{
			"trace_id": email.TraceID,
			"message":  raw.Key.String(),
		}).WithError(err).Warn("Could not read message body")
	}

	return email, nil
}

// readBodies keeps the first text/html and the first text/plain part.
// Nested multiparts are walked by the reader itself.
func readBodies(mr *mail.Reader, email *models.Email) error {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil
		} else if err != nil && !message.IsUnknownCharset(err) {
			return err
		}
		if p == nil {
			continue
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}
		switch contentType {
		case "text/html":
			if email.HTMLBody != "" {
				continue
			}
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return err
			}
			email.HTMLBody = strings.ToValidUTF8(string(body), "\uFFFD")
		case "text/plain":
			if email.TextBody != "" {
				continue
			}
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return err
			}
			email.TextBody = strings.ToValidUTF8(string(body), "\uFFFD")
		}
	}
}

var addressRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Simple regex to extract email address from "From" header, which may contain name and email
func extractEmailAddress(fromHeader string) string {
	return addressRe.FindString(fromHeader)
}

// DecodeHeader decodes MIME-encoded headers (e.g., "=?UTF-8?B?...?=") to plain text
func DecodeHeader(encoded string) (string, error) {
	decoder := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return "", err
	}
	return decoded, nil
}

func decodeOrRaw(value string) string {
	decoded, err := DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
