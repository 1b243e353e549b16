package mailparse

import (
	"strings"

	"inbox-unsubscriber/internal/models"
)

// SenderDisplay picks the human readable sender: display name, then the raw
// From header, then the local part of the address, then "Unknown".
func SenderDisplay(email *models.Email) string {
	if name := strings.Trim(strings.TrimSpace(email.FromName), `"`); name != "" {
		return name
	}
	if from := strings.TrimSpace(email.From); from != "" {
		return from
	}
	if at := strings.IndexByte(email.FromAddress, '@'); at > 0 {
		return email.FromAddress[:at]
	}
	return "Unknown"
}

// ReceivedAt formats the message date as YYYY-MM-DD, preferring the Date
// header over the server's internal date.
func ReceivedAt(email *models.Email) string {
	switch {
	case !email.Date.IsZero():
		return email.Date.Format("2006-01-02")
	case !email.InternalDate.IsZero():
		return email.InternalDate.Format("2006-01-02")
	default:
		return models.UnknownDate
	}
}
