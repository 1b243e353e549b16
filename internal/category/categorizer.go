package category

import (
	"context"
	"strings"

	"inbox-unsubscriber/internal/models"
)

// maxContent bounds how much body text is fed to a Categorizer
const maxContent = 1000

// Sample is what a Categorizer gets to see of a message
type Sample struct {
	Subject string
	Sender  string
	Content string
}

// Categorizer is implemented by classifiers that may override the heuristic
// label. Confidence maps every scored label to a share in [0, 1].
type Categorizer interface {
	Categorize(ctx context.Context, s Sample) (string, map[string]float64, error)
}

// SampleOf builds the categorizer input for an email
func SampleOf(email *models.Email) Sample {
	content := email.TextBody
	if content == "" {
		content = email.HTMLBody
	}
	if len(content) > maxContent {
		content = strings.ToValidUTF8(content[:maxContent], "")
	}
	return Sample{Subject: email.Subject, Sender: email.From, Content: content}
}

// KeywordCategorizer scores every label by its keyword occurrences across
// subject, sender and content.
type KeywordCategorizer struct{}

func (KeywordCategorizer) Categorize(ctx context.Context, s Sample) (string, map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	text := strings.ToLower(strings.Join([]string{s.Subject, s.Sender, s.Content}, " "))

	scores := make(map[string]int, len(Labels))
	total := 0
	for _, label := range Labels {
		n := len(wordPatterns[label].FindAllStringIndex(text, -1))
		scores[label] = n
		total += n
	}
	if total == 0 {
		return models.CategoryPromotions, map[string]float64{models.CategoryPromotions: 1}, nil
	}

	best := Labels[0]
	confidence := make(map[string]float64, len(Labels))
	for _, label := range Labels {
		confidence[label] = float64(scores[label]) / float64(total)
		if scores[label] > scores[best] {
			best = label
		}
	}
	return best, confidence, nil
}
