// Package category assigns coarse category labels to subscription emails.
package category

import (
	"regexp"
	"strings"

	"inbox-unsubscriber/internal/models"
)

// Labels is the fixed category set, in the order keyword sets are tried.
// Promotions is last and doubles as the default.
var Labels = []string{
	models.CategoryShopping,
	models.CategorySocial,
	models.CategoryFinance,
	models.CategoryTravel,
	models.CategoryForums,
	models.CategoryUpdates,
	models.CategoryPromotions,
}

var keywords = map[string][]string{
	models.CategoryShopping: {
		"shop", "store", "discount", "sale", "order", "purchase", "buy",
		"deal", "promo", "coupon", "amazon", "ebay", "walmart", "offer",
		"product", "shipping", "delivery",
	},
	models.CategorySocial: {
		"friend", "connect", "network", "social", "follow", "like", "share",
		"facebook", "twitter", "instagram", "linkedin", "invite", "join",
		"community", "group", "profile", "post",
	},
	models.CategoryFinance: {
		"bank", "finance", "credit", "payment", "account", "statement", "invest",
		"loan", "mortgage", "bill", "transaction", "transfer", "balance", "tax",
		"insurance", "money", "fund", "deposit",
	},
	models.CategoryTravel: {
		"travel", "flight", "trip", "vacation", "hotel", "booking", "airline",
		"reservation", "itinerary", "destination", "accommodation", "journey",
		"tour", "holiday", "cruise", "passport", "ticket",
	},
	models.CategoryForums: {
		"forum", "community", "discussion", "member", "group", "topic", "thread",
		"reply", "post", "message", "board", "comment", "feedback",
	},
	models.CategoryUpdates: {
		"update", "alert", "notification", "confirm", "verify", "security",
		"status", "reminder", "change", "info", "important", "action", "required",
		"announcement",
	},
	models.CategoryPromotions: {
		"promotion", "discount", "save", "offer", "deal", "coupon", "special",
		"exclusive", "limited", "free", "gift", "reward", "bonus", "points",
		"earn", "redeem",
	},
}

// gmailAliases maps Gmail tab names that are not labels themselves
var gmailAliases = map[string]string{
	"purchases":   models.CategoryShopping,
	"promos":      models.CategoryPromotions,
	"reservation": models.CategoryTravel,
}

var (
	gmailCategory = regexp.MustCompile(`(?i)category:(\w+)`)
	wordPatterns  = compileWordPatterns()
)

func compileWordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(keywords))
	for label, words := range keywords {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		patterns[label] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return patterns
}

// Normalize maps a free form label onto the fixed set. ok is false when
// nothing matches.
func Normalize(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, label := range Labels {
		if strings.ToLower(label) == name {
			return label, true
		}
	}
	label, ok := gmailAliases[name]
	return label, ok
}

// Heuristic labels an email from its Gmail category header, else from
// whole word keywords in the sender and subject, else Promotions.
func Heuristic(email *models.Email) string {
	if m := gmailCategory.FindStringSubmatch(email.GmailLabels); m != nil {
		if label, ok := Normalize(m[1]); ok {
			return label
		}
	}

	text := strings.ToLower(email.From + " " + email.Subject)
	for _, label := range Labels {
		if label == models.CategoryPromotions {
			break
		}
		if wordPatterns[label].MatchString(text) {
			return label
		}
	}
	return models.CategoryPromotions
}
