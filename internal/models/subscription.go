package models

// LocatorOrigin tells which extraction strategy produced a locator
type LocatorOrigin string

const (
	OriginHeader LocatorOrigin = "Header"
	OriginBody   LocatorOrigin = "Body"
)

// UnknownDate is used when a message date cannot be determined
const UnknownDate = "Unknown"

// Category labels produced by the heuristic categorizer.
const (
	CategoryPromotions = "Promotions"
	CategoryShopping   = "Shopping"
	CategorySocial     = "Social"
	CategoryFinance    = "Finance"
	CategoryTravel     = "Travel"
	CategoryForums     = "Forums"
	CategoryUpdates    = "Updates"
)

// SubscriptionRecord is the result of scanning one message
type SubscriptionRecord struct {
	SenderDisplay string        `yaml:"sender" json:"sender"`
	SenderAddress string        `yaml:"senderAddress,omitempty" json:"senderAddress,omitempty"`
	Subject       string        `yaml:"subject,omitempty" json:"subject,omitempty"`
	Locator       string        `yaml:"locator,omitempty" json:"locator,omitempty"`
	LocatorOrigin LocatorOrigin `yaml:"method,omitempty" json:"method,omitempty"`
	OneClick      bool          `yaml:"oneClick,omitempty" json:"oneClick,omitempty"`
	Provider      string        `yaml:"provider" json:"provider"`
	Category      string        `yaml:"category" json:"category"`
	ReceivedAt    string        `yaml:"receivedAt" json:"receivedAt"`
	MessageID     string        `yaml:"messageId" json:"messageId"`
}

// HasLocator reports whether an unsubscribe locator was found for the message.
func (r SubscriptionRecord) HasLocator() bool {
	return r.Locator != ""
}

// SubscriptionStats summarizes newsletter-like traffic in a folder
type SubscriptionStats struct {
	Folder           string `yaml:"folder" json:"folder"`
	Total            int    `yaml:"total" json:"total"`
	TotalPromotional int    `yaml:"totalPromotional" json:"totalPromotional"`
}
