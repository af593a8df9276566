package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing statuses
const (
	ListingStatusDraft     = "DRAFT"
	ListingStatusActive    = "ACTIVE"
	ListingStatusSold      = "SOLD"
	ListingStatusSuspended = "SUSPENDED"
	ListingStatusExpired   = "EXPIRED"
)

// Listing categories
const (
	CategoryCrypto        = "CRYPTO"
	CategoryTrading       = "TRADING"
	CategoryTech          = "TECH"
	CategoryBusiness      = "BUSINESS"
	CategoryEducation     = "EDUCATION"
	CategoryEntertainment = "ENTERTAINMENT"
	CategoryOther         = "OTHER"
)

func IsValidCategory(c string) bool {
	switch c {
	case CategoryCrypto, CategoryTrading, CategoryTech, CategoryBusiness,
		CategoryEducation, CategoryEntertainment, CategoryOther:
		return true
	}
	return false
}

// GroupListing is a Telegram group offered for sale.
type GroupListing struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`

	GroupID          int64   `json:"group_id"`
	GroupUsername    *string `json:"group_username,omitempty"`
	GroupTitle       string  `json:"group_title"`
	GroupDescription string  `json:"group_description,omitempty"`
	MemberCount      int     `json:"member_count"`

	PriceUSD decimal.Decimal `json:"price_usd"`
	Category string          `json:"category"`
	Status   string          `json:"status"`

	// Snapshot taken when the listing was created, used by verification.
	AdminListSnapshot []int64    `json:"admin_list_snapshot,omitempty"`
	BotIsAdmin        bool       `json:"bot_is_admin"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (l *GroupListing) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
