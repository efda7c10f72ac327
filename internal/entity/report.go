package entity

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Platform string

const (
	PlatformFacebook Platform = "facebook"
	PlatformTiktok   Platform = "tiktok"
	PlatformGoogle   Platform = "google"
)

var validPlatforms = map[Platform]bool{
	PlatformFacebook: true,
	PlatformTiktok:   true,
	PlatformGoogle:   true,
}

func IsValidPlatform(p string) bool {
	return validPlatforms[Platform(p)]
}

// CampaignReportInsert is the normalized shape of a single CSV row.
type CampaignReportInsert struct {
	FileName        string          `db:"file_name" json:"file_name"`
	Platform        string          `db:"platform" json:"platform"`
	CampaignName    string          `db:"campaign_name" json:"campaign_name"`
	ProductName     string          `db:"product_name" json:"product_name"`
	AmountSpent     decimal.Decimal `db:"amount_spent" json:"amount_spent"`
	Revenue         decimal.Decimal `db:"revenue" json:"revenue"`
	Leads           int             `db:"leads" json:"leads"`
	Conversions     int             `db:"conversions" json:"conversions"`
	Clicks          int             `db:"clicks" json:"clicks"`
	Impressions     int             `db:"impressions" json:"impressions"`
	Reach           int             `db:"reach" json:"reach"`
	ReportingStarts time.Time       `db:"reporting_starts" json:"reporting_starts"`
	ReportingEnds   sql.NullTime    `db:"reporting_ends" json:"reporting_ends"`
	RawData         json.RawMessage `db:"raw_data" json:"raw_data,omitempty"`
}

// CampaignReport is a row of campaign_reports, unique per
// (user_id, campaign_name, reporting_starts).
type CampaignReport struct {
	Id              int       `db:"id" json:"id"`
	UserId          uuid.UUID `db:"user_id" json:"-"`
	ConfirmedLeads  int       `db:"confirmed_leads" json:"confirmed_leads"`
	DeliveredOrders int       `db:"delivered_orders" json:"delivered_orders"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
	CampaignReportInsert
}

// CampaignDailyStat is a per-day aggregation of campaign rows, unique per
// (user_id, campaign_name, date).
type CampaignDailyStat struct {
	Id              int             `db:"id" json:"id"`
	UserId          uuid.UUID       `db:"user_id" json:"-"`
	CampaignName    string          `db:"campaign_name" json:"campaign_name"`
	ProductName     string          `db:"product_name" json:"product_name"`
	Platform        string          `db:"platform" json:"platform"`
	Date            time.Time       `db:"date" json:"date"`
	AmountSpent     decimal.Decimal `db:"amount_spent" json:"amount_spent"`
	Revenue         decimal.Decimal `db:"revenue" json:"revenue"`
	Leads           int             `db:"leads" json:"leads"`
	Reach           int             `db:"reach" json:"reach"`
	Impressions     int             `db:"impressions" json:"impressions"`
	ConfirmedLeads  int             `db:"confirmed_leads" json:"confirmed_leads"`
	DeliveredOrders int             `db:"delivered_orders" json:"delivered_orders"`
}

// PlatformStat is an aggregate of a product's campaigns on one platform.
type PlatformStat struct {
	Platform string          `db:"platform" json:"platform"`
	Spend    decimal.Decimal `db:"spend" json:"spend"`
	Revenue  decimal.Decimal `db:"revenue" json:"revenue"`
	Leads    int             `db:"leads" json:"leads"`
}

// ReportFilter narrows campaign queries for the dashboard.
type ReportFilter struct {
	From     time.Time
	To       time.Time
	Platform string
	Product  string
}
