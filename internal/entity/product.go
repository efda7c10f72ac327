package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderFactor string

const (
	Ascending  OrderFactor = "ASC"
	Descending OrderFactor = "DESC"
)

func (of *OrderFactor) String() string {
	if of != nil {
		if *of == Ascending {
			return "ASC"
		}
		return "DESC"
	}
	return "ASC"
}

type SortFactor string

const (
	SortCreatedAt    SortFactor = "created_at"
	SortProductName  SortFactor = "product_name"
	SortTotalSpend   SortFactor = "total_spend"
	SortTotalRevenue SortFactor = "total_revenue"
	SortProfit       SortFactor = "profit"
	SortRoi          SortFactor = "roi"
	SortRoas         SortFactor = "roas"
)

var validSortFactors = map[SortFactor]bool{
	SortCreatedAt:    true,
	SortProductName:  true,
	SortTotalSpend:   true,
	SortTotalRevenue: true,
	SortProfit:       true,
	SortRoi:          true,
	SortRoas:         true,
}

func IsValidSortFactor(factor string) bool {
	return validSortFactors[SortFactor(factor)]
}

// ProductInsert carries the manual fields a user edits per product.
type ProductInsert struct {
	ProductName          string          `db:"product_name" json:"product_name" valid:"required"`
	UnitCost             decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	SellingPrice         decimal.Decimal `db:"selling_price" json:"selling_price"`
	UnitsDelivered       int             `db:"units_delivered" json:"units_delivered"`
	StockPurchased       int             `db:"stock_purchased" json:"stock_purchased"`
	RevenuePerConversion decimal.Decimal `db:"revenue_per_conversion" json:"revenue_per_conversion"`
}

// Product represents the products table, unique per (user_id, product_name).
type Product struct {
	Id        int       `db:"id" json:"id"`
	UserId    uuid.UUID `db:"user_id" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	ProductInsert
}

// ProductUpdate is a partial update; nil fields are left untouched.
type ProductUpdate struct {
	ProductName          *string          `json:"product_name"`
	UnitCost             *decimal.Decimal `json:"unit_cost"`
	SellingPrice         *decimal.Decimal `json:"selling_price"`
	UnitsDelivered       *int             `json:"units_delivered"`
	StockPurchased       *int             `json:"stock_purchased"`
	RevenuePerConversion *decimal.Decimal `json:"revenue_per_conversion"`
}

func (pu *ProductUpdate) Empty() bool {
	return pu.ProductName == nil && pu.UnitCost == nil && pu.SellingPrice == nil &&
		pu.UnitsDelivered == nil && pu.StockPurchased == nil && pu.RevenuePerConversion == nil
}

// ProductMetrics represents the product_metrics table, unique per
// (user_id, product_id). Fee columns override the configured defaults
// when set.
type ProductMetrics struct {
	Id                    int                 `db:"id" json:"id"`
	UserId                uuid.UUID           `db:"user_id" json:"-"`
	ProductId             int                 `db:"product_id" json:"product_id"`
	UnitCost              decimal.Decimal     `db:"unit_cost" json:"unit_cost"`
	SellingPrice          decimal.Decimal     `db:"selling_price" json:"selling_price"`
	UnitsDelivered        int                 `db:"units_delivered" json:"units_delivered"`
	StockPurchased        int                 `db:"stock_purchased" json:"stock_purchased"`
	CodFeePercentage      decimal.NullDecimal `db:"cod_fee_percentage" json:"cod_fee_percentage"`
	ServiceFeePerDelivery decimal.NullDecimal `db:"service_fee_per_delivery" json:"service_fee_per_delivery"`
	ServiceFeePerLead     decimal.NullDecimal `db:"service_fee_per_lead" json:"service_fee_per_lead"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at" json:"updated_at"`
}

// HasManualValues reports whether any COD input was set on the row.
// Rows auto-created during CSV ingestion are all zero and must not
// shadow the fields stored on the product itself.
func (pm *ProductMetrics) HasManualValues() bool {
	return !pm.UnitCost.IsZero() || !pm.SellingPrice.IsZero() ||
		pm.UnitsDelivered != 0 || pm.StockPurchased != 0
}

// ProductMetricsInsert is the user-editable part of ProductMetrics.
type ProductMetricsInsert struct {
	UnitCost       decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	SellingPrice   decimal.Decimal `db:"selling_price" json:"selling_price"`
	UnitsDelivered int             `db:"units_delivered" json:"units_delivered"`
	StockPurchased int             `db:"stock_purchased" json:"stock_purchased"`
}

func (pmi *ProductMetricsInsert) Validate() error {
	if pmi.UnitCost.IsNegative() || pmi.SellingPrice.IsNegative() ||
		pmi.UnitsDelivered < 0 || pmi.StockPurchased < 0 {
		return ErrNegativeMetrics
	}
	return nil
}

// CampaignAggregate sums a product's campaign rows.
type CampaignAggregate struct {
	TotalSpend       decimal.Decimal `db:"total_spend" json:"total_spend"`
	TotalRevenue     decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	TotalLeads       int             `db:"total_leads" json:"total_leads"`
	TotalConversions int             `db:"total_conversions" json:"total_conversions"`
	TotalClicks      int             `db:"total_clicks" json:"total_clicks"`
	TotalImpressions int             `db:"total_impressions" json:"total_impressions"`
	TotalReach       int             `db:"total_reach" json:"total_reach"`
	ConfirmedLeads   int             `db:"confirmed_leads" json:"confirmed_leads"`
	DeliveredOrders  int             `db:"delivered_orders" json:"delivered_orders"`
}

// ProductWithStats is a product plus its computed campaign aggregates and
// COD figures, as returned by GET /api/products.
type ProductWithStats struct {
	Product
	TotalSpend       decimal.Decimal `json:"total_spend"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalConversions int             `json:"total_conversions"`
	TotalLeads       int             `json:"total_leads"`
	Profit           decimal.Decimal `json:"profit"`
	Roi              decimal.Decimal `json:"roi"`
	Roas             decimal.Decimal `json:"roas"`
	BestPlatform     string          `json:"best_platform"`
}
