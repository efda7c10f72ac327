// Package metrics holds the COD profitability math. All money and ratio
// values are decimals, never floats.
package metrics

import (
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/shopspring/decimal"
)

// Config carries the fee defaults applied when a product has no override.
type Config struct {
	CodFeePercentage      float64 `mapstructure:"cod_fee_percentage"`
	ServiceFeePerDelivery float64 `mapstructure:"service_fee_per_delivery"`
	ServiceFeePerLead     float64 `mapstructure:"service_fee_per_lead"`
}

// Fees is the decimal form of the fee configuration.
type Fees struct {
	CodFeePercentage      decimal.Decimal
	ServiceFeePerDelivery decimal.Decimal
	ServiceFeePerLead     decimal.Decimal
}

// DefaultFees returns the standard COD fee schedule: 5% COD fee,
// $8.50 per delivery, $0.10 per lead.
func DefaultFees() Fees {
	return Fees{
		CodFeePercentage:      decimal.NewFromInt(5),
		ServiceFeePerDelivery: decimal.RequireFromString("8.5"),
		ServiceFeePerLead:     decimal.RequireFromString("0.1"),
	}
}

// FeesFromConfig converts config values, falling back to the defaults for
// fields left at zero.
func FeesFromConfig(cfg Config) Fees {
	fees := DefaultFees()
	if cfg.CodFeePercentage > 0 {
		fees.CodFeePercentage = decimal.NewFromFloat(cfg.CodFeePercentage)
	}
	if cfg.ServiceFeePerDelivery > 0 {
		fees.ServiceFeePerDelivery = decimal.NewFromFloat(cfg.ServiceFeePerDelivery)
	}
	if cfg.ServiceFeePerLead > 0 {
		fees.ServiceFeePerLead = decimal.NewFromFloat(cfg.ServiceFeePerLead)
	}
	return fees
}

// Override returns a copy of the fees with the product's stored overrides
// applied where set.
func (f Fees) Override(pm *entity.ProductMetrics) Fees {
	if pm == nil {
		return f
	}
	if pm.CodFeePercentage.Valid {
		f.CodFeePercentage = pm.CodFeePercentage.Decimal
	}
	if pm.ServiceFeePerDelivery.Valid {
		f.ServiceFeePerDelivery = pm.ServiceFeePerDelivery.Decimal
	}
	if pm.ServiceFeePerLead.Valid {
		f.ServiceFeePerLead = pm.ServiceFeePerLead.Decimal
	}
	return f
}

// Input describes one product's manual figures plus its campaign totals.
type Input struct {
	UnitCost       decimal.Decimal
	SellingPrice   decimal.Decimal
	UnitsDelivered int
	TotalAdSpend   decimal.Decimal
	TotalLeads     int
}

// Calculations is the COD profitability breakdown for one product.
type Calculations struct {
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalProductCost decimal.Decimal `json:"total_product_cost"`
	CodFees          decimal.Decimal `json:"cod_fees"`
	ServiceFees      decimal.Decimal `json:"service_fees"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	Roi              decimal.Decimal `json:"roi"`
	Roas             decimal.Decimal `json:"roas"`
	ProfitMargin     decimal.Decimal `json:"profit_margin"`
}

var hundred = decimal.NewFromInt(100)

// Calculate runs the COD breakdown. Ratios divide by spend or revenue and
// come back zero when the denominator is zero; negative profit is returned
// as is.
func Calculate(in Input, fees Fees) Calculations {
	delivered := decimal.NewFromInt(int64(in.UnitsDelivered))
	leads := decimal.NewFromInt(int64(in.TotalLeads))

	c := Calculations{
		TotalRevenue:     in.SellingPrice.Mul(delivered),
		TotalProductCost: in.UnitCost.Mul(delivered),
	}
	c.CodFees = c.TotalRevenue.Mul(fees.CodFeePercentage).Div(hundred)
	c.ServiceFees = delivered.Mul(fees.ServiceFeePerDelivery).
		Add(leads.Mul(fees.ServiceFeePerLead))
	c.NetProfit = c.TotalRevenue.
		Sub(in.TotalAdSpend).
		Sub(c.CodFees).
		Sub(c.ServiceFees).
		Sub(c.TotalProductCost)

	if in.TotalAdSpend.IsPositive() {
		c.Roi = c.NetProfit.Div(in.TotalAdSpend).Mul(hundred)
		c.Roas = c.TotalRevenue.Div(in.TotalAdSpend)
	}
	if c.TotalRevenue.IsPositive() {
		c.ProfitMargin = c.NetProfit.Div(c.TotalRevenue).Mul(hundred)
	}
	return c
}

// BestPlatform picks the platform with the highest revenue-to-spend ratio
// among the product's campaigns. Stats must come sorted by platform name,
// ties keep the first one. Returns "N/A" when no platform has spend.
func BestPlatform(stats []entity.PlatformStat) string {
	best := "N/A"
	var bestRatio decimal.Decimal
	for _, st := range stats {
		if !st.Spend.IsPositive() {
			continue
		}
		ratio := st.Revenue.Div(st.Spend)
		if best == "N/A" || ratio.GreaterThan(bestRatio) {
			best = st.Platform
			bestRatio = ratio
		}
	}
	return best
}
