package metrics

import (
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/shopspring/decimal"
)

// DashboardKPIs is the headline block of the dashboard endpoint.
type DashboardKPIs struct {
	TotalAdSpend         decimal.Decimal `json:"totalAdSpend"`
	TotalLeads           int             `json:"totalLeads"`
	TotalReach           int             `json:"totalReach"`
	TotalImpressions     int             `json:"totalImpressions"`
	TotalConfirmedLeads  int             `json:"totalConfirmedLeads"`
	TotalDeliveredOrders int             `json:"totalDeliveredOrders"`
	GrossCashCollected   decimal.Decimal `json:"grossCashCollected"`
	CodFees              decimal.Decimal `json:"codFees"`
	ServiceFees          decimal.Decimal `json:"serviceFees"`
	TotalProductCosts    decimal.Decimal `json:"totalProductCosts"`
	NetProfit            decimal.Decimal `json:"netProfit"`
	Roas                 decimal.Decimal `json:"roas"`
	Cpa                  decimal.Decimal `json:"cpa"`
	CostPerDelivered     decimal.Decimal `json:"costPerDelivered"`
	LeadDensity          decimal.Decimal `json:"leadDensity"`
	ProfitMargin         decimal.Decimal `json:"profitMargin"`
}

// DashboardInput aggregates the filtered campaign figures plus the user's
// stored product metrics rows.
type DashboardInput struct {
	Aggregate entity.CampaignAggregate
	Metrics   []entity.ProductMetrics
}

// CalculateDashboard folds the user's product metrics into the campaign
// aggregate. Fee overrides apply per product row except the per-lead
// service fee, which is charged across the campaign lead total.
func CalculateDashboard(in DashboardInput, fees Fees) DashboardKPIs {
	agg := in.Aggregate
	k := DashboardKPIs{
		TotalAdSpend:         agg.TotalSpend,
		TotalLeads:           agg.TotalLeads,
		TotalReach:           agg.TotalReach,
		TotalImpressions:     agg.TotalImpressions,
		TotalConfirmedLeads:  agg.ConfirmedLeads,
		TotalDeliveredOrders: agg.DeliveredOrders,
	}

	for i := range in.Metrics {
		pm := &in.Metrics[i]
		pmFees := fees.Override(pm)
		delivered := decimal.NewFromInt(int64(pm.UnitsDelivered))
		cash := pm.SellingPrice.Mul(delivered)

		k.GrossCashCollected = k.GrossCashCollected.Add(cash)
		k.TotalProductCosts = k.TotalProductCosts.Add(pm.UnitCost.Mul(delivered))
		k.CodFees = k.CodFees.Add(cash.Mul(pmFees.CodFeePercentage).Div(hundred))
		k.ServiceFees = k.ServiceFees.Add(delivered.Mul(pmFees.ServiceFeePerDelivery))
	}

	leads := decimal.NewFromInt(int64(agg.TotalLeads))
	k.ServiceFees = k.ServiceFees.Add(leads.Mul(fees.ServiceFeePerLead))
	k.NetProfit = k.GrossCashCollected.
		Sub(k.TotalAdSpend).
		Sub(k.CodFees).
		Sub(k.ServiceFees).
		Sub(k.TotalProductCosts)

	if k.TotalAdSpend.IsPositive() {
		k.Roas = k.GrossCashCollected.Div(k.TotalAdSpend).Mul(hundred)
	}
	if agg.TotalLeads > 0 {
		k.Cpa = k.TotalAdSpend.Div(leads)
		k.LeadDensity = decimal.NewFromInt(int64(agg.TotalReach)).Div(leads)
	}
	if agg.DeliveredOrders > 0 {
		k.CostPerDelivered = k.TotalAdSpend.Div(decimal.NewFromInt(int64(agg.DeliveredOrders)))
	}
	if k.GrossCashCollected.IsPositive() {
		k.ProfitMargin = k.NetProfit.Div(k.GrossCashCollected).Mul(hundred)
	}
	return k
}
