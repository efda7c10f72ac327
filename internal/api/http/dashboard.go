package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
)

type platformBreakdown struct {
	Spend           decimal.Decimal `json:"spend"`
	Revenue         decimal.Decimal `json:"revenue"`
	Leads           int             `json:"leads"`
	Reach           int             `json:"reach"`
	Impressions     int             `json:"impressions"`
	ConfirmedLeads  int             `json:"confirmed_leads"`
	DeliveredOrders int             `json:"delivered_orders"`
}

func dashboardFilter(r *http.Request) (entity.ReportFilter, error) {
	var f entity.ReportFilter
	q := r.URL.Query()
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("bad start_date: %w", err)
		}
		f.From = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("bad end_date: %w", err)
		}
		f.To = t
	}
	if v := q.Get("platform"); v != "" && v != "all" {
		if !entity.IsValidPlatform(v) {
			return f, fmt.Errorf("unknown platform %q", v)
		}
		f.Platform = v
	}
	if v := q.Get("product"); v != "" && v != "all" {
		f.Product = v
	}
	return f, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userId := userIdFromCtx(r)

	filter, err := dashboardFilter(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	agg, err := s.rep.Reports().GetAggregate(r.Context(), userId, filter)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	metricsRows, err := s.rep.ProductMetrics().GetMetricsForUser(r.Context(), userId)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	daily, err := s.rep.Reports().GetDailyStats(r.Context(), userId, filter)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	recentUploads, err := s.rep.Uploads().RecentUploads(r.Context(), userId, 5)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	kpis := metrics.CalculateDashboard(metrics.DashboardInput{
		Aggregate: *agg,
		Metrics:   metricsRows,
	}, s.fees)

	platformData := map[string]*platformBreakdown{}
	productData := map[string]*platformBreakdown{}
	for _, st := range daily {
		for _, key := range []struct {
			m    map[string]*platformBreakdown
			name string
		}{
			{platformData, st.Platform},
			{productData, st.ProductName},
		} {
			b, ok := key.m[key.name]
			if !ok {
				b = &platformBreakdown{}
				key.m[key.name] = b
			}
			b.Spend = b.Spend.Add(st.AmountSpent)
			b.Revenue = b.Revenue.Add(st.Revenue)
			b.Leads += st.Leads
			b.Reach += st.Reach
			b.Impressions += st.Impressions
			b.ConfirmedLeads += st.ConfirmedLeads
			b.DeliveredOrders += st.DeliveredOrders
		}
	}

	// last 10 days of campaign activity, newest first
	recentCampaigns := daily
	sort.SliceStable(recentCampaigns, func(i, j int) bool {
		return recentCampaigns[i].Date.After(recentCampaigns[j].Date)
	})
	if len(recentCampaigns) > 10 {
		recentCampaigns = recentCampaigns[:10]
	}

	render.JSON(w, r, map[string]any{
		"kpis":            kpis,
		"platformData":    platformData,
		"productData":     productData,
		"topProducts":     topProducts(productData),
		"recentCampaigns": recentCampaigns,
		"recentUploads":   recentUploads,
		"summary": map[string]any{
			"totalCampaigns":  len(daily),
			"activePlatforms": len(platformData),
			"activeProducts":  len(productData),
			"profitMargin":    kpis.ProfitMargin,
		},
	})
}

type topProduct struct {
	Name string `json:"name"`
	platformBreakdown
	Roas decimal.Decimal `json:"roas"`
}

// topProducts ranks the product breakdown by ROAS and keeps the best
// five. Names are iterated sorted so equal-ROAS products rank stably.
func topProducts(productData map[string]*platformBreakdown) []topProduct {
	names := make([]string, 0, len(productData))
	for name := range productData {
		names = append(names, name)
	}
	sort.Strings(names)

	top := make([]topProduct, 0, len(names))
	for _, name := range names {
		b := productData[name]
		tp := topProduct{Name: name, platformBreakdown: *b}
		if b.Spend.IsPositive() {
			tp.Roas = b.Revenue.Div(b.Spend).Mul(decimal.NewFromInt(100))
		}
		top = append(top, tp)
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Roas.GreaterThan(top[j].Roas)
	})
	if len(top) > 5 {
		top = top[:5]
	}
	return top
}
