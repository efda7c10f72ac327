package store

import (
	"context"
	"fmt"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
)

type reportStore struct {
	*PGStore
}

// Reports returns an object implementing Reports interface
func (ps *PGStore) Reports() dependency.Reports {
	return &reportStore{
		PGStore: ps,
	}
}

func (rs *reportStore) UpsertCampaignReports(ctx context.Context, userId uuid.UUID, rows []entity.CampaignReportInsert) (int, error) {
	query := `
	INSERT INTO campaign_reports
		(user_id, file_name, platform, campaign_name, product_name,
		amount_spent, revenue, leads, conversions, clicks, impressions, reach,
		reporting_starts, reporting_ends, raw_data, created_at, updated_at)
	VALUES
		(:userId, :fileName, :platform, :campaignName, :productName,
		:amountSpent, :revenue, :leads, :conversions, :clicks, :impressions, :reach,
		:reportingStarts, :reportingEnds, :rawData, :createdAt, :updatedAt)
	ON CONFLICT (user_id, campaign_name, reporting_starts) DO UPDATE SET
		file_name = EXCLUDED.file_name,
		platform = EXCLUDED.platform,
		product_name = EXCLUDED.product_name,
		amount_spent = EXCLUDED.amount_spent,
		revenue = EXCLUDED.revenue,
		leads = EXCLUDED.leads,
		conversions = EXCLUDED.conversions,
		clicks = EXCLUDED.clicks,
		impressions = EXCLUDED.impressions,
		reach = EXCLUDED.reach,
		reporting_ends = EXCLUDED.reporting_ends,
		raw_data = EXCLUDED.raw_data,
		updated_at = EXCLUDED.updated_at`

	now := rs.Now()
	upserted := 0
	for _, row := range rows {
		err := ExecNamed(ctx, rs.db, query, map[string]any{
			"userId":          userId,
			"fileName":        row.FileName,
			"platform":        row.Platform,
			"campaignName":    row.CampaignName,
			"productName":     row.ProductName,
			"amountSpent":     row.AmountSpent,
			"revenue":         row.Revenue,
			"leads":           row.Leads,
			"conversions":     row.Conversions,
			"clicks":          row.Clicks,
			"impressions":     row.Impressions,
			"reach":           row.Reach,
			"reportingStarts": row.ReportingStarts,
			"reportingEnds":   row.ReportingEnds,
			"rawData":         []byte(row.RawData),
			"createdAt":       now,
			"updatedAt":       now,
		})
		if err != nil {
			return upserted, fmt.Errorf("can't upsert campaign report %q: %w", row.CampaignName, err)
		}
		upserted++
	}
	return upserted, nil
}

// UpsertDailyStats writes pre-aggregated per-day rows. Manual counters
// (confirmed_leads, delivered_orders) are preserved on conflict.
func (rs *reportStore) UpsertDailyStats(ctx context.Context, userId uuid.UUID, stats []entity.CampaignDailyStat) (int, error) {
	query := `
	INSERT INTO campaign_daily_stats
		(user_id, campaign_name, product_name, platform, date,
		amount_spent, revenue, leads, reach, impressions)
	VALUES
		(:userId, :campaignName, :productName, :platform, :date,
		:amountSpent, :revenue, :leads, :reach, :impressions)
	ON CONFLICT (user_id, campaign_name, date) DO UPDATE SET
		product_name = EXCLUDED.product_name,
		platform = EXCLUDED.platform,
		amount_spent = EXCLUDED.amount_spent,
		revenue = EXCLUDED.revenue,
		leads = EXCLUDED.leads,
		reach = EXCLUDED.reach,
		impressions = EXCLUDED.impressions`

	upserted := 0
	for _, st := range stats {
		err := ExecNamed(ctx, rs.db, query, map[string]any{
			"userId":       userId,
			"campaignName": st.CampaignName,
			"productName":  st.ProductName,
			"platform":     st.Platform,
			"date":         st.Date,
			"amountSpent":  st.AmountSpent,
			"revenue":      st.Revenue,
			"leads":        st.Leads,
			"reach":        st.Reach,
			"impressions":  st.Impressions,
		})
		if err != nil {
			return upserted, fmt.Errorf("can't upsert daily stat %q/%s: %w",
				st.CampaignName, st.Date.Format("2006-01-02"), err)
		}
		upserted++
	}
	return upserted, nil
}

func (rs *reportStore) GetReportsByProduct(ctx context.Context, userId uuid.UUID, productName string) ([]entity.CampaignReport, error) {
	query := `
	SELECT * FROM campaign_reports
	WHERE user_id = :userId AND product_name = :productName
	ORDER BY reporting_starts DESC, campaign_name`
	reports, err := QueryListNamed[entity.CampaignReport](ctx, rs.db, query, map[string]any{
		"userId":      userId,
		"productName": productName,
	})
	if err != nil {
		return nil, fmt.Errorf("can't get reports by product: %w", err)
	}
	return reports, nil
}

const aggregateColumns = `
	COALESCE(SUM(amount_spent), 0) AS total_spend,
	COALESCE(SUM(revenue), 0) AS total_revenue,
	COALESCE(SUM(leads), 0) AS total_leads,
	COALESCE(SUM(conversions), 0) AS total_conversions,
	COALESCE(SUM(clicks), 0) AS total_clicks,
	COALESCE(SUM(impressions), 0) AS total_impressions,
	COALESCE(SUM(reach), 0) AS total_reach,
	COALESCE(SUM(confirmed_leads), 0) AS confirmed_leads,
	COALESCE(SUM(delivered_orders), 0) AS delivered_orders`

func (rs *reportStore) GetProductAggregate(ctx context.Context, userId uuid.UUID, productName string) (*entity.CampaignAggregate, error) {
	query := `SELECT ` + aggregateColumns + `
	FROM campaign_reports
	WHERE user_id = :userId AND product_name = :productName`
	agg, err := QueryNamedOne[entity.CampaignAggregate](ctx, rs.db, query, map[string]any{
		"userId":      userId,
		"productName": productName,
	})
	if err != nil {
		return nil, fmt.Errorf("can't get product aggregate: %w", err)
	}
	return &agg, nil
}

func (rs *reportStore) GetProductPlatformStats(ctx context.Context, userId uuid.UUID, productName string) ([]entity.PlatformStat, error) {
	query := `
	SELECT
		platform,
		COALESCE(SUM(amount_spent), 0) AS spend,
		COALESCE(SUM(revenue), 0) AS revenue,
		COALESCE(SUM(leads), 0) AS leads
	FROM campaign_reports
	WHERE user_id = :userId AND product_name = :productName
	GROUP BY platform
	ORDER BY platform`
	stats, err := QueryListNamed[entity.PlatformStat](ctx, rs.db, query, map[string]any{
		"userId":      userId,
		"productName": productName,
	})
	if err != nil {
		return nil, fmt.Errorf("can't get platform stats: %w", err)
	}
	return stats, nil
}

// reportFilterClauses appends WHERE conditions for the optional filter
// fields, filling params along the way.
func reportFilterClauses(f entity.ReportFilter, dateColumn string, params map[string]any) string {
	where := ""
	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND %s >= :from", dateColumn)
		params["from"] = f.From
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND %s <= :to", dateColumn)
		params["to"] = f.To
	}
	if f.Platform != "" {
		where += " AND platform = :platform"
		params["platform"] = f.Platform
	}
	if f.Product != "" {
		where += " AND product_name = :product"
		params["product"] = f.Product
	}
	return where
}

func (rs *reportStore) GetAggregate(ctx context.Context, userId uuid.UUID, f entity.ReportFilter) (*entity.CampaignAggregate, error) {
	params := map[string]any{
		"userId": userId,
	}
	query := `SELECT ` + aggregateColumns + `
	FROM campaign_reports
	WHERE user_id = :userId` + reportFilterClauses(f, "reporting_starts", params)

	agg, err := QueryNamedOne[entity.CampaignAggregate](ctx, rs.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("can't get aggregate: %w", err)
	}
	return &agg, nil
}

func (rs *reportStore) GetDailyStats(ctx context.Context, userId uuid.UUID, f entity.ReportFilter) ([]entity.CampaignDailyStat, error) {
	params := map[string]any{
		"userId": userId,
	}
	query := `
	SELECT * FROM campaign_daily_stats
	WHERE user_id = :userId` + reportFilterClauses(f, "date", params) + `
	ORDER BY date, campaign_name`

	stats, err := QueryListNamed[entity.CampaignDailyStat](ctx, rs.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("can't get daily stats: %w", err)
	}
	return stats, nil
}

// SetManualCounts overrides confirmed_leads and delivered_orders on every
// report row of the campaign and mirrors them into daily stats.
func (rs *reportStore) SetManualCounts(ctx context.Context, userId uuid.UUID, campaignName string, confirmedLeads, deliveredOrders int) (int, error) {
	params := map[string]any{
		"userId":          userId,
		"campaignName":    campaignName,
		"confirmedLeads":  confirmedLeads,
		"deliveredOrders": deliveredOrders,
		"updatedAt":       rs.Now(),
	}
	query := `
	UPDATE campaign_reports SET
		confirmed_leads = :confirmedLeads,
		delivered_orders = :deliveredOrders,
		updated_at = :updatedAt
	WHERE user_id = :userId AND campaign_name = :campaignName`
	n, err := ExecNamedAffected(ctx, rs.db, query, params)
	if err != nil {
		return 0, fmt.Errorf("can't set manual counts: %w", err)
	}

	mirror := `
	UPDATE campaign_daily_stats SET
		confirmed_leads = :confirmedLeads,
		delivered_orders = :deliveredOrders
	WHERE user_id = :userId AND campaign_name = :campaignName`
	if err := ExecNamed(ctx, rs.db, mirror, params); err != nil {
		return 0, fmt.Errorf("can't mirror manual counts: %w", err)
	}
	return n, nil
}
