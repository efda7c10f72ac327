package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB connects to the database named by BIZENSE_TEST_POSTGRES_DSN
// and wipes all data. Tests are skipped when the variable is unset.
func newTestDB(t *testing.T) *PGStore {
	dsn := os.Getenv("BIZENSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BIZENSE_TEST_POSTGRES_DSN is not set")
	}

	db, err := New(context.Background(), Config{
		DSN:         dsn,
		Automigrate: true,
	})
	require.NoError(t, err)

	for _, table := range []string{
		"upload_dedup",
		"upload_history",
		"campaign_daily_stats",
		"campaign_reports",
		"product_metrics",
		"products",
		"admins",
	} {
		_, err = db.db.ExecContext(context.Background(), "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return db
}

func newTestUser(t *testing.T, db *PGStore) uuid.UUID {
	id, err := db.Admin().AddAdmin(context.Background(), "test@bizense.io", "salt$key")
	require.NoError(t, err)
	return id
}

func TestAdmins(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	id, err := db.Admin().AddAdmin(ctx, "owner@bizense.io", "salt$key")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	// duplicate email
	_, err = db.Admin().AddAdmin(ctx, "owner@bizense.io", "salt$key2")
	assert.Error(t, err)

	admin, err := db.Admin().GetAdminByEmail(ctx, "owner@bizense.io")
	require.NoError(t, err)
	assert.Equal(t, id, admin.Id)

	hash, err := db.Admin().PasswordHashByEmail(ctx, "owner@bizense.io")
	require.NoError(t, err)
	assert.Equal(t, "salt$key", hash)

	require.NoError(t, db.Admin().DeleteAdmin(ctx, "owner@bizense.io"))
	assert.Error(t, db.Admin().DeleteAdmin(ctx, "owner@bizense.io"))
}

func TestEnsureProducts(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	created, err := db.Products().EnsureProducts(ctx, userId, []string{"Serum X", "Cream Y"})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// second run is a no-op
	created, err = db.Products().EnsureProducts(ctx, userId, []string{"Serum X", "Gel Z"})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	products, err := db.Products().ListProducts(ctx, userId, "")
	require.NoError(t, err)
	assert.Len(t, products, 3)

	// the metrics row exists without an explicit create
	metrics, err := db.ProductMetrics().GetMetricsForUser(ctx, userId)
	require.NoError(t, err)
	assert.Len(t, metrics, 3)

	filtered, err := db.Products().ListProducts(ctx, userId, "serum")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Serum X", filtered[0].ProductName)
}

func TestProductCRUD(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	p, err := db.Products().AddProduct(ctx, userId, &entity.ProductInsert{
		ProductName:  "Serum X",
		UnitCost:     decimal.RequireFromString("20"),
		SellingPrice: decimal.RequireFromString("50"),
	})
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("60")
	updated, err := db.Products().UpdateProduct(ctx, userId, p.Id, &entity.ProductUpdate{
		SellingPrice: &newPrice,
	})
	require.NoError(t, err)
	assert.True(t, updated.SellingPrice.Equal(newPrice))
	assert.Equal(t, "Serum X", updated.ProductName)

	require.NoError(t, db.Products().DeleteProductById(ctx, userId, p.Id))
	_, err = db.Products().GetProductById(ctx, userId, p.Id)
	assert.Error(t, err)
}

func upsertTestReports(t *testing.T, db *PGStore, userId uuid.UUID) {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := []entity.CampaignReportInsert{
		{
			FileName:        "export.csv",
			Platform:        "facebook",
			CampaignName:    "Serum X - Facebook - Scale",
			ProductName:     "Serum X",
			AmountSpent:     decimal.RequireFromString("500"),
			Revenue:         decimal.RequireFromString("1200"),
			Leads:           100,
			Conversions:     20,
			Reach:           4000,
			ReportingStarts: day,
			RawData:         []byte(`{"Campaign name":"Serum X - Facebook - Scale"}`),
		},
		{
			FileName:        "export.csv",
			Platform:        "tiktok",
			CampaignName:    "Serum X - TikTok",
			ProductName:     "Serum X",
			AmountSpent:     decimal.RequireFromString("200"),
			Revenue:         decimal.RequireFromString("300"),
			Leads:           40,
			ReportingStarts: day,
		},
	}
	n, err := db.Reports().UpsertCampaignReports(context.Background(), userId, rows)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestReports(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	upsertTestReports(t, db, userId)
	// re-upload updates in place
	upsertTestReports(t, db, userId)

	reports, err := db.Reports().GetReportsByProduct(ctx, userId, "Serum X")
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	agg, err := db.Reports().GetProductAggregate(ctx, userId, "Serum X")
	require.NoError(t, err)
	assert.Equal(t, "700", agg.TotalSpend.String())
	assert.Equal(t, 140, agg.TotalLeads)

	stats, err := db.Reports().GetProductPlatformStats(ctx, userId, "Serum X")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "facebook", stats[0].Platform)
	assert.Equal(t, "tiktok", stats[1].Platform)

	filtered, err := db.Reports().GetAggregate(ctx, userId, entity.ReportFilter{Platform: "tiktok"})
	require.NoError(t, err)
	assert.Equal(t, "200", filtered.TotalSpend.String())

	n, err := db.Reports().SetManualCounts(ctx, userId, "Serum X - Facebook - Scale", 80, 60)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	agg, err = db.Reports().GetProductAggregate(ctx, userId, "Serum X")
	require.NoError(t, err)
	assert.Equal(t, 80, agg.ConfirmedLeads)
	assert.Equal(t, 60, agg.DeliveredOrders)
}

func TestProductMetricsMirror(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	_, err := db.Products().EnsureProducts(ctx, userId, []string{"Serum X"})
	require.NoError(t, err)
	products, err := db.Products().ListProducts(ctx, userId, "")
	require.NoError(t, err)
	require.Len(t, products, 1)
	id := products[0].Id

	// manual fields set on the product reach the auto-created metrics row
	cost := decimal.RequireFromString("20")
	price := decimal.RequireFromString("50")
	delivered := 100
	_, err = db.Products().UpdateProduct(ctx, userId, id, &entity.ProductUpdate{
		UnitCost:       &cost,
		SellingPrice:   &price,
		UnitsDelivered: &delivered,
	})
	require.NoError(t, err)

	pm, err := db.ProductMetrics().GetOrCreateProductMetrics(ctx, userId, id)
	require.NoError(t, err)
	assert.True(t, pm.SellingPrice.Equal(price))
	assert.True(t, pm.UnitCost.Equal(cost))
	assert.Equal(t, 100, pm.UnitsDelivered)

	// and edits on the metrics side reach the product
	_, err = db.ProductMetrics().UpsertProductMetrics(ctx, userId, id, &entity.ProductMetricsInsert{
		UnitCost:       decimal.RequireFromString("25"),
		SellingPrice:   decimal.RequireFromString("60"),
		UnitsDelivered: 120,
	})
	require.NoError(t, err)

	p, err := db.Products().GetProductById(ctx, userId, id)
	require.NoError(t, err)
	assert.True(t, p.SellingPrice.Equal(decimal.RequireFromString("60")))
	assert.Equal(t, 120, p.UnitsDelivered)
}

func TestClaimUpload(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	ok, err := db.Uploads().ClaimUpload(ctx, userId, "hash1", "facebook", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// same file within the window
	ok, err = db.Uploads().ClaimUpload(ctx, userId, "hash1", "facebook", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// different platform is a different slot
	ok, err = db.Uploads().ClaimUpload(ctx, userId, "hash1", "tiktok", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// an expired window frees the slot
	ok, err = db.Uploads().ClaimUpload(ctx, userId, "hash1", "facebook", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// a released claim can be retaken right away
	require.NoError(t, db.Uploads().ReleaseUpload(ctx, userId, "hash1", "facebook"))
	ok, err = db.Uploads().ClaimUpload(ctx, userId, "hash1", "facebook", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUploadHistory(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	for _, rec := range []entity.UploadRecord{
		{UserId: userId, FileName: "fb.csv", FileHash: "h1", Platform: "facebook", RowsProcessed: 10, Status: entity.UploadStatusCompleted},
		{UserId: userId, FileName: "tt.csv", FileHash: "h2", Platform: "tiktok", RowsProcessed: 5, Status: entity.UploadStatusFailed},
	} {
		rec := rec
		_, err := db.Uploads().AddUploadRecord(ctx, &rec)
		require.NoError(t, err)
	}

	uploads, total, err := db.Uploads().ListUploads(ctx, userId, entity.UploadFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, uploads, 2)

	uploads, total, err = db.Uploads().ListUploads(ctx, userId, entity.UploadFilter{Platform: "facebook"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, uploads, 1)
	assert.Equal(t, "fb.csv", uploads[0].FileName)

	summary, err := db.Uploads().GetUploadSummary(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalUploads)
	assert.Equal(t, 1, summary.CompletedUploads)
	assert.Equal(t, 15, summary.TotalRowsProcessed)
	assert.Equal(t, "50", summary.SuccessRate.String())

	require.NoError(t, db.Uploads().DeleteUploadById(ctx, userId, uploads[0].Id))
	_, total, err = db.Uploads().ListUploads(ctx, userId, entity.UploadFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestTxRollback(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	userId := newTestUser(t, db)

	wantErr := assert.AnError
	err := db.Tx(ctx, func(ctx context.Context, rep dependency.Repository) error {
		_, err := rep.Products().EnsureProducts(ctx, userId, []string{"Serum X"})
		require.NoError(t, err)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	products, err := db.Products().ListProducts(ctx, userId, "")
	require.NoError(t, err)
	assert.Empty(t, products)
}
