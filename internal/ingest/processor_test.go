package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	dependency.Repository
	uploads  *fakeUploads
	products *fakeProducts
	reports  *fakeReports
}

func (f *fakeRepo) Uploads() dependency.Uploads   { return f.uploads }
func (f *fakeRepo) Products() dependency.Products { return f.products }
func (f *fakeRepo) Reports() dependency.Reports   { return f.reports }

func (f *fakeRepo) Tx(ctx context.Context, fn func(context.Context, dependency.Repository) error) error {
	return fn(ctx, f)
}

type fakeUploads struct {
	dependency.Uploads
	claim    bool
	released bool
	records  []entity.UploadRecord
}

func (f *fakeUploads) ClaimUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string, window time.Duration) (bool, error) {
	return f.claim, nil
}

func (f *fakeUploads) ReleaseUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string) error {
	f.released = true
	return nil
}

func (f *fakeUploads) AddUploadRecord(ctx context.Context, rec *entity.UploadRecord) (int, error) {
	f.records = append(f.records, *rec)
	return len(f.records), nil
}

type fakeProducts struct {
	dependency.Products
	ensured []string
}

func (f *fakeProducts) EnsureProducts(ctx context.Context, userId uuid.UUID, names []string) (int, error) {
	f.ensured = names
	return len(names), nil
}

type fakeReports struct {
	dependency.Reports
	reports   []entity.CampaignReportInsert
	daily     []entity.CampaignDailyStat
	upsertErr error
}

func (f *fakeReports) UpsertCampaignReports(ctx context.Context, userId uuid.UUID, rows []entity.CampaignReportInsert) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.reports = rows
	return len(rows), nil
}

func (f *fakeReports) UpsertDailyStats(ctx context.Context, userId uuid.UUID, stats []entity.CampaignDailyStat) (int, error) {
	f.daily = stats
	return len(stats), nil
}

func newFakeRepo(claim bool) *fakeRepo {
	return &fakeRepo{
		uploads:  &fakeUploads{claim: claim},
		products: &fakeProducts{},
		reports:  &fakeReports{},
	}
}

const sampleCSV = "Campaign name,Amount spent,Unique link clicks,Results,Reach,Impressions,Reporting starts\n" +
	"Serum X - Facebook - Scale,\"$500.00\",100,20,4000,9000,2026-08-01\n" +
	"Serum X - Facebook - Test,250.50,40,5,1500,3000,2026-08-01\n" +
	"Cream Y - Facebook,100,10,2,800,1200,2026-08-02\n" +
	"Total: 3 campaigns,850.50,,,,\n"

func TestProcess(t *testing.T) {
	rep := newFakeRepo(true)
	p := New(rep, Config{})
	userId := uuid.New()

	res, err := p.Process(context.Background(), userId, "export.csv", []byte(sampleCSV), "facebook", Period{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.RowsProcessed)
	assert.Equal(t, 3, res.RecordsUpserted)
	assert.Equal(t, 2, res.ProductsCreated)
	assert.Equal(t, []string{"Cream Y", "Serum X"}, rep.products.ensured)

	// two campaigns share a product but not a (campaign, day) key
	assert.Equal(t, 3, res.DailyStatsUpserted)

	first := rep.reports.reports[0]
	assert.Equal(t, "Serum X - Facebook - Scale", first.CampaignName)
	assert.Equal(t, "Serum X", first.ProductName)
	assert.Equal(t, "facebook", first.Platform)
	assert.Equal(t, "500", first.AmountSpent.String())
	assert.Equal(t, 100, first.Leads)
	assert.Equal(t, 20, first.Conversions)
	assert.Equal(t, "2026-08-01", first.ReportingStarts.Format("2006-01-02"))

	// completed history record written inside the transaction
	require.Len(t, rep.uploads.records, 1)
	rec := rep.uploads.records[0]
	assert.Equal(t, entity.UploadStatusCompleted, rec.Status)
	assert.Equal(t, 3, rec.RowsProcessed)
	assert.NotEmpty(t, rec.FileHash)

	// the claim stays so an immediate re-send is still deduplicated
	assert.False(t, rep.uploads.released)
}

func TestProcessDuplicate(t *testing.T) {
	rep := newFakeRepo(false)
	p := New(rep, Config{})

	_, err := p.Process(context.Background(), uuid.New(), "export.csv", []byte(sampleCSV), "facebook", Period{})
	assert.ErrorIs(t, err, entity.ErrDuplicateUpload)
	assert.Empty(t, rep.uploads.records)
}

func TestProcessNoValidRows(t *testing.T) {
	rep := newFakeRepo(true)
	p := New(rep, Config{})

	csv := "Campaign name,Amount spent\n" +
		"Total: 2 campaigns,100\n" +
		",50\n"
	_, err := p.Process(context.Background(), uuid.New(), "export.csv", []byte(csv), "facebook", Period{})
	assert.ErrorIs(t, err, entity.ErrNoValidRows)

	// failure is still recorded and the dedup claim freed for a retry
	require.Len(t, rep.uploads.records, 1)
	assert.Equal(t, entity.UploadStatusFailed, rep.uploads.records[0].Status)
	assert.True(t, rep.uploads.released)
}

func TestProcessPersistFailureReleasesClaim(t *testing.T) {
	rep := newFakeRepo(true)
	rep.reports.upsertErr = assert.AnError
	p := New(rep, Config{})

	_, err := p.Process(context.Background(), uuid.New(), "export.csv", []byte(sampleCSV), "facebook", Period{})
	require.ErrorIs(t, err, assert.AnError)

	// the rolled back run must not block a corrected retry
	assert.True(t, rep.uploads.released)
	require.Len(t, rep.uploads.records, 1)
	assert.Equal(t, entity.UploadStatusFailed, rep.uploads.records[0].Status)
}

func TestProcessPlatformFallback(t *testing.T) {
	rep := newFakeRepo(true)
	p := New(rep, Config{})

	csv := "Campaign name,Amount spent\n" +
		"Serum X - Summer Push,100\n"
	res, err := p.Process(context.Background(), uuid.New(), "export.csv", []byte(csv), "tiktok", Period{
		Start: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// "summer push" is not a known platform, the submitted one wins
	assert.Equal(t, "tiktok", rep.reports.reports[0].Platform)
	assert.Equal(t, "2026-08-10", rep.reports.reports[0].ReportingStarts.Format("2006-01-02"))
	assert.Equal(t, 1, res.DailyStatsUpserted)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, int64(10<<20), cfg.MaxFileSize())
	assert.Equal(t, 10*time.Minute, cfg.DedupWindow())

	cfg = Config{MaxFileSizeMB: 2, DedupWindowMinute: 30}
	assert.Equal(t, int64(2<<20), cfg.MaxFileSize())
	assert.Equal(t, 30*time.Minute, cfg.DedupWindow())
}
