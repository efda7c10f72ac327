package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bizense/bizense-manager/internal/apisrv/auth"
	"github.com/bizense/bizense-manager/internal/auth/pwhash"
	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/bizense/bizense-manager/internal/ingest"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	dependency.Repository
	admin    *fakeAdmin
	products *fakeProducts
	reports  *fakeReports
	metrics  *fakeMetrics
	uploads  *fakeUploads
}

func (f *fakeRepo) Admin() dependency.Admin                   { return f.admin }
func (f *fakeRepo) Products() dependency.Products             { return f.products }
func (f *fakeRepo) Reports() dependency.Reports               { return f.reports }
func (f *fakeRepo) ProductMetrics() dependency.ProductMetrics { return f.metrics }
func (f *fakeRepo) Uploads() dependency.Uploads               { return f.uploads }
func (f *fakeRepo) Ping(ctx context.Context) error            { return nil }

func (f *fakeRepo) Tx(ctx context.Context, fn func(context.Context, dependency.Repository) error) error {
	return fn(ctx, f)
}

type fakeAdmin struct {
	dependency.Admin
	admin *entity.Admin
}

func (f *fakeAdmin) GetAdminByEmail(ctx context.Context, email string) (*entity.Admin, error) {
	if f.admin == nil || f.admin.Email != email {
		return nil, sql.ErrNoRows
	}
	return f.admin, nil
}

type fakeProducts struct {
	dependency.Products
	products []entity.Product
}

func (f *fakeProducts) ListProducts(ctx context.Context, userId uuid.UUID, search string) ([]entity.Product, error) {
	return f.products, nil
}

func (f *fakeProducts) EnsureProducts(ctx context.Context, userId uuid.UUID, names []string) (int, error) {
	return len(names), nil
}

type fakeReports struct {
	dependency.Reports
	updated int
	daily   []entity.CampaignDailyStat
}

func (f *fakeReports) GetProductAggregate(ctx context.Context, userId uuid.UUID, productName string) (*entity.CampaignAggregate, error) {
	return &entity.CampaignAggregate{
		TotalSpend: decimal.RequireFromString("500"),
		TotalLeads: 200,
	}, nil
}

func (f *fakeReports) GetAggregate(ctx context.Context, userId uuid.UUID, filter entity.ReportFilter) (*entity.CampaignAggregate, error) {
	return &entity.CampaignAggregate{
		TotalSpend: decimal.RequireFromString("500"),
		TotalLeads: 200,
	}, nil
}

func (f *fakeReports) GetDailyStats(ctx context.Context, userId uuid.UUID, filter entity.ReportFilter) ([]entity.CampaignDailyStat, error) {
	return f.daily, nil
}

func (f *fakeReports) GetProductPlatformStats(ctx context.Context, userId uuid.UUID, productName string) ([]entity.PlatformStat, error) {
	return []entity.PlatformStat{
		{Platform: "facebook", Spend: decimal.RequireFromString("100"), Revenue: decimal.RequireFromString("400")},
	}, nil
}

func (f *fakeReports) UpsertCampaignReports(ctx context.Context, userId uuid.UUID, rows []entity.CampaignReportInsert) (int, error) {
	return len(rows), nil
}

func (f *fakeReports) UpsertDailyStats(ctx context.Context, userId uuid.UUID, stats []entity.CampaignDailyStat) (int, error) {
	return len(stats), nil
}

func (f *fakeReports) SetManualCounts(ctx context.Context, userId uuid.UUID, campaignName string, confirmedLeads, deliveredOrders int) (int, error) {
	return f.updated, nil
}

type fakeMetrics struct {
	dependency.ProductMetrics
	rows []entity.ProductMetrics
}

func (f *fakeMetrics) GetMetricsForUser(ctx context.Context, userId uuid.UUID) ([]entity.ProductMetrics, error) {
	return f.rows, nil
}

type fakeUploads struct {
	dependency.Uploads
}

func (f *fakeUploads) ClaimUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string, window time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeUploads) ReleaseUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string) error {
	return nil
}

func (f *fakeUploads) AddUploadRecord(ctx context.Context, rec *entity.UploadRecord) (int, error) {
	return 1, nil
}

func (f *fakeUploads) RecentUploads(ctx context.Context, userId uuid.UUID, limit int) ([]entity.UploadRecord, error) {
	return nil, nil
}

const testPassword = "hunter2"

func newTestServer(t *testing.T) (*httptest.Server, *fakeRepo, string) {
	ph, err := pwhash.New(16, 1000)
	require.NoError(t, err)
	hash, err := ph.HashPassword(testPassword)
	require.NoError(t, err)

	userId := uuid.New()
	rep := &fakeRepo{
		admin: &fakeAdmin{admin: &entity.Admin{
			Id:           userId,
			Email:        "owner@bizense.io",
			PasswordHash: hash,
		}},
		products: &fakeProducts{},
		reports:  &fakeReports{updated: 1},
		metrics:  &fakeMetrics{},
		uploads:  &fakeUploads{},
	}

	authSrv, err := auth.New(&auth.Config{
		JWTSecret:                "secret",
		MasterPassword:           "master",
		PasswordHasherSaltSize:   16,
		PasswordHasherIterations: 1000,
		JWTTTL:                   "1h",
	}, rep.admin)
	require.NoError(t, err)

	cfg := ingest.Config{}
	s := New(&Config{AllowedOrigins: []string{"*"}}, rep, authSrv, ingest.New(rep, cfg), metrics.DefaultFees(), cfg.MaxFileSize())

	ts := httptest.NewServer(s.router())
	t.Cleanup(ts.Close)

	token, err := authSrv.Login(context.Background(), "owner@bizense.io", testPassword)
	require.NoError(t, err)
	return ts, rep, token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestLogin(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email":    "owner@bizense.io",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decodeBody(t, resp)["authToken"])
}

func TestLoginWrongPassword(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email":    "owner@bizense.io",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginMissingFields(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/api/products", "/api/dashboard", "/api/upload-history"} {
		resp := doJSON(t, http.MethodGet, ts.URL+path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "path %s", path)
		resp.Body.Close()
	}
}

func TestListProducts(t *testing.T) {
	ts, rep, token := newTestServer(t)
	rep.products.products = []entity.Product{
		{Id: 1, ProductInsert: entity.ProductInsert{
			ProductName:    "Serum X",
			UnitCost:       decimal.RequireFromString("20"),
			SellingPrice:   decimal.RequireFromString("50"),
			UnitsDelivered: 100,
		}},
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/products?sortBy=profit&sortOrder=desc", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])
	products := body["products"].([]any)
	p := products[0].(map[string]any)
	assert.Equal(t, "Serum X", p["product_name"])
	assert.Equal(t, "facebook", p["best_platform"])
}

func TestListProductsAutoMetricsRowDoesNotShadow(t *testing.T) {
	ts, rep, token := newTestServer(t)
	rep.products.products = []entity.Product{
		{Id: 1, ProductInsert: entity.ProductInsert{
			ProductName:    "Serum X",
			UnitCost:       decimal.RequireFromString("20"),
			SellingPrice:   decimal.RequireFromString("50"),
			UnitsDelivered: 100,
		}},
	}
	// an all-zero metrics row, as ingestion auto-creates it
	rep.metrics.rows = []entity.ProductMetrics{{Id: 1, ProductId: 1}}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/products", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	p := decodeBody(t, resp)["products"].([]any)[0].(map[string]any)
	assert.Equal(t, "5000", p["total_revenue"])
	assert.Equal(t, "1380", p["profit"])
}

func TestListProductsBadSort(t *testing.T) {
	ts, _, token := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/products?sortBy=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func uploadRequest(t *testing.T, url, token, fileName, platform, content string) *http.Response {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("platform", platform))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUpload(t *testing.T) {
	ts, _, token := newTestServer(t)

	csv := "Campaign name,Amount spent,Unique link clicks\n" +
		"Serum X - Facebook,100,10\n"
	resp := uploadRequest(t, ts.URL, token, "export.csv", "facebook", csv)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["recordsProcessed"])
	assert.EqualValues(t, 1, body["productsCreated"])
}

func TestUploadBadPlatform(t *testing.T) {
	ts, _, token := newTestServer(t)

	resp := uploadRequest(t, ts.URL, token, "export.csv", "myspace", "Campaign name\nx\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadNotCSV(t *testing.T) {
	ts, _, token := newTestServer(t)

	resp := uploadRequest(t, ts.URL, token, "export.xlsx", "facebook", "not a csv")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadNoValidRows(t *testing.T) {
	ts, _, token := newTestServer(t)

	resp := uploadRequest(t, ts.URL, token, "export.csv", "facebook", "Campaign name,Amount spent\nTotal: 1,100\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "no valid campaign rows")
}

func TestDashboard(t *testing.T) {
	ts, rep, token := newTestServer(t)
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rep.reports.daily = []entity.CampaignDailyStat{
		{CampaignName: "Serum X - Facebook", ProductName: "Serum X", Platform: "facebook",
			Date: day, AmountSpent: decimal.RequireFromString("100"), Revenue: decimal.RequireFromString("400"), Leads: 50},
		{CampaignName: "Cream Y - TikTok", ProductName: "Cream Y", Platform: "tiktok",
			Date: day.AddDate(0, 0, 1), AmountSpent: decimal.RequireFromString("50"), Revenue: decimal.RequireFromString("50"), Leads: 10},
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/dashboard", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	top := body["topProducts"].([]any)
	require.Len(t, top, 2)
	best := top[0].(map[string]any)
	assert.Equal(t, "Serum X", best["name"])
	assert.Equal(t, "400", best["roas"])

	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["totalCampaigns"])
	assert.EqualValues(t, 2, summary["activePlatforms"])
	assert.EqualValues(t, 2, summary["activeProducts"])
	assert.Contains(t, summary, "profitMargin")
}

func TestManualUpdateValidation(t *testing.T) {
	ts, _, token := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/product-metrics/1/manual-update", token, map[string]any{
		"campaign_name":   "Serum X - Facebook",
		"confirmed_leads": -1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/product-metrics/1/manual-update", token, map[string]any{
		"campaign_name":    "Serum X - Facebook",
		"confirmed_leads":  80,
		"delivered_orders": 60,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decodeBody(t, resp)["updated"])
}
