package dependency

import (
	"context"
	"database/sql"
	"time"

	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type (
	ContextStore interface {
		Tx(ctx context.Context, fn func(ctx context.Context, store Repository) error) error
	}

	Admin interface {
		// AddAdmin creates a service user and returns its id.
		AddAdmin(ctx context.Context, email, pwHash string) (uuid.UUID, error)
		DeleteAdmin(ctx context.Context, email string) error
		PasswordHashByEmail(ctx context.Context, email string) (string, error)
		GetAdminByEmail(ctx context.Context, email string) (*entity.Admin, error)
	}

	Products interface {
		// AddProduct inserts a manually created product.
		AddProduct(ctx context.Context, userId uuid.UUID, ins *entity.ProductInsert) (*entity.Product, error)
		// EnsureProducts creates zero-valued products (with a matching
		// product_metrics row) for every name not yet known to the user.
		// Returns the number of products created.
		EnsureProducts(ctx context.Context, userId uuid.UUID, names []string) (int, error)
		GetProductById(ctx context.Context, userId uuid.UUID, id int) (*entity.Product, error)
		// ListProducts returns the user's products matching search, sorted
		// by created_at descending. Aggregate sorting happens on the
		// computed stats after the COD figures are attached.
		ListProducts(ctx context.Context, userId uuid.UUID, search string) ([]entity.Product, error)
		UpdateProduct(ctx context.Context, userId uuid.UUID, id int, upd *entity.ProductUpdate) (*entity.Product, error)
		DeleteProductById(ctx context.Context, userId uuid.UUID, id int) error
		// DeleteProductsByIds removes a batch and reports how many rows went away.
		DeleteProductsByIds(ctx context.Context, userId uuid.UUID, ids []int) (int, error)
		UpdateProductsByIds(ctx context.Context, userId uuid.UUID, ids []int, upd *entity.ProductUpdate) (int, error)
	}

	Reports interface {
		// UpsertCampaignReports writes normalized rows keyed on
		// (user_id, campaign_name, reporting_starts); re-uploads update in
		// place instead of duplicating.
		UpsertCampaignReports(ctx context.Context, userId uuid.UUID, rows []entity.CampaignReportInsert) (int, error)
		UpsertDailyStats(ctx context.Context, userId uuid.UUID, stats []entity.CampaignDailyStat) (int, error)
		GetReportsByProduct(ctx context.Context, userId uuid.UUID, productName string) ([]entity.CampaignReport, error)
		GetProductAggregate(ctx context.Context, userId uuid.UUID, productName string) (*entity.CampaignAggregate, error)
		GetProductPlatformStats(ctx context.Context, userId uuid.UUID, productName string) ([]entity.PlatformStat, error)
		GetAggregate(ctx context.Context, userId uuid.UUID, f entity.ReportFilter) (*entity.CampaignAggregate, error)
		GetDailyStats(ctx context.Context, userId uuid.UUID, f entity.ReportFilter) ([]entity.CampaignDailyStat, error)
		// SetManualCounts updates confirmed_leads/delivered_orders on a
		// campaign's report rows and mirrors them into daily stats.
		SetManualCounts(ctx context.Context, userId uuid.UUID, campaignName string, confirmedLeads, deliveredOrders int) (int, error)
	}

	ProductMetrics interface {
		// GetOrCreateProductMetrics returns the manual metrics row for a
		// product, inserting a zeroed one on first read.
		GetOrCreateProductMetrics(ctx context.Context, userId uuid.UUID, productId int) (*entity.ProductMetrics, error)
		UpsertProductMetrics(ctx context.Context, userId uuid.UUID, productId int, ins *entity.ProductMetricsInsert) (*entity.ProductMetrics, error)
		GetMetricsForUser(ctx context.Context, userId uuid.UUID) ([]entity.ProductMetrics, error)
	}

	Uploads interface {
		// ClaimUpload atomically claims (user, file hash, platform) for the
		// trailing window. Returns false when a recent claim already exists.
		ClaimUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string, window time.Duration) (bool, error)
		// ReleaseUpload frees a claimed slot so a failed run can be
		// retried without waiting out the window.
		ReleaseUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string) error
		AddUploadRecord(ctx context.Context, rec *entity.UploadRecord) (int, error)
		ListUploads(ctx context.Context, userId uuid.UUID, f entity.UploadFilter, limit, offset int) ([]entity.UploadRecord, int, error)
		RecentUploads(ctx context.Context, userId uuid.UUID, limit int) ([]entity.UploadRecord, error)
		DeleteUploadById(ctx context.Context, userId uuid.UUID, id int) error
		GetUploadSummary(ctx context.Context, userId uuid.UUID) (*entity.UploadSummary, error)
	}

	Repository interface {
		Products() Products
		Reports() Reports
		ProductMetrics() ProductMetrics
		Uploads() Uploads
		Admin() Admin
		Tx(ctx context.Context, f func(context.Context, Repository) error) error
		TxBegin(ctx context.Context) (Repository, error)
		TxCommit(ctx context.Context) error
		TxRollback(ctx context.Context) error
		Now() time.Time
		InTx() bool
		Close()
		Ping(ctx context.Context) error
		IsErrUniqueViolation(err error) bool
		IsErrorRepeat(err error) bool
		DB() DB
	}

	// DB represents database interface.
	DB interface {
		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

		// sqlx methods
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
		NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
		PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error)
		PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
		QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
		QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}
)
