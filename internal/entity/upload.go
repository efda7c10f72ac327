package entity

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateUpload = errors.New("duplicate upload: the same file was uploaded recently, wait before retrying")
	ErrNoValidRows     = errors.New("no valid campaign rows found in file")
	ErrNegativeMetrics = errors.New("all values must be non-negative")
)

type UploadStatus string

const (
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadRecord represents the upload_history table.
type UploadRecord struct {
	Id              int            `db:"id" json:"id"`
	UserId          uuid.UUID      `db:"user_id" json:"-"`
	FileName        string         `db:"file_name" json:"file_name"`
	FileHash        string         `db:"file_hash" json:"-"`
	Platform        string         `db:"platform" json:"platform"`
	RowsProcessed   int            `db:"rows_processed" json:"rows_processed"`
	RecordsUpserted int            `db:"records_upserted" json:"records_upserted"`
	ProductsCreated int            `db:"products_created" json:"products_created"`
	Status          UploadStatus   `db:"status" json:"status"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message"`
	UploadedAt      time.Time      `db:"uploaded_at" json:"uploaded_at"`
}

// UploadFilter narrows upload history listings.
type UploadFilter struct {
	Search   string
	Platform string
	From     time.Time
	To       time.Time
}

// UploadSummary backs the reports page header.
type UploadSummary struct {
	TotalUploads       int             `db:"total_uploads" json:"total_uploads"`
	CompletedUploads   int             `db:"completed_uploads" json:"completed_uploads"`
	TotalRowsProcessed int             `db:"total_rows_processed" json:"total_rows_processed"`
	RecentActivity     int             `db:"recent_activity" json:"recent_activity"`
	SuccessRate        decimal.Decimal `db:"-" json:"success_rate"`
}

// Admin is a service user able to log in and own campaign data.
type Admin struct {
	Id           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
