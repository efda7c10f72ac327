package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type uploadStore struct {
	*PGStore
}

// Uploads returns an object implementing Uploads interface
func (ps *PGStore) Uploads() dependency.Uploads {
	return &uploadStore{
		PGStore: ps,
	}
}

// ClaimUpload atomically claims the (user, file hash, platform) slot.
// The conditional upsert races cleanly: only one of two concurrent
// claimants gets an affected row for the same slot within the window.
func (us *uploadStore) ClaimUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string, window time.Duration) (bool, error) {
	now := us.Now()
	query := `
	INSERT INTO upload_dedup (user_id, file_hash, platform, claimed_at)
	VALUES (:userId, :fileHash, :platform, :now)
	ON CONFLICT (user_id, file_hash, platform) DO UPDATE SET claimed_at = :now
	WHERE upload_dedup.claimed_at < :cutoff`
	n, err := ExecNamedAffected(ctx, us.db, query, map[string]any{
		"userId":   userId,
		"fileHash": fileHash,
		"platform": platform,
		"now":      now,
		"cutoff":   now.Add(-window),
	})
	if err != nil {
		return false, fmt.Errorf("can't claim upload: %w", err)
	}
	return n > 0, nil
}

// ReleaseUpload drops the dedup slot after a failed run, so the next
// submission of the same file is not mistaken for a duplicate.
func (us *uploadStore) ReleaseUpload(ctx context.Context, userId uuid.UUID, fileHash, platform string) error {
	query := `
	DELETE FROM upload_dedup
	WHERE user_id = :userId AND file_hash = :fileHash AND platform = :platform`
	if err := ExecNamed(ctx, us.db, query, map[string]any{
		"userId":   userId,
		"fileHash": fileHash,
		"platform": platform,
	}); err != nil {
		return fmt.Errorf("can't release upload claim: %w", err)
	}
	return nil
}

func (us *uploadStore) AddUploadRecord(ctx context.Context, rec *entity.UploadRecord) (int, error) {
	query := `
	INSERT INTO upload_history
		(user_id, file_name, file_hash, platform, rows_processed,
		records_upserted, products_created, status, error_message, uploaded_at)
	VALUES
		(:userId, :fileName, :fileHash, :platform, :rowsProcessed,
		:recordsUpserted, :productsCreated, :status, :errorMessage, :uploadedAt)
	RETURNING id`
	uploadedAt := rec.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = us.Now()
	}
	id, err := ExecNamedLastId(ctx, us.db, query, map[string]any{
		"userId":          rec.UserId,
		"fileName":        rec.FileName,
		"fileHash":        rec.FileHash,
		"platform":        rec.Platform,
		"rowsProcessed":   rec.RowsProcessed,
		"recordsUpserted": rec.RecordsUpserted,
		"productsCreated": rec.ProductsCreated,
		"status":          string(rec.Status),
		"errorMessage":    rec.ErrorMessage,
		"uploadedAt":      uploadedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("can't add upload record: %w", err)
	}
	return id, nil
}

func uploadFilterClauses(f entity.UploadFilter, params map[string]any) string {
	where := ""
	if f.Search != "" {
		where += " AND file_name ILIKE :search"
		params["search"] = "%" + f.Search + "%"
	}
	if f.Platform != "" {
		where += " AND platform = :platform"
		params["platform"] = f.Platform
	}
	if !f.From.IsZero() {
		where += " AND uploaded_at >= :from"
		params["from"] = f.From
	}
	if !f.To.IsZero() {
		where += " AND uploaded_at <= :to"
		params["to"] = f.To
	}
	return where
}

func (us *uploadStore) ListUploads(ctx context.Context, userId uuid.UUID, f entity.UploadFilter, limit, offset int) ([]entity.UploadRecord, int, error) {
	params := map[string]any{
		"userId": userId,
	}
	where := `WHERE user_id = :userId` + uploadFilterClauses(f, params)

	total, err := QueryCountNamed(ctx, us.db,
		`SELECT COUNT(*) FROM upload_history `+where, params)
	if err != nil {
		return nil, 0, fmt.Errorf("can't count uploads: %w", err)
	}

	params["limit"] = limit
	params["offset"] = offset
	query := `
	SELECT * FROM upload_history ` + where + `
	ORDER BY uploaded_at DESC
	LIMIT :limit OFFSET :offset`
	uploads, err := QueryListNamed[entity.UploadRecord](ctx, us.db, query, params)
	if err != nil {
		return nil, 0, fmt.Errorf("can't list uploads: %w", err)
	}
	return uploads, total, nil
}

func (us *uploadStore) RecentUploads(ctx context.Context, userId uuid.UUID, limit int) ([]entity.UploadRecord, error) {
	query := `
	SELECT * FROM upload_history
	WHERE user_id = :userId
	ORDER BY uploaded_at DESC
	LIMIT :limit`
	uploads, err := QueryListNamed[entity.UploadRecord](ctx, us.db, query, map[string]any{
		"userId": userId,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("can't get recent uploads: %w", err)
	}
	return uploads, nil
}

func (us *uploadStore) DeleteUploadById(ctx context.Context, userId uuid.UUID, id int) error {
	query := `DELETE FROM upload_history WHERE id = :id AND user_id = :userId`
	n, err := ExecNamedAffected(ctx, us.db, query, map[string]any{
		"id":     id,
		"userId": userId,
	})
	if err != nil {
		return fmt.Errorf("can't delete upload: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (us *uploadStore) GetUploadSummary(ctx context.Context, userId uuid.UUID) (*entity.UploadSummary, error) {
	query := `
	SELECT
		COUNT(*) AS total_uploads,
		COUNT(*) FILTER (WHERE status = :completed) AS completed_uploads,
		COALESCE(SUM(rows_processed), 0) AS total_rows_processed,
		COUNT(*) FILTER (WHERE uploaded_at >= :recentCutoff) AS recent_activity
	FROM upload_history
	WHERE user_id = :userId`
	summary, err := QueryNamedOne[entity.UploadSummary](ctx, us.db, query, map[string]any{
		"userId":       userId,
		"completed":    string(entity.UploadStatusCompleted),
		"recentCutoff": us.Now().Add(-7 * 24 * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("can't get upload summary: %w", err)
	}
	if summary.TotalUploads > 0 {
		summary.SuccessRate = decimal.NewFromInt(int64(summary.CompletedUploads)).
			Div(decimal.NewFromInt(int64(summary.TotalUploads))).
			Mul(decimal.NewFromInt(100))
	}
	return &summary, nil
}
