// Package ingest turns platform CSV exports into normalized campaign
// reports, daily aggregates and auto-created products.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"log/slog"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
)

// Config bounds uploads and the duplicate-submission window.
type Config struct {
	MaxFileSizeMB     int64 `mapstructure:"max_file_size_mb"`
	DedupWindowMinute int   `mapstructure:"dedup_window_minutes"`
}

func (c Config) MaxFileSize() int64 {
	if c.MaxFileSizeMB <= 0 {
		return 10 << 20
	}
	return c.MaxFileSizeMB << 20
}

func (c Config) DedupWindow() time.Duration {
	if c.DedupWindowMinute <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.DedupWindowMinute) * time.Minute
}

// Period optionally pins the reporting range when the CSV itself carries
// no dates.
type Period struct {
	Start time.Time
	End   time.Time
}

// Result summarizes one processed upload.
type Result struct {
	RowsProcessed      int
	RecordsUpserted    int
	ProductsCreated    int
	DailyStatsUpserted int
	Preview            []entity.CampaignReportInsert
}

// Processor runs the upload pipeline against the store.
type Processor struct {
	rep dependency.Repository
	cfg Config
}

func New(rep dependency.Repository, cfg Config) *Processor {
	return &Processor{
		rep: rep,
		cfg: cfg,
	}
}

// Process parses the file and persists its rows in a single transaction:
// missing products are created, campaign reports and daily aggregates are
// upserted and a history record is written. A failed run is rolled back
// entirely, recorded as a failed upload and its dedup claim released.
func (p *Processor) Process(ctx context.Context, userId uuid.UUID, fileName string, data []byte, platform string, period Period) (*Result, error) {
	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	claimed, err := p.rep.Uploads().ClaimUpload(ctx, userId, fileHash, platform, p.cfg.DedupWindow())
	if err != nil {
		return nil, fmt.Errorf("dedup claim: %w", err)
	}
	if !claimed {
		return nil, entity.ErrDuplicateUpload
	}

	rawRows, err := readRows(data)
	if err != nil {
		p.recordFailure(ctx, userId, fileName, fileHash, platform, 0, err)
		p.releaseClaim(ctx, userId, fileHash, platform)
		return nil, err
	}

	reports := p.mapRows(rawRows, fileName, platform, period)
	if len(reports) == 0 {
		p.recordFailure(ctx, userId, fileName, fileHash, platform, len(rawRows), entity.ErrNoValidRows)
		p.releaseClaim(ctx, userId, fileHash, platform)
		return nil, entity.ErrNoValidRows
	}

	res := &Result{
		RowsProcessed: len(reports),
	}
	err = p.rep.Tx(ctx, func(ctx context.Context, rep dependency.Repository) error {
		created, err := rep.Products().EnsureProducts(ctx, userId, productNames(reports))
		if err != nil {
			return err
		}
		upserted, err := rep.Reports().UpsertCampaignReports(ctx, userId, reports)
		if err != nil {
			return err
		}
		daily, err := rep.Reports().UpsertDailyStats(ctx, userId, aggregateDaily(userId, reports))
		if err != nil {
			return err
		}

		res.ProductsCreated = created
		res.RecordsUpserted = upserted
		res.DailyStatsUpserted = daily

		_, err = rep.Uploads().AddUploadRecord(ctx, &entity.UploadRecord{
			UserId:          userId,
			FileName:        fileName,
			FileHash:        fileHash,
			Platform:        platform,
			RowsProcessed:   res.RowsProcessed,
			RecordsUpserted: res.RecordsUpserted,
			ProductsCreated: res.ProductsCreated,
			Status:          entity.UploadStatusCompleted,
		})
		return err
	})
	if err != nil {
		p.recordFailure(ctx, userId, fileName, fileHash, platform, res.RowsProcessed, err)
		p.releaseClaim(ctx, userId, fileHash, platform)
		return nil, fmt.Errorf("can't persist upload: %w", err)
	}

	res.Preview = reports
	if len(res.Preview) > 5 {
		res.Preview = res.Preview[:5]
	}
	return res, nil
}

// recordFailure writes a failed history row outside the rolled back
// transaction, best effort.
func (p *Processor) recordFailure(ctx context.Context, userId uuid.UUID, fileName, fileHash, platform string, rows int, cause error) {
	_, err := p.rep.Uploads().AddUploadRecord(ctx, &entity.UploadRecord{
		UserId:        userId,
		FileName:      fileName,
		FileHash:      fileHash,
		Platform:      platform,
		RowsProcessed: rows,
		Status:        entity.UploadStatusFailed,
		ErrorMessage: sql.NullString{
			String: cause.Error(),
			Valid:  true,
		},
	})
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't record failed upload",
			slog.String("file", fileName),
			slog.String("err", err.Error()),
		)
	}
}

// releaseClaim frees the dedup slot after a failed run, best effort.
func (p *Processor) releaseClaim(ctx context.Context, userId uuid.UUID, fileHash, platform string) {
	if err := p.rep.Uploads().ReleaseUpload(ctx, userId, fileHash, platform); err != nil {
		slog.Default().ErrorContext(ctx, "can't release upload claim",
			slog.String("hash", fileHash),
			slog.String("err", err.Error()),
		)
	}
}

// mapRows normalizes raw CSV rows, dropping summary and footer rows.
func (p *Processor) mapRows(rawRows []map[string]string, fileName, platform string, period Period) []entity.CampaignReportInsert {
	var reports []entity.CampaignReportInsert
	for _, row := range rawRows {
		campaignName := GetColumnValue(row, campaignNameColumns)
		if !isDataRow(campaignName) {
			continue
		}

		rowPlatform := ExtractPlatform(campaignName)
		if !entity.IsValidPlatform(rowPlatform) {
			rowPlatform = platform
		}

		starts, ok := parseDate(GetColumnValue(row, reportingStartsColumns))
		if !ok {
			starts = period.Start
		}
		if starts.IsZero() {
			starts = time.Now().UTC().Truncate(24 * time.Hour)
		}
		var ends sql.NullTime
		if t, ok := parseDate(GetColumnValue(row, reportingEndsColumns)); ok {
			ends = sql.NullTime{Time: t, Valid: true}
		} else if !period.End.IsZero() {
			ends = sql.NullTime{Time: period.End, Valid: true}
		}

		rawData, _ := json.Marshal(row)
		reports = append(reports, entity.CampaignReportInsert{
			FileName:        fileName,
			Platform:        rowPlatform,
			CampaignName:    campaignName,
			ProductName:     ExtractProduct(campaignName),
			AmountSpent:     ParseNumber(GetColumnValue(row, amountSpentColumns)),
			Revenue:         ParseNumber(GetColumnValue(row, revenueColumns)),
			Leads:           int(ParseNumber(GetColumnValue(row, leadsColumns)).IntPart()),
			Conversions:     int(ParseNumber(GetColumnValue(row, conversionsColumns)).IntPart()),
			Clicks:          int(ParseNumber(GetColumnValue(row, clicksColumns)).IntPart()),
			Impressions:     int(ParseNumber(GetColumnValue(row, impressionsColumns)).IntPart()),
			Reach:           int(ParseNumber(GetColumnValue(row, reachColumns)).IntPart()),
			ReportingStarts: starts,
			ReportingEnds:   ends,
			RawData:         rawData,
		})
	}
	return reports
}

// productNames collects the unique non-empty product names of the batch,
// sorted for stable insertion order.
func productNames(reports []entity.CampaignReportInsert) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range reports {
		if r.ProductName == "" || seen[r.ProductName] {
			continue
		}
		seen[r.ProductName] = true
		names = append(names, r.ProductName)
	}
	sort.Strings(names)
	return names
}

// aggregateDaily folds report rows into per-(campaign, day) stats.
func aggregateDaily(userId uuid.UUID, reports []entity.CampaignReportInsert) []entity.CampaignDailyStat {
	byKey := map[string]*entity.CampaignDailyStat{}
	var order []string
	for _, r := range reports {
		date := r.ReportingStarts
		key := r.CampaignName + "|" + date.Format("2006-01-02")
		st, ok := byKey[key]
		if !ok {
			st = &entity.CampaignDailyStat{
				UserId:       userId,
				CampaignName: r.CampaignName,
				ProductName:  r.ProductName,
				Platform:     r.Platform,
				Date:         date,
			}
			byKey[key] = st
			order = append(order, key)
		}
		st.AmountSpent = st.AmountSpent.Add(r.AmountSpent)
		st.Revenue = st.Revenue.Add(r.Revenue)
		st.Leads += r.Leads
		st.Reach += r.Reach
		st.Impressions += r.Impressions
	}

	stats := make([]entity.CampaignDailyStat, 0, len(byKey))
	for _, key := range order {
		stats = append(stats, *byKey[key])
	}
	return stats
}
