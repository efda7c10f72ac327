package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/bizense/bizense-manager/internal/ingest"
	"github.com/go-chi/render"
)

type uploadResponse struct {
	Message            string                        `json:"message"`
	RecordsProcessed   int                           `json:"recordsProcessed"`
	ProductsCreated    int                           `json:"productsCreated"`
	DailyStatsUpserted int                           `json:"dailyStatsUpserted"`
	Data               []entity.CampaignReportInsert `json:"data"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(s.maxFileSize); err != nil {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("can't parse upload: %w", err)))
		return
	}

	platform := r.FormValue("platform")
	if !entity.IsValidPlatform(platform) {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("invalid platform specified")))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("no file uploaded")))
		return
	}
	defer file.Close()

	if header.Size > s.maxFileSize {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("file exceeds the %dMB limit", s.maxFileSize>>20)))
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("only .csv files are accepted")))
		return
	}

	var period ingest.Period
	if v := r.FormValue("startDate"); v != "" {
		period.Start, err = time.Parse("2006-01-02", v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(fmt.Errorf("bad startDate: %w", err)))
			return
		}
	}
	if v := r.FormValue("endDate"); v != "" {
		period.End, err = time.Parse("2006-01-02", v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(fmt.Errorf("bad endDate: %w", err)))
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("can't read file: %w", err)))
		return
	}

	res, err := s.proc.Process(r.Context(), userIdFromCtx(r), header.Filename, data, platform, period)
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateUpload) || errors.Is(err, entity.ErrNoValidRows) {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	render.JSON(w, r, uploadResponse{
		Message:            fmt.Sprintf("Successfully processed %d campaign rows", res.RowsProcessed),
		RecordsProcessed:   res.RecordsUpserted,
		ProductsCreated:    res.ProductsCreated,
		DailyStatsUpserted: res.DailyStatsUpserted,
		Data:               res.Preview,
	})
}
