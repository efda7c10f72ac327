package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Server) handleUploadHistory(w http.ResponseWriter, r *http.Request) {
	userId := userIdFromCtx(r)
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	f := entity.UploadFilter{
		Search:   q.Get("search"),
		Platform: q.Get("platform"),
	}
	if f.Platform != "" && !entity.IsValidPlatform(f.Platform) {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("unknown platform %q", f.Platform)))
		return
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(fmt.Errorf("bad from date: %w", err)))
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(fmt.Errorf("bad to date: %w", err)))
			return
		}
		// inclusive day
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	uploads, total, err := s.rep.Uploads().ListUploads(r.Context(), userId, f, limit, (page-1)*limit)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	summary, err := s.rep.Uploads().GetUploadSummary(r.Context(), userId)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	render.JSON(w, r, map[string]any{
		"uploads": uploads,
		"total":   total,
		"page":    page,
		"limit":   limit,
		"summary": summary,
	})
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("bad upload id")))
		return
	}
	if err := s.rep.Uploads().DeleteUploadById(r.Context(), userIdFromCtx(r), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	render.JSON(w, r, map[string]string{"message": "upload record deleted"})
}
