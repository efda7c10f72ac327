package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/go-chi/render"
)

func (s *Server) handleGetProductMetrics(w http.ResponseWriter, r *http.Request) {
	productId, err := productIdParam(r, "productId")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	userId := userIdFromCtx(r)

	p, err := s.rep.Products().GetProductById(r.Context(), userId, productId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	pm, err := s.rep.ProductMetrics().GetOrCreateProductMetrics(r.Context(), userId, productId)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	agg, err := s.rep.Reports().GetProductAggregate(r.Context(), userId, p.ProductName)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	campaigns, err := s.rep.Reports().GetReportsByProduct(r.Context(), userId, p.ProductName)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	in := metrics.Input{
		UnitCost:       p.UnitCost,
		SellingPrice:   p.SellingPrice,
		UnitsDelivered: p.UnitsDelivered,
		TotalAdSpend:   agg.TotalSpend,
		TotalLeads:     agg.TotalLeads,
	}
	if pm.HasManualValues() {
		in.UnitCost = pm.UnitCost
		in.SellingPrice = pm.SellingPrice
		in.UnitsDelivered = pm.UnitsDelivered
	}
	calc := metrics.Calculate(in, s.fees.Override(pm))

	render.JSON(w, r, map[string]any{
		"product":      p,
		"metrics":      pm,
		"calculations": calc,
		"campaigns":    campaigns,
		"aggregate":    agg,
	})
}

func (s *Server) handleUpdateProductMetrics(w http.ResponseWriter, r *http.Request) {
	productId, err := productIdParam(r, "productId")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	userId := userIdFromCtx(r)

	var ins entity.ProductMetricsInsert
	if err := render.DecodeJSON(r.Body, &ins); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := ins.Validate(); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if _, err := s.rep.Products().GetProductById(r.Context(), userId, productId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	pm, err := s.rep.ProductMetrics().UpsertProductMetrics(r.Context(), userId, productId, &ins)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	render.JSON(w, r, pm)
}

type manualUpdateRequest struct {
	CampaignName    string `json:"campaign_name"`
	ConfirmedLeads  int    `json:"confirmed_leads"`
	DeliveredOrders int    `json:"delivered_orders"`
}

// handleManualUpdate sets the hand-counted COD figures on a campaign and
// mirrors them into the daily stats.
func (s *Server) handleManualUpdate(w http.ResponseWriter, r *http.Request) {
	if _, err := productIdParam(r, "productId"); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	userId := userIdFromCtx(r)

	var req manualUpdateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	req.CampaignName = strings.TrimSpace(req.CampaignName)
	if req.CampaignName == "" {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("campaign_name is required")))
		return
	}
	if req.ConfirmedLeads < 0 || req.DeliveredOrders < 0 {
		render.Render(w, r, ErrInvalidRequest(entity.ErrNegativeMetrics))
		return
	}

	var updated int
	err := s.rep.Tx(r.Context(), func(ctx context.Context, rep dependency.Repository) error {
		n, err := rep.Reports().SetManualCounts(ctx, userId, req.CampaignName, req.ConfirmedLeads, req.DeliveredOrders)
		if err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	if updated == 0 {
		render.Render(w, r, ErrNotFound)
		return
	}
	render.JSON(w, r, map[string]any{
		"message": "manual counts updated",
		"updated": updated,
	})
}
