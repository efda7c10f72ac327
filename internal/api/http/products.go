package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

func (s *Server) productWithStats(r *http.Request, userId uuid.UUID, p entity.Product, pm *entity.ProductMetrics) (*entity.ProductWithStats, error) {
	agg, err := s.rep.Reports().GetProductAggregate(r.Context(), userId, p.ProductName)
	if err != nil {
		return nil, err
	}
	platformStats, err := s.rep.Reports().GetProductPlatformStats(r.Context(), userId, p.ProductName)
	if err != nil {
		return nil, err
	}

	in := metrics.Input{
		UnitCost:       p.UnitCost,
		SellingPrice:   p.SellingPrice,
		UnitsDelivered: p.UnitsDelivered,
		TotalAdSpend:   agg.TotalSpend,
		TotalLeads:     agg.TotalLeads,
	}
	if pm != nil && pm.HasManualValues() {
		in.UnitCost = pm.UnitCost
		in.SellingPrice = pm.SellingPrice
		in.UnitsDelivered = pm.UnitsDelivered
	}
	calc := metrics.Calculate(in, s.fees.Override(pm))

	return &entity.ProductWithStats{
		Product:          p,
		TotalSpend:       agg.TotalSpend,
		TotalRevenue:     calc.TotalRevenue,
		TotalConversions: agg.TotalConversions,
		TotalLeads:       agg.TotalLeads,
		Profit:           calc.NetProfit,
		Roi:              calc.Roi,
		Roas:             calc.Roas,
		BestPlatform:     metrics.BestPlatform(platformStats),
	}, nil
}

func sortProducts(list []entity.ProductWithStats, sortBy entity.SortFactor, order entity.OrderFactor) {
	cmp := func(a, b *entity.ProductWithStats) int {
		switch sortBy {
		case entity.SortProductName:
			return strings.Compare(strings.ToLower(a.ProductName), strings.ToLower(b.ProductName))
		case entity.SortTotalSpend:
			return a.TotalSpend.Cmp(b.TotalSpend)
		case entity.SortTotalRevenue:
			return a.TotalRevenue.Cmp(b.TotalRevenue)
		case entity.SortProfit:
			return a.Profit.Cmp(b.Profit)
		case entity.SortRoi:
			return a.Roi.Cmp(b.Roi)
		case entity.SortRoas:
			return a.Roas.Cmp(b.Roas)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		c := cmp(&list[i], &list[j])
		if order == entity.Ascending {
			return c < 0
		}
		return c > 0
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	userId := userIdFromCtx(r)

	sortBy := entity.SortFactor(r.URL.Query().Get("sortBy"))
	if sortBy == "" {
		sortBy = entity.SortCreatedAt
	}
	if !entity.IsValidSortFactor(string(sortBy)) {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("unknown sortBy %q", sortBy)))
		return
	}
	order := entity.Descending
	if strings.EqualFold(r.URL.Query().Get("sortOrder"), "asc") {
		order = entity.Ascending
	}

	products, err := s.rep.Products().ListProducts(r.Context(), userId, r.URL.Query().Get("search"))
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	metricsRows, err := s.rep.ProductMetrics().GetMetricsForUser(r.Context(), userId)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	byProduct := make(map[int]*entity.ProductMetrics, len(metricsRows))
	for i := range metricsRows {
		byProduct[metricsRows[i].ProductId] = &metricsRows[i]
	}

	list := make([]entity.ProductWithStats, 0, len(products))
	for _, p := range products {
		ps, err := s.productWithStats(r, userId, p, byProduct[p.Id])
		if err != nil {
			render.Render(w, r, ErrInternalServerError(err))
			return
		}
		list = append(list, *ps)
	}
	sortProducts(list, sortBy, order)

	render.JSON(w, r, map[string]any{
		"products": list,
		"total":    len(list),
	})
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var ins entity.ProductInsert
	if err := render.DecodeJSON(r.Body, &ins); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	ins.ProductName = strings.TrimSpace(ins.ProductName)
	if _, err := govalidator.ValidateStruct(ins); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	p, err := s.rep.Products().AddProduct(r.Context(), userIdFromCtx(r), &ins)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, p)
}

func productIdParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("bad product id")
	}
	return id, nil
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productIdParam(r, "id")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	var upd entity.ProductUpdate
	if err := render.DecodeJSON(r.Body, &upd); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	p, err := s.rep.Products().UpdateProduct(r.Context(), userIdFromCtx(r), id, &upd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	render.JSON(w, r, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productIdParam(r, "id")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.rep.Products().DeleteProductById(r.Context(), userIdFromCtx(r), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	render.JSON(w, r, map[string]string{"message": "product deleted"})
}

type bulkDeleteRequest struct {
	Ids []int `json:"ids" valid:"required"`
}

func (s *Server) handleBulkDeleteProducts(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if len(req.Ids) == 0 {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("ids must not be empty")))
		return
	}

	deleted, err := s.rep.Products().DeleteProductsByIds(r.Context(), userIdFromCtx(r), req.Ids)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	render.JSON(w, r, map[string]int{"deleted": deleted})
}

type bulkUpdateRequest struct {
	Ids    []int                `json:"ids"`
	Fields entity.ProductUpdate `json:"fields"`
}

func (s *Server) handleBulkUpdateProducts(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if len(req.Ids) == 0 || req.Fields.Empty() {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("ids and fields must not be empty")))
		return
	}
	// bulk renames would collide on the unique product name
	if req.Fields.ProductName != nil && len(req.Ids) > 1 {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("product_name can't be bulk updated")))
		return
	}

	updated, err := s.rep.Products().UpdateProductsByIds(r.Context(), userIdFromCtx(r), req.Ids, &req.Fields)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	render.JSON(w, r, map[string]int{"updated": updated})
}

func (s *Server) handleProductDetail(w http.ResponseWriter, r *http.Request) {
	id, err := productIdParam(r, "id")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	userId := userIdFromCtx(r)

	p, err := s.rep.Products().GetProductById(r.Context(), userId, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	pm, err := s.rep.ProductMetrics().GetOrCreateProductMetrics(r.Context(), userId, p.Id)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	stats, err := s.productWithStats(r, userId, *p, pm)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	daily, err := s.rep.Reports().GetDailyStats(r.Context(), userId, entity.ReportFilter{Product: p.ProductName})
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}
	platformStats, err := s.rep.Reports().GetProductPlatformStats(r.Context(), userId, p.ProductName)
	if err != nil {
		render.Render(w, r, ErrInternalServerError(err))
		return
	}

	render.JSON(w, r, map[string]any{
		"product":    stats,
		"metrics":    pm,
		"dailyStats": daily,
		"platforms":  platformStats,
	})
}
