package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
)

type productStore struct {
	*PGStore
}

// Products returns an object implementing Products interface
func (ps *PGStore) Products() dependency.Products {
	return &productStore{
		PGStore: ps,
	}
}

func (pdb *productStore) AddProduct(ctx context.Context, userId uuid.UUID, ins *entity.ProductInsert) (*entity.Product, error) {
	now := pdb.Now()
	query := `
	INSERT INTO products
		(user_id, product_name, unit_cost, selling_price, units_delivered,
		stock_purchased, revenue_per_conversion, created_at, updated_at)
	VALUES
		(:userId, :productName, :unitCost, :sellingPrice, :unitsDelivered,
		:stockPurchased, :revenuePerConversion, :createdAt, :updatedAt)
	RETURNING id`
	id, err := ExecNamedLastId(ctx, pdb.db, query, map[string]any{
		"userId":               userId,
		"productName":          ins.ProductName,
		"unitCost":             ins.UnitCost,
		"sellingPrice":         ins.SellingPrice,
		"unitsDelivered":       ins.UnitsDelivered,
		"stockPurchased":       ins.StockPurchased,
		"revenuePerConversion": ins.RevenuePerConversion,
		"createdAt":            now,
		"updatedAt":            now,
	})
	if err != nil {
		if pdb.IsErrUniqueViolation(err) {
			return nil, fmt.Errorf("product %q already exists", ins.ProductName)
		}
		return nil, fmt.Errorf("can't insert product: %w", err)
	}

	// keep the metrics copy of the manual fields in step from the start
	insertMetrics := `
	INSERT INTO product_metrics
		(user_id, product_id, unit_cost, selling_price, units_delivered,
		stock_purchased, created_at, updated_at)
	VALUES
		(:userId, :productId, :unitCost, :sellingPrice, :unitsDelivered,
		:stockPurchased, :createdAt, :updatedAt)
	ON CONFLICT (user_id, product_id) DO NOTHING`
	if err := ExecNamed(ctx, pdb.db, insertMetrics, map[string]any{
		"userId":         userId,
		"productId":      id,
		"unitCost":       ins.UnitCost,
		"sellingPrice":   ins.SellingPrice,
		"unitsDelivered": ins.UnitsDelivered,
		"stockPurchased": ins.StockPurchased,
		"createdAt":      now,
		"updatedAt":      now,
	}); err != nil {
		return nil, fmt.Errorf("can't insert product metrics: %w", err)
	}

	return &entity.Product{
		Id:            id,
		UserId:        userId,
		CreatedAt:     now,
		UpdatedAt:     now,
		ProductInsert: *ins,
	}, nil
}

// EnsureProducts inserts a zero-valued product for every name the user does
// not have yet, together with an empty product_metrics row. Existing names
// are left untouched.
func (pdb *productStore) EnsureProducts(ctx context.Context, userId uuid.UUID, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	now := pdb.Now()
	insertProduct := `
	INSERT INTO products (user_id, product_name, created_at, updated_at)
	VALUES (:userId, :productName, :createdAt, :updatedAt)
	ON CONFLICT (user_id, product_name) DO NOTHING
	RETURNING id`
	insertMetrics := `
	INSERT INTO product_metrics (user_id, product_id, created_at, updated_at)
	VALUES (:userId, :productId, :createdAt, :updatedAt)
	ON CONFLICT (user_id, product_id) DO NOTHING`

	created := 0
	for _, name := range names {
		id, err := ExecNamedLastId(ctx, pdb.db, insertProduct, map[string]any{
			"userId":      userId,
			"productName": name,
			"createdAt":   now,
			"updatedAt":   now,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// conflict, the product already exists
				continue
			}
			return created, fmt.Errorf("can't ensure product %q: %w", name, err)
		}
		if err := ExecNamed(ctx, pdb.db, insertMetrics, map[string]any{
			"userId":    userId,
			"productId": id,
			"createdAt": now,
			"updatedAt": now,
		}); err != nil {
			return created, fmt.Errorf("can't insert product metrics for %q: %w", name, err)
		}
		created++
	}
	return created, nil
}

func (pdb *productStore) GetProductById(ctx context.Context, userId uuid.UUID, id int) (*entity.Product, error) {
	query := `SELECT * FROM products WHERE id = :id AND user_id = :userId`
	p, err := QueryNamedOne[entity.Product](ctx, pdb.db, query, map[string]any{
		"id":     id,
		"userId": userId,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (pdb *productStore) ListProducts(ctx context.Context, userId uuid.UUID, search string) ([]entity.Product, error) {
	query := `SELECT * FROM products WHERE user_id = :userId`
	params := map[string]any{
		"userId": userId,
	}
	if search != "" {
		query += ` AND product_name ILIKE :search`
		params["search"] = "%" + search + "%"
	}
	query += ` ORDER BY created_at DESC`

	products, err := QueryListNamed[entity.Product](ctx, pdb.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("can't list products: %w", err)
	}
	return products, nil
}

// productSetClauses builds the SET part for a partial update. Returns nil
// when the update carries no fields.
func productSetClauses(upd *entity.ProductUpdate, params map[string]any) []string {
	var set []string
	if upd.ProductName != nil {
		set = append(set, "product_name = :productName")
		params["productName"] = *upd.ProductName
	}
	if upd.UnitCost != nil {
		set = append(set, "unit_cost = :unitCost")
		params["unitCost"] = *upd.UnitCost
	}
	if upd.SellingPrice != nil {
		set = append(set, "selling_price = :sellingPrice")
		params["sellingPrice"] = *upd.SellingPrice
	}
	if upd.UnitsDelivered != nil {
		set = append(set, "units_delivered = :unitsDelivered")
		params["unitsDelivered"] = *upd.UnitsDelivered
	}
	if upd.StockPurchased != nil {
		set = append(set, "stock_purchased = :stockPurchased")
		params["stockPurchased"] = *upd.StockPurchased
	}
	if upd.RevenuePerConversion != nil {
		set = append(set, "revenue_per_conversion = :revenuePerConversion")
		params["revenuePerConversion"] = *upd.RevenuePerConversion
	}
	return set
}

// metricsMirrorClauses builds the SET part for mirroring the manual COD
// fields into product_metrics. Clause parameter names match the ones
// productSetClauses already put into params.
func metricsMirrorClauses(upd *entity.ProductUpdate) []string {
	var set []string
	if upd.UnitCost != nil {
		set = append(set, "unit_cost = :unitCost")
	}
	if upd.SellingPrice != nil {
		set = append(set, "selling_price = :sellingPrice")
	}
	if upd.UnitsDelivered != nil {
		set = append(set, "units_delivered = :unitsDelivered")
	}
	if upd.StockPurchased != nil {
		set = append(set, "stock_purchased = :stockPurchased")
	}
	return set
}

func (pdb *productStore) UpdateProduct(ctx context.Context, userId uuid.UUID, id int, upd *entity.ProductUpdate) (*entity.Product, error) {
	if upd.Empty() {
		return pdb.GetProductById(ctx, userId, id)
	}

	params := map[string]any{
		"id":        id,
		"userId":    userId,
		"updatedAt": pdb.Now(),
	}
	set := productSetClauses(upd, params)
	set = append(set, "updated_at = :updatedAt")

	query := fmt.Sprintf(
		`UPDATE products SET %s WHERE id = :id AND user_id = :userId`,
		strings.Join(set, ", "),
	)
	n, err := ExecNamedAffected(ctx, pdb.db, query, params)
	if err != nil {
		if pdb.IsErrUniqueViolation(err) {
			return nil, fmt.Errorf("product name already taken")
		}
		return nil, fmt.Errorf("can't update product: %w", err)
	}
	if n == 0 {
		return nil, sql.ErrNoRows
	}

	// COD fields live in both tables; stale metrics copies would feed the
	// profitability figures
	if mirror := metricsMirrorClauses(upd); len(mirror) > 0 {
		mirror = append(mirror, "updated_at = :updatedAt")
		query := fmt.Sprintf(
			`UPDATE product_metrics SET %s WHERE product_id = :id AND user_id = :userId`,
			strings.Join(mirror, ", "),
		)
		if err := ExecNamed(ctx, pdb.db, query, params); err != nil {
			return nil, fmt.Errorf("can't mirror product metrics: %w", err)
		}
	}
	return pdb.GetProductById(ctx, userId, id)
}

func (pdb *productStore) DeleteProductById(ctx context.Context, userId uuid.UUID, id int) error {
	query := `DELETE FROM products WHERE id = :id AND user_id = :userId`
	n, err := ExecNamedAffected(ctx, pdb.db, query, map[string]any{
		"id":     id,
		"userId": userId,
	})
	if err != nil {
		return fmt.Errorf("can't delete product: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (pdb *productStore) DeleteProductsByIds(ctx context.Context, userId uuid.UUID, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM products WHERE user_id = :userId AND id IN (:ids)`
	n, err := ExecNamedAffected(ctx, pdb.db, query, map[string]any{
		"userId": userId,
		"ids":    ids,
	})
	if err != nil {
		return 0, fmt.Errorf("can't delete products: %w", err)
	}
	return n, nil
}

func (pdb *productStore) UpdateProductsByIds(ctx context.Context, userId uuid.UUID, ids []int, upd *entity.ProductUpdate) (int, error) {
	if len(ids) == 0 || upd.Empty() {
		return 0, nil
	}
	params := map[string]any{
		"ids":       ids,
		"userId":    userId,
		"updatedAt": pdb.Now(),
	}
	set := productSetClauses(upd, params)
	set = append(set, "updated_at = :updatedAt")

	query := fmt.Sprintf(
		`UPDATE products SET %s WHERE user_id = :userId AND id IN (:ids)`,
		strings.Join(set, ", "),
	)
	n, err := ExecNamedAffected(ctx, pdb.db, query, params)
	if err != nil {
		return 0, fmt.Errorf("can't bulk update products: %w", err)
	}

	if mirror := metricsMirrorClauses(upd); len(mirror) > 0 {
		mirror = append(mirror, "updated_at = :updatedAt")
		query := fmt.Sprintf(
			`UPDATE product_metrics SET %s WHERE user_id = :userId AND product_id IN (:ids)`,
			strings.Join(mirror, ", "),
		)
		if err := ExecNamed(ctx, pdb.db, query, params); err != nil {
			return 0, fmt.Errorf("can't mirror product metrics: %w", err)
		}
	}
	return n, nil
}
