package store

import (
	"context"
	"fmt"

	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/entity"
	"github.com/google/uuid"
)

type productMetricsStore struct {
	*PGStore
}

// ProductMetrics returns an object implementing ProductMetrics interface
func (ps *PGStore) ProductMetrics() dependency.ProductMetrics {
	return &productMetricsStore{
		PGStore: ps,
	}
}

func (ms *productMetricsStore) getMetrics(ctx context.Context, userId uuid.UUID, productId int) (*entity.ProductMetrics, error) {
	query := `
	SELECT * FROM product_metrics
	WHERE user_id = :userId AND product_id = :productId`
	m, err := QueryNamedOne[entity.ProductMetrics](ctx, ms.db, query, map[string]any{
		"userId":    userId,
		"productId": productId,
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetOrCreateProductMetrics inserts a metrics row on first read so the
// edit form always has something to load, seeded from the product's own
// manual fields.
func (ms *productMetricsStore) GetOrCreateProductMetrics(ctx context.Context, userId uuid.UUID, productId int) (*entity.ProductMetrics, error) {
	now := ms.Now()
	insert := `
	INSERT INTO product_metrics
		(user_id, product_id, unit_cost, selling_price, units_delivered,
		stock_purchased, created_at, updated_at)
	SELECT user_id, id, unit_cost, selling_price, units_delivered,
		stock_purchased, :createdAt, :updatedAt
	FROM products
	WHERE id = :productId AND user_id = :userId
	ON CONFLICT (user_id, product_id) DO NOTHING`
	err := ExecNamed(ctx, ms.db, insert, map[string]any{
		"userId":    userId,
		"productId": productId,
		"createdAt": now,
		"updatedAt": now,
	})
	if err != nil {
		return nil, fmt.Errorf("can't create product metrics: %w", err)
	}
	return ms.getMetrics(ctx, userId, productId)
}

func (ms *productMetricsStore) UpsertProductMetrics(ctx context.Context, userId uuid.UUID, productId int, ins *entity.ProductMetricsInsert) (*entity.ProductMetrics, error) {
	now := ms.Now()
	query := `
	INSERT INTO product_metrics
		(user_id, product_id, unit_cost, selling_price, units_delivered,
		stock_purchased, created_at, updated_at)
	VALUES
		(:userId, :productId, :unitCost, :sellingPrice, :unitsDelivered,
		:stockPurchased, :createdAt, :updatedAt)
	ON CONFLICT (user_id, product_id) DO UPDATE SET
		unit_cost = EXCLUDED.unit_cost,
		selling_price = EXCLUDED.selling_price,
		units_delivered = EXCLUDED.units_delivered,
		stock_purchased = EXCLUDED.stock_purchased,
		updated_at = EXCLUDED.updated_at`
	err := ExecNamed(ctx, ms.db, query, map[string]any{
		"userId":         userId,
		"productId":      productId,
		"unitCost":       ins.UnitCost,
		"sellingPrice":   ins.SellingPrice,
		"unitsDelivered": ins.UnitsDelivered,
		"stockPurchased": ins.StockPurchased,
		"createdAt":      now,
		"updatedAt":      now,
	})
	if err != nil {
		return nil, fmt.Errorf("can't upsert product metrics: %w", err)
	}

	// mirror into products so both manual-field surfaces agree
	mirror := `
	UPDATE products SET
		unit_cost = :unitCost,
		selling_price = :sellingPrice,
		units_delivered = :unitsDelivered,
		stock_purchased = :stockPurchased,
		updated_at = :updatedAt
	WHERE id = :productId AND user_id = :userId`
	if err := ExecNamed(ctx, ms.db, mirror, map[string]any{
		"userId":         userId,
		"productId":      productId,
		"unitCost":       ins.UnitCost,
		"sellingPrice":   ins.SellingPrice,
		"unitsDelivered": ins.UnitsDelivered,
		"stockPurchased": ins.StockPurchased,
		"updatedAt":      now,
	}); err != nil {
		return nil, fmt.Errorf("can't mirror product fields: %w", err)
	}
	return ms.getMetrics(ctx, userId, productId)
}

func (ms *productMetricsStore) GetMetricsForUser(ctx context.Context, userId uuid.UUID) ([]entity.ProductMetrics, error) {
	query := `SELECT * FROM product_metrics WHERE user_id = :userId`
	metrics, err := QueryListNamed[entity.ProductMetrics](ctx, ms.db, query, map[string]any{
		"userId": userId,
	})
	if err != nil {
		return nil, fmt.Errorf("can't list product metrics: %w", err)
	}
	return metrics, nil
}
