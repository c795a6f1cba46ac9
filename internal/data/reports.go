package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vitanapos/vitana/internal/store"
	"github.com/vitanapos/vitana/internal/types"
)

// SalesStats aggregates revenue from the current sales listing. Works the
// same online and offline since it runs over LoadData output.
func (s *Service) SalesStats(ctx context.Context, businessID string) (*types.SalesStats, error) {
	raw, err := s.LoadData(ctx, types.TypeSales, businessID)
	if err != nil {
		return nil, err
	}

	var sales []types.Sale
	if err := json.Unmarshal(raw, &sales); err != nil {
		return nil, fmt.Errorf("parse sales: %w", err)
	}

	now := time.Now().UTC()
	stats := &types.SalesStats{PaymentMethods: make(map[string]float64)}

	for _, sale := range sales {
		t := sale.CreatedAt
		if sameDay(t, now) {
			stats.DailyRevenue += sale.Total
		}
		if t.Year() == now.Year() && t.Month() == now.Month() {
			stats.MonthlyRevenue += sale.Total
		}
		if t.Year() == now.Year() {
			stats.YearlyRevenue += sale.Total
		}
		if sale.PaymentMethod != "" {
			stats.PaymentMethods[sale.PaymentMethod] += sale.Total
		}
	}

	return stats, nil
}

// LowStock returns products at or below their minimum stock level.
func (s *Service) LowStock(ctx context.Context, businessID string) ([]types.Product, error) {
	products, err := s.loadProducts(ctx, businessID)
	if err != nil {
		return nil, err
	}

	low := make([]types.Product, 0)
	for _, p := range products {
		if p.Stock <= p.MinStock {
			low = append(low, p)
		}
	}
	return low, nil
}

// ProductByBarcode finds a product by its barcode, serving from local
// data when offline. Returns store.ErrNotFound when no product matches.
func (s *Service) ProductByBarcode(ctx context.Context, businessID, barcode string) (*types.Product, error) {
	products, err := s.loadProducts(ctx, businessID)
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		if p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

// AdjustStock applies a stock delta to a product and records the matching
// stock movement, both as optimistic local writes.
func (s *Service) AdjustStock(ctx context.Context, businessID, productID string, delta int, kind types.MovementKind, reason string) (*types.Product, error) {
	rec, err := s.store.GetRecord(ctx, types.TypeProducts, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	var product types.Product
	if err := json.Unmarshal(rec.Data, &product); err != nil {
		return nil, fmt.Errorf("parse product %s: %w", productID, err)
	}

	product.Stock += delta
	if product.Stock < 0 {
		product.Stock = 0
	}
	product.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(product)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.SaveData(ctx, types.TypeProducts, types.ActionUpdate, payload, businessID, productID); err != nil {
		return nil, err
	}

	movement := types.StockMovement{
		ProductID: productID,
		Kind:      kind,
		Quantity:  delta,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	movementPayload, err := json.Marshal(movement)
	if err != nil {
		return nil, fmt.Errorf("marshal movement: %w", err)
	}
	if _, err := s.SaveData(ctx, types.TypeMovements, types.ActionCreate, movementPayload, businessID, ""); err != nil {
		return nil, err
	}

	return &product, nil
}

func (s *Service) loadProducts(ctx context.Context, businessID string) ([]types.Product, error) {
	raw, err := s.LoadData(ctx, types.TypeProducts, businessID)
	if err != nil {
		return nil, err
	}

	var products []types.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}
	return products, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
