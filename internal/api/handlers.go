package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vitanapos/vitana/internal/data"
	"github.com/vitanapos/vitana/internal/types"
	"github.com/vitanapos/vitana/internal/validation"
)

// Handler implements the local API the POS front-end consumes. Every
// write goes through the persistence facade and succeeds immediately
// against local storage regardless of backend reachability.
type Handler struct {
	data    *data.Service
	apiKey  string
	version string
}

// NewHandler creates a new Handler.
func NewHandler(svc *data.Service, apiKey, version string) *Handler {
	return &Handler{
		data:    svc,
		apiKey:  apiKey,
		version: version,
	}
}

// HealthResponse is the payload of GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Connection string `json:"connection"`
	Pending    int    `json:"pending"`
}

// Health returns the service health and connectivity snapshot.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	pending, err := h.data.PendingCount(r.Context())
	if err != nil {
		slog.Error("pending count failed", "error", err)
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "OK",
		Version:    h.version,
		Connection: h.data.ConnectionStatus(),
		Pending:    pending,
	})
}

// ListProducts handles GET /api/v1/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, types.TypeProducts)
}

// CreateProduct handles POST /api/v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product types.Product
	body, ok := decode(w, r, &product)
	if !ok {
		return
	}
	if errs := validation.ValidateProduct(product); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Product contains invalid fields", errs)
		return
	}
	h.save(w, r, types.TypeProducts, types.ActionCreate, body, product.ID)
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var product types.Product
	body, ok := decode(w, r, &product)
	if !ok {
		return
	}
	if errs := validation.ValidateProduct(product); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Product contains invalid fields", errs)
		return
	}
	h.save(w, r, types.TypeProducts, types.ActionUpdate, body, chi.URLParam(r, "id"))
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	payload, _ := json.Marshal(map[string]string{"id": id})
	if _, err := h.data.SaveData(r.Context(), types.TypeProducts, types.ActionDelete, payload, businessID, id); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ProductByBarcode handles GET /api/v1/products/barcode/{barcode}.
func (h *Handler) ProductByBarcode(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	product, err := h.data.ProductByBarcode(r.Context(), businessID, chi.URLParam(r, "barcode"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// LowStock handles GET /api/v1/products/low-stock.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	products, err := h.data.LowStock(r.Context(), businessID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// adjustStockRequest is the payload of PATCH /api/v1/products/{id}/stock.
type adjustStockRequest struct {
	Delta  int                `json:"delta"`
	Kind   types.MovementKind `json:"kind"`
	Reason string             `json:"reason,omitempty"`
}

// AdjustStock handles PATCH /api/v1/products/{id}/stock. It applies the
// delta and records the matching stock movement in one call.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	var req adjustStockRequest
	if _, ok := decode(w, r, &req); !ok {
		return
	}
	if req.Kind == "" {
		req.Kind = types.MovementAdjustment
	}

	product, err := h.data.AdjustStock(r.Context(), businessID, chi.URLParam(r, "id"), req.Delta, req.Kind, req.Reason)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// ListSales handles GET /api/v1/sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, types.TypeSales)
}

// CreateSale handles POST /api/v1/sales.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var sale types.Sale
	body, ok := decode(w, r, &sale)
	if !ok {
		return
	}
	if errs := validation.ValidateSale(sale); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Sale contains invalid fields", errs)
		return
	}
	h.save(w, r, types.TypeSales, types.ActionCreate, body, sale.ID)
}

// SalesStats handles GET /api/v1/sales/stats.
func (h *Handler) SalesStats(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	stats, err := h.data.SalesStats(r.Context(), businessID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetSettings handles GET /api/v1/settings. Settings are a singleton per
// business; the listing holds at most one element.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	raw, err := h.data.LoadData(r.Context(), types.TypeSettings, businessID)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var settings []types.Setting
	if err := json.Unmarshal(raw, &settings); err != nil || len(settings) == 0 {
		WriteProblem(w, r, http.StatusNotFound, "Settings not configured")
		return
	}
	writeJSON(w, http.StatusOK, settings[0])
}

// UpdateSettings handles PUT /api/v1/settings. Settings are one record
// per business updated in place, so a payload without an id gets the
// deterministic per-business id rather than a fresh one; repeated writes
// replace the same local record.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var setting types.Setting
	body, ok := decode(w, r, &setting)
	if !ok {
		return
	}
	if errs := validation.ValidateSetting(setting); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Settings contain invalid fields", errs)
		return
	}

	id := setting.ID
	if id == "" {
		bizID, ok := businessID(w, r)
		if !ok {
			return
		}
		id = settingsID(bizID)
	}
	h.save(w, r, types.TypeSettings, types.ActionUpdate, body, id)
}

// settingsID derives the singleton settings record id for a business.
func settingsID(businessID string) string {
	return "settings-" + businessID
}

// ListMovements handles GET /api/v1/movements.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, types.TypeMovements)
}

// CreateMovement handles POST /api/v1/movements.
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var movement types.StockMovement
	body, ok := decode(w, r, &movement)
	if !ok {
		return
	}
	if errs := validation.ValidateMovement(movement); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Movement contains invalid fields", errs)
		return
	}
	h.save(w, r, types.TypeMovements, types.ActionCreate, body, movement.ID)
}

// list serves a bulk listing through the facade's fallback chain.
func (h *Handler) list(w http.ResponseWriter, r *http.Request, rt types.RecordType) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	raw, err := h.data.LoadData(r.Context(), rt, businessID)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// save routes a validated mutation through the facade and answers with
// the record id. The write is optimistic: a 201 means locally durable,
// not server-confirmed.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, rt types.RecordType, action types.Action, body json.RawMessage, id string) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	newID, err := h.data.SaveData(r.Context(), rt, action, body, businessID, id)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusCreated
	if action != types.ActionCreate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]string{"id": newID})
}

// decode reads and parses the request body, answering 400 on bad JSON.
// Returns the raw body for pass-through to the facade.
func decode(w http.ResponseWriter, r *http.Request, dst any) (json.RawMessage, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return nil, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid payload: %s", err.Error()))
		return nil, false
	}
	return raw, true
}

// businessID extracts the tenant scope from the X-Business-ID header.
func businessID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Business-ID")
	if id == "" {
		WriteProblem(w, r, http.StatusBadRequest, "X-Business-ID header is required")
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
