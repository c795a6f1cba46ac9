package validation

import (
	"fmt"

	"github.com/vitanapos/vitana/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// Required returns an error if the value is empty.
func Required(field, value string) *ValidationError {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// NonNegative returns an error if the value is below zero.
func NonNegative(field string, value float64) *ValidationError {
	if value < 0 {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	return nil
}

// Positive returns an error if the value is not greater than zero.
func Positive(field string, value float64) *ValidationError {
	if value <= 0 {
		return &ValidationError{Field: field, Message: "must be greater than zero"}
	}
	return nil
}

// ValidateProduct checks a product payload.
func ValidateProduct(p types.Product) []ValidationError {
	var c Collector
	c.Add(Required("name", p.Name))
	c.Add(NonNegative("price", p.Price))
	c.Add(NonNegative("cost", p.Cost))
	c.Add(NonNegative("stock", float64(p.Stock)))
	c.Add(NonNegative("min_stock", float64(p.MinStock)))
	return c.Errors()
}

// ValidateSale checks a sale payload.
func ValidateSale(s types.Sale) []ValidationError {
	var c Collector
	c.Add(Required("payment_method", s.PaymentMethod))
	c.Add(Positive("total", s.Total))
	if len(s.Items) == 0 {
		c.Add(&ValidationError{Field: "items", Message: "must contain at least one item"})
	}
	for i, item := range s.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		c.Add(Required(prefix+"product_id", item.ProductID))
		c.Add(Positive(prefix+"quantity", float64(item.Quantity)))
		c.Add(NonNegative(prefix+"unit_price", item.UnitPrice))
	}
	return c.Errors()
}

// ValidateMovement checks a stock movement payload.
func ValidateMovement(m types.StockMovement) []ValidationError {
	var c Collector
	c.Add(Required("product_id", m.ProductID))
	switch m.Kind {
	case types.MovementIn, types.MovementOut, types.MovementAdjustment:
	default:
		c.Add(&ValidationError{Field: "kind", Message: "must be one of in, out, adjustment"})
	}
	if m.Quantity == 0 {
		c.Add(&ValidationError{Field: "quantity", Message: "must not be zero"})
	}
	return c.Errors()
}

// ValidateSetting checks a business settings payload.
func ValidateSetting(s types.Setting) []ValidationError {
	var c Collector
	c.Add(Required("business_name", s.BusinessName))
	return c.Errors()
}
