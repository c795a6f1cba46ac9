package validation

import (
	"testing"

	"github.com/vitanapos/vitana/internal/types"
)

func fieldSet(errs []ValidationError) map[string]bool {
	fields := make(map[string]bool, len(errs))
	for _, e := range errs {
		fields[e.Field] = true
	}
	return fields
}

func TestValidateProduct(t *testing.T) {
	valid := types.Product{Name: "Coffee", Price: 9.9, Stock: 10, MinStock: 2}
	if errs := ValidateProduct(valid); len(errs) != 0 {
		t.Errorf("errs = %v, want none", errs)
	}

	invalid := types.Product{Price: -1, Stock: -5}
	fields := fieldSet(ValidateProduct(invalid))
	for _, want := range []string{"name", "price", "stock"} {
		if !fields[want] {
			t.Errorf("missing error for field %q", want)
		}
	}
}

func TestValidateSale(t *testing.T) {
	valid := types.Sale{
		Total:         19.8,
		PaymentMethod: "cash",
		Items: []types.SaleItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: 9.9},
		},
	}
	if errs := ValidateSale(valid); len(errs) != 0 {
		t.Errorf("errs = %v, want none", errs)
	}

	empty := types.Sale{Total: 10, PaymentMethod: "cash"}
	if !fieldSet(ValidateSale(empty))["items"] {
		t.Error("missing error for empty items")
	}

	badItem := types.Sale{
		Total:         10,
		PaymentMethod: "cash",
		Items:         []types.SaleItem{{Quantity: 0, UnitPrice: -1}},
	}
	fields := fieldSet(ValidateSale(badItem))
	for _, want := range []string{"items[0].product_id", "items[0].quantity", "items[0].unit_price"} {
		if !fields[want] {
			t.Errorf("missing error for field %q", want)
		}
	}
}

func TestValidateMovement(t *testing.T) {
	valid := types.StockMovement{ProductID: "prod-1", Kind: types.MovementIn, Quantity: 5}
	if errs := ValidateMovement(valid); len(errs) != 0 {
		t.Errorf("errs = %v, want none", errs)
	}

	invalid := types.StockMovement{Kind: types.MovementKind("teleport")}
	fields := fieldSet(ValidateMovement(invalid))
	for _, want := range []string{"product_id", "kind", "quantity"} {
		if !fields[want] {
			t.Errorf("missing error for field %q", want)
		}
	}
}

func TestValidateSetting(t *testing.T) {
	if errs := ValidateSetting(types.Setting{BusinessName: "Mercado Central"}); len(errs) != 0 {
		t.Errorf("errs = %v, want none", errs)
	}
	if errs := ValidateSetting(types.Setting{}); len(errs) != 1 {
		t.Errorf("errs = %v, want one", errs)
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	if c.HasErrors() {
		t.Error("fresh collector reports errors")
	}
	c.Add(nil)
	if c.HasErrors() {
		t.Error("nil add must not register an error")
	}
	c.Add(Required("name", ""))
	if !c.HasErrors() || len(c.Errors()) != 1 {
		t.Errorf("errors = %v, want one", c.Errors())
	}
}
