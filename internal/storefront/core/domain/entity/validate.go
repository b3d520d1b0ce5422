package entity

import (
	"strconv"
	"strings"
)

// MaxQuantity bounds a single line and the total requested per product.
const MaxQuantity = 10000

// Validate checks the shape of a purchase intent. It never touches storage.
func (r OrderRequest) Validate() error {
	if err := r.Customer.Validate(); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "order must contain at least one product"}
	}
	perProduct := make(map[string]int, len(r.Items))
	for i, it := range r.Items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return &ValidationError{Field: itemField(i, "productId"), Reason: "is required"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Field: itemField(i, "quantity"), Reason: "must be a positive integer"}
		}
		// Both operands are bounded here, so the sum cannot wrap.
		if it.Quantity > MaxQuantity || perProduct[id]+it.Quantity > MaxQuantity {
			return &ValidationError{
				Field:  itemField(i, "quantity"),
				Reason: "exceeds the limit of " + strconv.Itoa(MaxQuantity) + " units per product",
			}
		}
		perProduct[id] += it.Quantity
	}
	return nil
}

func (c Customer) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"customer.name", c.Name},
		{"customer.email", c.Email},
		{"customer.address", c.Address},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	return nil
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}
