package entity

import "github.com/shopspring/decimal"

type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	Image       string
	Tags        []string
}

// ProductSort selects the ordering of a catalog listing.
type ProductSort string

const (
	SortByName      ProductSort = ""
	SortByPriceAsc  ProductSort = "price-asc"
	SortByPriceDesc ProductSort = "price-desc"
	SortByStockDesc ProductSort = "stock-desc"
)

// ProductFilter narrows a catalog listing. Zero values mean "no filter".
type ProductFilter struct {
	Category string
	Search   string
	Sort     ProductSort
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}
