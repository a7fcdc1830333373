package domain

import (
	"slices"

	"github.com/ivankomartin/deposit-console/pkg/pagination"
)

// Status filters the product list by the active flag.
type Status string

// Status values. StatusAll leaves the active parameter off the request.
const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ValidStatuses returns the status filters in display order.
func ValidStatuses() []Status {
	return []Status{StatusAll, StatusActive, StatusInactive}
}

// IsValidStatus reports whether s is a known status filter.
func IsValidStatus(s Status) bool {
	return slices.Contains(ValidStatuses(), s)
}

// Active maps the filter to the API's active parameter. A nil result means
// both statuses.
func (s Status) Active() *bool {
	var v bool
	switch s {
	case StatusActive:
		v = true
	case StatusInactive:
		v = false
	default:
		return nil
	}
	return &v
}

// SortField is a column the product API can sort by.
type SortField string

// Sortable fields.
const (
	SortByName         SortField = "name"
	SortByRegisteredAt SortField = "registeredAt"
)

// IsValidSortField reports whether f is a sortable field.
func IsValidSortField(f SortField) bool {
	return f == SortByName || f == SortByRegisteredAt
}

// DefaultOrder is the order a freshly selected sort field starts with:
// alphabetical for names, newest first for registration time.
func (f SortField) DefaultOrder() SortOrder {
	if f == SortByName {
		return OrderAsc
	}
	return OrderDesc
}

// SortOrder is the direction of a sort.
type SortOrder string

// Sort directions.
const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// IsValidSortOrder reports whether o is asc or desc.
func IsValidSortOrder(o SortOrder) bool {
	return o == OrderAsc || o == OrderDesc
}

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == OrderAsc {
		return OrderDesc
	}
	return OrderAsc
}

// PaginationInfo is the pagination block of a product API list response.
type PaginationInfo = pagination.Info

// ProductsQuery is one request to GET /api/products. Zero fields are left
// off the request.
type ProductsQuery struct {
	Page   int
	Limit  int
	Active *bool
	Sort   SortField
	Order  SortOrder
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Data       []Product      `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}
