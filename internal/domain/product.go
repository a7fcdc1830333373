package domain

import (
	"slices"
	"strconv"
)

// Packaging is the container type a deposit applies to.
type Packaging string

// Packaging kinds accepted by the product API.
const (
	PackagingPET   Packaging = "pet"
	PackagingCan   Packaging = "can"
	PackagingGlass Packaging = "glass"
	PackagingTetra Packaging = "tetra"
	PackagingOther Packaging = "other"
)

// MaxVolumeML is the largest container volume accepted on creation.
const MaxVolumeML = 5000

// Product is a deposit-bearing product as returned by the product API.
// Deposit is in minor currency units, Volume in millilitres.
type Product struct {
	ID             int64     `json:"id"`
	CompanyID      int64     `json:"companyId"`
	RegisteredByID int64     `json:"registeredById"`
	Name           string    `json:"name"`
	Packaging      Packaging `json:"packaging"`
	Deposit        int64     `json:"deposit"`
	Volume         int64     `json:"volume"`
	RegisteredAt   string    `json:"registeredAt"`
	Active         bool      `json:"active"`
}

// CompanyKey returns the company id in the form the list filter compares
// against.
func (p Product) CompanyKey() string {
	return strconv.FormatInt(p.CompanyID, 10)
}

// Status renders the active flag for display.
func (p Product) Status() Status {
	if p.Active {
		return StatusActive
	}
	return StatusInactive
}

// ValidPackagings returns every packaging kind in display order.
func ValidPackagings() []Packaging {
	return []Packaging{PackagingPET, PackagingCan, PackagingGlass, PackagingTetra, PackagingOther}
}

// IsValidPackaging reports whether p is a known packaging kind.
func IsValidPackaging(p Packaging) bool {
	return slices.Contains(ValidPackagings(), p)
}

// NewProduct is the creation payload sent to POST /api/products.
type NewProduct struct {
	Name           string    `json:"name" validate:"required,min=2"`
	Packaging      Packaging `json:"packaging" validate:"required,oneof=pet can glass tetra other"`
	Deposit        int64     `json:"deposit" validate:"gt=0"`
	Volume         int64     `json:"volume" validate:"gt=0,lte=5000"`
	CompanyID      int64     `json:"companyId" validate:"gt=0"`
	RegisteredByID int64     `json:"registeredById" validate:"gt=0"`
}
