package domain

import "strings"

// Company owns registered products. It is read-only in the console.
type Company struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	RegisteredAt string `json:"registeredAt"`
}

// User is a company employee who can register products.
type User struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"companyId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// FullName joins first and last name, skipping empty parts.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
