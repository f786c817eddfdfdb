package domain

import "time"

// Role is the single role a user holds, fixed at registration.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (p Principal) IsSeller() bool   { return p.Role == RoleSeller }
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsSeller   bool      `json:"is_seller"`
	IsCustomer bool      `json:"is_customer"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile holds the contact details created alongside every user.
type Profile struct {
	Address     string `json:"address"`
	PhoneNumber string `json:"phone_number"`
}
