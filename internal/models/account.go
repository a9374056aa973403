package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser           = "user"
	RoleAdmin          = "admin"
	RoleSeller         = "seller"
	RoleEmployee       = "employee"
	RoleOnlineEmployee = "online_employee"
)

// Roles lists every account role, in login precedence order.
var Roles = []string{RoleUser, RoleAdmin, RoleSeller, RoleEmployee, RoleOnlineEmployee}

// RoleCollections maps each role to the collection holding its accounts.
var RoleCollections = map[string]string{
	RoleUser:           "users",
	RoleAdmin:          "admins",
	RoleSeller:         "sellers",
	RoleEmployee:       "employees",
	RoleOnlineEmployee: "online_employees",
}

func IsValidRole(role string) bool {
	_, ok := RoleCollections[role]
	return ok
}

// IsStaffRole reports whether role belongs to a salaried account.
func IsStaffRole(role string) bool {
	return role == RoleEmployee || role == RoleOnlineEmployee
}

// Account holds the fields shared by every account collection.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CartItem is a single cart line kept on the user document.
type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// User is a storefront customer.
type User struct {
	Account `bson:",inline"`
	Address string     `bson:"address,omitempty" json:"address,omitempty"`
	City    string     `bson:"city,omitempty" json:"city,omitempty"`
	Cart    []CartItem `bson:"cart" json:"cart"`
}

type Admin struct {
	Account `bson:",inline"`
}

type Seller struct {
	Account  `bson:",inline"`
	ShopName string `bson:"shopName,omitempty" json:"shopName,omitempty"`
}

// Employee is used for both on-site and e-commerce staff; Role tells them
// apart and picks the collection.
type Employee struct {
	Account      `bson:",inline"`
	EmployeeCode string    `bson:"employeeCode" json:"employeeCode"`
	Position     string    `bson:"position,omitempty" json:"position,omitempty"`
	DayRate      float64   `bson:"dayRate" json:"dayRate"`
	JoinedAt     time.Time `bson:"joinedAt" json:"joinedAt"`
}
