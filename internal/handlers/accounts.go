package handlers

import (
	"context"
	"strings"

	"autoparts/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func accountCollection(db *mongo.Database, role string) *mongo.Collection {
	return db.Collection(models.RoleCollections[role])
}

// newAccountDocument returns the concrete model for role, ready to decode.
func newAccountDocument(role string) any {
	switch role {
	case models.RoleUser:
		return &models.User{}
	case models.RoleAdmin:
		return &models.Admin{}
	case models.RoleSeller:
		return &models.Seller{}
	default:
		return &models.Employee{}
	}
}

func findAccount(ctx context.Context, db *mongo.Database, role string, filter bson.M) (models.Account, error) {
	var account models.Account
	if err := accountCollection(db, role).FindOne(ctx, filter).Decode(&account); err != nil {
		return models.Account{}, err
	}
	if account.Role == "" {
		account.Role = role
	}
	return account, nil
}

func findAccountByID(ctx context.Context, db *mongo.Database, role string, id primitive.ObjectID) (models.Account, error) {
	return findAccount(ctx, db, role, bson.M{"_id": id})
}

func findEmployee(ctx context.Context, db *mongo.Database, role string, id primitive.ObjectID) (models.Employee, error) {
	var employee models.Employee
	if err := accountCollection(db, role).FindOne(ctx, bson.M{"_id": id}).Decode(&employee); err != nil {
		return models.Employee{}, err
	}
	if employee.Role == "" {
		employee.Role = role
	}
	return employee, nil
}

// findStaffEmployee looks an id up in both salaried collections.
func findStaffEmployee(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.Employee, error) {
	employee, err := findEmployee(ctx, db, models.RoleEmployee, id)
	if err == mongo.ErrNoDocuments {
		return findEmployee(ctx, db, models.RoleOnlineEmployee, id)
	}
	return employee, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func accountSummary(a models.Account) map[string]any {
	return map[string]any{
		"id":    a.ID.Hex(),
		"name":  a.Name,
		"email": a.Email,
		"role":  a.Role,
	}
}
