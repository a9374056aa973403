package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func uniqueEmailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	}
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{collection: "users", models: []mongo.IndexModel{uniqueEmailIndex()}},
		{collection: "admins", models: []mongo.IndexModel{uniqueEmailIndex()}},
		{collection: "sellers", models: []mongo.IndexModel{uniqueEmailIndex()}},
		{collection: "employees", models: []mongo.IndexModel{
			uniqueEmailIndex(),
			{
				Keys: bson.D{{Key: "employeeCode", Value: 1}},
				Options: options.Index().
					SetName("employeeCode_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"employeeCode": bson.M{"$exists": true}}),
			},
		}},
		{collection: "online_employees", models: []mongo.IndexModel{uniqueEmailIndex()}},
		{collection: "products", models: []mongo.IndexModel{
			{
				// Soft-deleted products release their code.
				Keys: bson.D{{Key: "productId", Value: 1}},
				Options: options.Index().
					SetName("productId_live_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isDeleted": false}),
			},
			{
				Keys:    bson.D{{Key: "categoryId", Value: 1}, {Key: "isActive", Value: 1}},
				Options: options.Index().SetName("category_active"),
			},
		}},
		{collection: "categories", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetName("name_unique").SetUnique(true),
			},
		}},
		{collection: "orders", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("userId_createdAt"),
			},
			{
				Keys:    bson.D{{Key: "orderNumber", Value: 1}},
				Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
			},
		}},
		{collection: "attendance", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "employeeId", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetName("employee_date_unique").SetUnique(true),
			},
		}},
		{collection: "salary_adjustments", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "employeeId", Value: 1}, {Key: "month", Value: 1}},
				Options: options.Index().SetName("employee_month_unique").SetUnique(true),
			},
		}},
		{collection: "leaves", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "employeeId", Value: 1}, {Key: "startDate", Value: 1}},
				Options: options.Index().SetName("employee_startDate"),
			},
		}},
		{collection: "product_reviews", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}},
				Options: options.Index().SetName("user_product_unique").SetUnique(true),
			},
		}},
		{collection: "refresh_tokens", models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "tokenHash", Value: 1}},
				Options: options.Index().SetName("tokenHash_index"),
			},
			{
				Keys:    bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
			},
		}},
	}
}

// EnsureIndexes creates every index the handlers rely on. A failing
// collection is logged and skipped so the server can still start.
func EnsureIndexes(db *mongo.Database, l *logrus.Logger) {
	for _, plan := range indexPlan() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		names, err := db.Collection(plan.collection).Indexes().CreateMany(ctx, plan.models)
		cancel()

		entry := l.WithFields(logrus.Fields{"component": "DATABASE", "collection": plan.collection})
		if err != nil {
			entry.WithError(err).Warn("index creation failed")
			continue
		}
		entry.WithField("indexes", names).Debug("indexes ensured")
	}
}
