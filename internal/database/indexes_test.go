package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func findIndex(t *testing.T, collection, name string) (bson.D, bool) {
	t.Helper()
	for _, plan := range indexPlan() {
		if plan.collection != collection {
			continue
		}
		for _, model := range plan.models {
			require.NotNil(t, model.Options)
			require.NotNil(t, model.Options.Name)
			if *model.Options.Name == name {
				keys, ok := model.Keys.(bson.D)
				require.True(t, ok)
				unique := model.Options.Unique != nil && *model.Options.Unique
				return keys, unique
			}
		}
	}
	t.Fatalf("index %s.%s not planned", collection, name)
	return nil, false
}

func TestIndexPlanEnforcesBusinessUniqueness(t *testing.T) {
	cases := []struct {
		collection string
		name       string
		keys       []string
	}{
		{"products", "productId_live_unique", []string{"productId"}},
		{"categories", "name_unique", []string{"name"}},
		{"attendance", "employee_date_unique", []string{"employeeId", "date"}},
		{"salary_adjustments", "employee_month_unique", []string{"employeeId", "month"}},
		{"product_reviews", "user_product_unique", []string{"userId", "productId"}},
		{"users", "email_unique", []string{"email"}},
	}

	for _, tc := range cases {
		t.Run(tc.collection+"/"+tc.name, func(t *testing.T) {
			keys, unique := findIndex(t, tc.collection, tc.name)
			assert.True(t, unique)

			got := make([]string, 0, len(keys))
			for _, key := range keys {
				got = append(got, key.Key)
			}
			assert.Equal(t, tc.keys, got)
		})
	}
}

func TestIndexPlanCoversEveryAccountCollection(t *testing.T) {
	planned := map[string]bool{}
	for _, plan := range indexPlan() {
		planned[plan.collection] = true
	}
	for _, collection := range []string{"users", "admins", "sellers", "employees", "online_employees"} {
		assert.True(t, planned[collection], collection)
	}
}

func TestProductCodeUniqueOnlyAmongLiveProducts(t *testing.T) {
	for _, plan := range indexPlan() {
		if plan.collection != "products" {
			continue
		}
		for _, model := range plan.models {
			if *model.Options.Name == "productId_live_unique" {
				assert.Equal(t, bson.M{"isDeleted": false}, model.Options.PartialFilterExpression)
				return
			}
		}
	}
	t.Fatal("productId_live_unique not planned")
}
