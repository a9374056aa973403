package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestGetCategories(t *testing.T) {
	mt := newMockDB(t)

	mt.Run("active only", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.categories",
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Brakes"}, {Key: "isActive", Value: true}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Filters"}, {Key: "isActive", Value: true}},
		))

		c, w := jsonContext(mt.T, http.MethodGet, "/api/categories", nil)

		GetCategories(mt.DB)(c)

		require.Equal(mt, http.StatusOK, w.Code)
		body := responseBody(mt.T, w)
		assert.Equal(mt, true, body["success"])
		assert.Len(mt, body["data"], 2)
	})
}

func TestCreateCategory(t *testing.T) {
	mt := newMockDB(t)

	mt.Run("duplicate name", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKeyResponse())

		c, w := jsonContext(mt.T, http.MethodPost, "/api/admin/categories", map[string]any{"name": "Brakes"})

		CreateCategory(mt.DB, nil)(c)

		require.Equal(mt, http.StatusConflict, w.Code)
		assert.Equal(mt, "category already exists", responseBody(mt.T, w)["message"])
	})

	mt.Run("blank name", func(mt *mtest.T) {
		c, w := jsonContext(mt.T, http.MethodPost, "/api/admin/categories", map[string]any{"name": "   "})

		CreateCategory(mt.DB, nil)(c)

		assert.Equal(mt, http.StatusBadRequest, w.Code)
	})
}
