package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/cache"
	"autoparts/internal/logger"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const catalogComponent = "CATALOG"

type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=80"`
	Description string `json:"description" binding:"omitempty,max=500"`
	IsActive    *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=80"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	IsActive    *bool   `json:"isActive"`
}

// invalidateCatalog drops cached product listings after a catalog write.
func invalidateCatalog(c *gin.Context, catalogCache *cache.Cache) {
	if err := catalogCache.DeletePrefix(c.Request.Context(), productCachePrefix); err != nil {
		logger.From(c, catalogComponent).WithError(err).Warn("catalog cache not invalidated")
	}
}

// GetCategories lists active categories for the storefront.
func GetCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		categories, err := findAll[models.Category](ctx, db.Collection("categories"),
			bson.M{"isActive": true},
			options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": categories})
	}
}

// GetAllCategories includes inactive categories; ?isActive filters.
func GetAllCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		categories, err := findAll[models.Category](ctx, db.Collection("categories"), filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": categories})
	}
}

func CreateCategory(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, catalogComponent, "name is required")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		now := time.Now()
		category := models.Category{
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			IsActive:    isActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := db.Collection("categories").InsertOne(ctx, category)
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, catalogComponent, "category already exists")
			return
		}
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}
		category.ID, _ = result.InsertedID.(primitive.ObjectID)

		invalidateCatalog(c, catalogCache)
		respond(c, http.StatusCreated, gin.H{"data": category})
	}
}

func UpdateCategory(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", catalogComponent)
		if !ok {
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, catalogComponent, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, catalogComponent, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now()

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.Category
		err := db.Collection("categories").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, catalogComponent, "category not found")
			return
		}
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, catalogComponent, "category already exists")
			return
		}
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		invalidateCatalog(c, catalogCache)
		respond(c, http.StatusOK, gin.H{"data": updated})
	}
}

// DeleteCategory deactivates the category.
func DeleteCategory(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", catalogComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := db.Collection("categories").UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now()}},
		)
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, catalogComponent, "category not found")
			return
		}

		invalidateCatalog(c, catalogCache)
		respond(c, http.StatusOK, gin.H{"message": "category deactivated"})
	}
}
