package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/cache"
	"autoparts/internal/logger"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProductReviewRequest struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment" binding:"omitempty,max=1000"`
}

type ProductReviewUpdateRequest struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" binding:"omitempty,max=1000"`
}

// ratingSummary returns the average (one decimal) and count of ratings.
func ratingSummary(reviews []models.ProductReview) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := decimal.Zero
	for _, r := range reviews {
		sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
	return avg.InexactFloat64(), len(reviews)
}

// refreshProductRating recomputes the denormalised rating on the product.
// Failures are logged; the review write already succeeded.
func refreshProductRating(c *gin.Context, ctx context.Context, db *mongo.Database, catalogCache *cache.Cache, productID primitive.ObjectID) {
	log := logger.From(c, reviewComponent).WithField("productId", productID.Hex())

	reviews, err := findAll[models.ProductReview](ctx, db.Collection("product_reviews"), bson.M{"productId": productID})
	if err != nil {
		log.WithError(err).Warn("rating refresh failed")
		return
	}
	avg, count := ratingSummary(reviews)

	_, err = db.Collection("products").UpdateByID(ctx, productID, bson.M{"$set": bson.M{
		"ratingAverage": avg,
		"ratingCount":   count,
	}})
	if err != nil {
		log.WithError(err).Warn("rating refresh failed")
		return
	}
	invalidateCatalog(c, catalogCache)
}

func CreateProductReview(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req ProductReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, _ := primitive.ObjectIDFromHex(req.ProductID)

		ctx, cancel := requestContext(c)
		defer cancel()

		count, err := db.Collection("products").CountDocuments(ctx, bson.M{"_id": productID, "isDeleted": notDeleted})
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusNotFound, reviewComponent, "product not found")
			return
		}

		user, err := loadUser(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusUnauthorized, reviewComponent, "user not found")
			return
		}

		now := time.Now()
		review := models.ProductReview{
			ProductID: productID,
			UserID:    userID,
			UserName:  user.Name,
			Rating:    req.Rating,
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: now,
			UpdatedAt: now,
		}
		res, err := db.Collection("product_reviews").InsertOne(ctx, review)
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, reviewComponent, "you have already reviewed this product")
			return
		}
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}
		review.ID, _ = res.InsertedID.(primitive.ObjectID)

		refreshProductRating(c, ctx, db, catalogCache, productID)
		respond(c, http.StatusCreated, gin.H{"data": review})
	}
}

// GetProductReviews lists a product's reviews with the live average.
func GetProductReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := objectIDParam(c, "productId", reviewComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		reviews, err := findAll[models.ProductReview](ctx, db.Collection("product_reviews"),
			bson.M{"productId": productID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}

		avg, count := ratingSummary(reviews)
		respond(c, http.StatusOK, gin.H{"data": reviews, "average": avg, "count": count})
	}
}

func UpdateProductReview(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", reviewComponent)
		if !ok {
			return
		}

		var req ProductReviewUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{"updatedAt": time.Now()}
		if req.Rating != nil {
			set["rating"] = *req.Rating
		}
		if req.Comment != nil {
			set["comment"] = strings.TrimSpace(*req.Comment)
		}
		if len(set) == 1 {
			respondWithError(c, http.StatusBadRequest, reviewComponent, "nothing to update")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var review models.ProductReview
		err := db.Collection("product_reviews").FindOneAndUpdate(ctx,
			bson.M{"_id": id, "userId": userID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&review)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, reviewComponent, "review not found")
			return
		}
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}

		refreshProductRating(c, ctx, db, catalogCache, review.ProductID)
		respond(c, http.StatusOK, gin.H{"data": review})
	}
}

func DeleteProductReview(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", reviewComponent)
		if !ok {
			return
		}
		filter, ok := ownerOrAdminFilter(c, id)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var review models.ProductReview
		err := db.Collection("product_reviews").FindOneAndDelete(ctx, filter).Decode(&review)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, reviewComponent, "review not found")
			return
		}
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}

		refreshProductRating(c, ctx, db, catalogCache, review.ProductID)
		respond(c, http.StatusOK, gin.H{"message": "review deleted"})
	}
}
