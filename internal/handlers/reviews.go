package handlers

import (
	"net/http"
	"strings"
	"time"

	"autoparts/internal/logger"
	"autoparts/internal/middleware"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reviewComponent = "REVIEW"

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required,max=1000"`
}

// ownerOrAdminFilter narrows a delete to the caller's own document unless
// the caller is an admin.
func ownerOrAdminFilter(c *gin.Context, id primitive.ObjectID) (bson.M, bool) {
	accountID, role, ok := middleware.CurrentAccount(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, reviewComponent, "unauthorized")
		return nil, false
	}
	filter := bson.M{"_id": id}
	if role != models.RoleAdmin {
		filter["userId"] = accountID
	}
	return filter, true
}

func CreateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := loadUser(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusUnauthorized, reviewComponent, "user not found")
			return
		}

		review := models.Review{
			UserID:    userID,
			UserName:  user.Name,
			Rating:    req.Rating,
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: time.Now(),
		}
		res, err := db.Collection("reviews").InsertOne(ctx, review)
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}
		review.ID, _ = res.InsertedID.(primitive.ObjectID)

		logger.From(c, reviewComponent).WithField("rating", review.Rating).Info("site review created")
		respond(c, http.StatusCreated, gin.H{"data": review})
	}
}

// GetReviews is public, newest first.
func GetReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, reviewComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection("reviews")
		reviews, err := findAll[models.Review](ctx, coll, bson.M{},
			p.apply(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})))
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}

		payload := gin.H{"data": reviews}
		if p.Enabled {
			total, err := coll.CountDocuments(ctx, bson.M{})
			if err != nil {
				respondInternal(c, reviewComponent, "db error", err)
				return
			}
			payload["pagination"] = p.meta(total)
		}
		respond(c, http.StatusOK, payload)
	}
}

func DeleteReview(db *mongo.Database) gin.HandlerFunc {
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

		res, err := db.Collection("reviews").DeleteOne(ctx, filter)
		if err != nil {
			respondInternal(c, reviewComponent, "db error", err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, reviewComponent, "review not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "review deleted"})
	}
}
