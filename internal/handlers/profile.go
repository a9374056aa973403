package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

type ProfileUpdateRequest struct {
	Name            *string `json:"name" binding:"omitempty,max=120"`
	Phone           *string `json:"phone" binding:"omitempty,max=30"`
	Address         *string `json:"address" binding:"omitempty,max=300"`
	City            *string `json:"city" binding:"omitempty,max=80"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword" binding:"omitempty,min=6,max=72"`
}

// UpdateProfile edits the signed-in customer's contact details. Changing the
// password requires the current one.
func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req ProfileUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, authComponent, "name cannot be empty")
				return
			}
			set["name"] = name
		}
		for field, value := range map[string]*string{"phone": req.Phone, "address": req.Address, "city": req.City} {
			if value != nil {
				set[field] = strings.TrimSpace(*value)
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if req.NewPassword != nil {
			user, err := loadUser(ctx, db, userID)
			if err != nil {
				respondInternal(c, authComponent, "db error", err)
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
				respondWithError(c, http.StatusUnauthorized, authComponent, "current password is incorrect")
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), bcrypt.DefaultCost)
			if err != nil {
				respondInternal(c, authComponent, "password hash failed", err)
				return
			}
			set["passwordHash"] = string(hash)
		}

		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, authComponent, "no fields to update")
			return
		}
		set["updatedAt"] = time.Now()

		var updated models.User
		err := db.Collection("users").FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, authComponent, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, authComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": updated})
	}
}
