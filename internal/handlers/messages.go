package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autoparts/internal/logger"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageComponent = "MESSAGE"

type MessageRequest struct {
	Name    string `json:"name" binding:"required,max=120"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"omitempty,max=30"`
	Subject string `json:"subject" binding:"required,max=200"`
	Body    string `json:"body" binding:"required,max=5000"`
}

// CreateMessage stores a contact form submission. No auth.
func CreateMessage(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		msg := models.Message{
			Name:      strings.TrimSpace(req.Name),
			Email:     normalizeEmail(req.Email),
			Phone:     strings.TrimSpace(req.Phone),
			Subject:   strings.TrimSpace(req.Subject),
			Body:      strings.TrimSpace(req.Body),
			CreatedAt: time.Now(),
		}
		res, err := db.Collection("messages").InsertOne(ctx, msg)
		if err != nil {
			respondInternal(c, messageComponent, "db error", err)
			return
		}
		msg.ID, _ = res.InsertedID.(primitive.ObjectID)

		logger.From(c, messageComponent).WithField("messageId", msg.ID.Hex()).Info("contact message received")
		respond(c, http.StatusCreated, gin.H{"data": msg, "message": "message sent"})
	}
}

func ListMessages(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if raw := c.Query("unread"); raw != "" {
			unread, err := strconv.ParseBool(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, messageComponent, "unread must be true or false")
				return
			}
			if unread {
				filter["isRead"] = bson.M{"$ne": true}
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection("messages")
		messages, err := findAll[models.Message](ctx, coll, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, messageComponent, "db error", err)
			return
		}
		unreadCount, err := coll.CountDocuments(ctx, bson.M{"isRead": bson.M{"$ne": true}})
		if err != nil {
			respondInternal(c, messageComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": messages, "unread": unreadCount})
	}
}

func MarkMessageRead(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", messageComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var msg models.Message
		err := db.Collection("messages").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"isRead": true, "readAt": time.Now()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&msg)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, messageComponent, "message not found")
			return
		}
		if err != nil {
			respondInternal(c, messageComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": msg})
	}
}

func DeleteMessage(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", messageComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("messages").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, messageComponent, "db error", err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, messageComponent, "message not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "message deleted"})
	}
}
