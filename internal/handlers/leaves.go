package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/logger"
	"autoparts/internal/mailer"
	"autoparts/internal/middleware"
	"autoparts/internal/models"
	"autoparts/internal/payroll"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const leaveComponent = "LEAVE"

type LeaveRequest struct {
	Type      string `json:"type" binding:"required,oneof=annual sick casual unpaid"`
	StartDate string `json:"startDate" binding:"required,isodate"`
	EndDate   string `json:"endDate" binding:"required,isodate"`
	Reason    string `json:"reason" binding:"required,max=1000"`
}

type LeaveReviewRequest struct {
	Comment string `json:"comment" binding:"omitempty,max=500"`
}

var blockingLeaveStatuses = bson.A{models.LeaveStatusPending, models.LeaveStatusApproved}

// overlappingLeave returns the first existing leave sharing a day with
// [start, end].
// leaveOverlapFilter matches blocking leaves whose inclusive range touches
// start..end. Dates are YYYY-MM-DD so string order is date order.
func leaveOverlapFilter(employeeID primitive.ObjectID, start, end string) bson.M {
	return bson.M{
		"employeeId": employeeID,
		"status":     bson.M{"$in": blockingLeaveStatuses},
		"startDate":  bson.M{"$lte": end},
		"endDate":    bson.M{"$gte": start},
	}
}

func overlappingLeave(existing []models.Leave, start, end string) (models.Leave, bool) {
	for _, l := range existing {
		if payroll.Overlaps(l.StartDate, l.EndDate, start, end) {
			return l, true
		}
	}
	return models.Leave{}, false
}

func CreateLeave(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, role, ok := middleware.CurrentAccount(c)
		if !ok || !models.IsStaffRole(role) {
			respondWithError(c, http.StatusForbidden, leaveComponent, "forbidden")
			return
		}

		var req LeaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		days, err := payroll.LeaveDays(req.StartDate, req.EndDate)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, leaveComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		employee, err := findEmployee(ctx, db, role, accountID)
		if err != nil {
			respondWithError(c, http.StatusUnauthorized, leaveComponent, "employee not found")
			return
		}

		coll := db.Collection("leaves")
		existing, err := findAll[models.Leave](ctx, coll, leaveOverlapFilter(employee.ID, req.StartDate, req.EndDate))
		if err != nil {
			respondInternal(c, leaveComponent, "db error", err)
			return
		}
		if clash, found := overlappingLeave(existing, req.StartDate, req.EndDate); found {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success":  false,
				"message":  "leave overlaps an existing request",
				"conflict": gin.H{"id": clash.ID.Hex(), "startDate": clash.StartDate, "endDate": clash.EndDate, "status": clash.Status},
			})
			return
		}

		leave := models.Leave{
			EmployeeID:    employee.ID,
			EmployeeRole:  employee.Role,
			EmployeeName:  employee.Name,
			EmployeeEmail: employee.Email,
			Type:          req.Type,
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			Days:          days,
			Reason:        strings.TrimSpace(req.Reason),
			Status:        models.LeaveStatusPending,
			CreatedAt:     time.Now(),
		}
		res, err := coll.InsertOne(ctx, leave)
		if err != nil {
			respondInternal(c, leaveComponent, "db error", err)
			return
		}
		leave.ID, _ = res.InsertedID.(primitive.ObjectID)

		logger.From(c, leaveComponent).WithFields(map[string]any{
			"employeeId": employee.ID.Hex(),
			"days":       days,
		}).Info("leave requested")
		respond(c, http.StatusCreated, gin.H{"data": leave})
	}
}

func GetMyLeaves(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, _, ok := middleware.CurrentAccount(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, leaveComponent, "unauthorized")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		leaves, err := findAll[models.Leave](ctx, db.Collection("leaves"), bson.M{"employeeId": accountID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, leaveComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": leaves})
	}
}

// ListLeaves is the admin view with optional ?status and ?employeeId.
func ListLeaves(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			switch status {
			case models.LeaveStatusPending, models.LeaveStatusApproved, models.LeaveStatusRejected:
				filter["status"] = status
			default:
				respondWithError(c, http.StatusBadRequest, leaveComponent, "invalid status")
				return
			}
		}
		if raw := strings.TrimSpace(c.Query("employeeId")); raw != "" {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, leaveComponent, "invalid employeeId")
				return
			}
			filter["employeeId"] = id
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		leaves, err := findAll[models.Leave](ctx, db.Collection("leaves"), filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, leaveComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": leaves})
	}
}

func leaveDecisionBody(leave models.Leave) string {
	body := fmt.Sprintf("Hello %s,\n\nYour %s leave from %s to %s has been %s.\n",
		leave.EmployeeName, leave.Type, leave.StartDate, leave.EndDate, leave.Status)
	if leave.ReviewComment != "" {
		body += "\nComment: " + leave.ReviewComment + "\n"
	}
	return body
}

// ReviewLeave returns the approve or reject handler. Only pending leaves can
// be decided.
func ReviewLeave(db *mongo.Database, notifier mailer.Notifier, status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewerID, _, _ := middleware.CurrentAccount(c)
		id, ok := objectIDParam(c, "id", leaveComponent)
		if !ok {
			return
		}

		var req LeaveReviewRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now()
		set := bson.M{
			"status":     status,
			"reviewedBy": reviewerID,
			"reviewedAt": now,
		}
		if comment := strings.TrimSpace(req.Comment); comment != "" {
			set["reviewComment"] = comment
		}

		coll := db.Collection("leaves")
		var leave models.Leave
		err := coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "status": models.LeaveStatusPending},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&leave)
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, countErr := coll.CountDocuments(ctx, bson.M{"_id": id})
			if countErr == nil && count > 0 {
				respondWithError(c, http.StatusConflict, leaveComponent, "leave has already been reviewed")
				return
			}
			respondWithError(c, http.StatusNotFound, leaveComponent, "leave not found")
			return
		}
		if err != nil {
			respondInternal(c, leaveComponent, "db error", err)
			return
		}

		log := logger.From(c, leaveComponent).WithFields(map[string]any{"leaveId": id.Hex(), "status": status})
		log.Info("leave reviewed")
		mailer.SendAsync(notifier, log, leave.EmployeeEmail, "Leave request "+status, leaveDecisionBody(leave))

		respond(c, http.StatusOK, gin.H{"data": leave})
	}
}

// DeleteLeave withdraws the caller's own pending request.
func DeleteLeave(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, _, ok := middleware.CurrentAccount(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, leaveComponent, "unauthorized")
			return
		}
		id, ok := objectIDParam(c, "id", leaveComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection("leaves")
		res, err := coll.DeleteOne(ctx, bson.M{"_id": id, "employeeId": accountID, "status": models.LeaveStatusPending})
		if err != nil {
			respondInternal(c, leaveComponent, "db error", err)
			return
		}
		if res.DeletedCount == 0 {
			count, countErr := coll.CountDocuments(ctx, bson.M{"_id": id, "employeeId": accountID})
			if countErr == nil && count > 0 {
				respondWithError(c, http.StatusConflict, leaveComponent, "only pending leaves can be withdrawn")
				return
			}
			respondWithError(c, http.StatusNotFound, leaveComponent, "leave not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "leave withdrawn"})
	}
}
