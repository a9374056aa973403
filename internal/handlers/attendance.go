package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/logger"
	"autoparts/internal/middleware"
	"autoparts/internal/models"
	"autoparts/internal/payroll"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const attendanceComponent = "ATTENDANCE"

type AttendanceClockRequest struct {
	EmployeeID string `json:"employeeId" binding:"omitempty,objectid"`
	Note       string `json:"note" binding:"omitempty,max=300"`
}

type AttendanceUpsertRequest struct {
	EmployeeID string `json:"employeeId" binding:"required,objectid"`
	Date       string `json:"date" binding:"required,isodate"`
	CheckIn    string `json:"checkIn" binding:"required,clock"`
	CheckOut   string `json:"checkOut" binding:"omitempty,clock"`
	Note       string `json:"note" binding:"omitempty,max=300"`
}

// attendanceEmployee resolves whose attendance is being recorded. Staff act
// on themselves; an admin must name the employee.
func attendanceEmployee(c *gin.Context, ctx context.Context, db *mongo.Database, rawEmployeeID string) (models.Employee, bool) {
	accountID, role, ok := middleware.CurrentAccount(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, attendanceComponent, "unauthorized")
		return models.Employee{}, false
	}

	var (
		employee models.Employee
		err      error
	)
	switch {
	case models.IsStaffRole(role):
		employee, err = findEmployee(ctx, db, role, accountID)
	case role == models.RoleAdmin:
		if rawEmployeeID == "" {
			respondWithError(c, http.StatusBadRequest, attendanceComponent, "employeeId is required")
			return models.Employee{}, false
		}
		id, parseErr := primitive.ObjectIDFromHex(rawEmployeeID)
		if parseErr != nil {
			respondWithError(c, http.StatusBadRequest, attendanceComponent, "invalid employeeId")
			return models.Employee{}, false
		}
		employee, err = findStaffEmployee(ctx, db, id)
	default:
		respondWithError(c, http.StatusForbidden, attendanceComponent, "forbidden")
		return models.Employee{}, false
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, attendanceComponent, "employee not found")
		return models.Employee{}, false
	}
	if err != nil {
		respondInternal(c, attendanceComponent, "db error", err)
		return models.Employee{}, false
	}
	if !employee.IsActive {
		respondWithError(c, http.StatusForbidden, attendanceComponent, "employee is inactive")
		return models.Employee{}, false
	}
	return employee, true
}

func withWorkedHours(records []models.Attendance) []models.Attendance {
	for i := range records {
		records[i].WorkedHours = payroll.WorkedHours(records[i].CheckIn, records[i].CheckOut)
	}
	return records
}

func isDate(value string) bool {
	_, err := time.Parse(payroll.DateLayout, value)
	return err == nil
}

// attendanceRangeFilter adds the optional ?from and ?to date bounds.
func attendanceRangeFilter(c *gin.Context, filter bson.M) error {
	dateFilter := bson.M{}
	if from := strings.TrimSpace(c.Query("from")); from != "" {
		if !isDate(from) {
			return errors.New("from must be YYYY-MM-DD")
		}
		dateFilter["$gte"] = from
	}
	if to := strings.TrimSpace(c.Query("to")); to != "" {
		if !isDate(to) {
			return errors.New("to must be YYYY-MM-DD")
		}
		dateFilter["$lte"] = to
	}
	if len(dateFilter) > 0 {
		filter["date"] = dateFilter
	}
	return nil
}

func CheckIn(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AttendanceClockRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		employee, ok := attendanceEmployee(c, ctx, db, req.EmployeeID)
		if !ok {
			return
		}

		now := time.Now()
		record := models.Attendance{
			EmployeeID:   employee.ID,
			EmployeeRole: employee.Role,
			EmployeeName: employee.Name,
			Date:         now.Format(payroll.DateLayout),
			CheckIn:      now.Format(payroll.ClockLayout),
			Note:         strings.TrimSpace(req.Note),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		res, err := db.Collection("attendance").InsertOne(ctx, record)
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, attendanceComponent, "already checked in today")
			return
		}
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}
		record.ID, _ = res.InsertedID.(primitive.ObjectID)

		logger.From(c, attendanceComponent).WithField("employeeId", employee.ID.Hex()).Info("checked in")
		respond(c, http.StatusCreated, gin.H{"data": record})
	}
}

func CheckOut(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AttendanceClockRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		employee, ok := attendanceEmployee(c, ctx, db, req.EmployeeID)
		if !ok {
			return
		}

		now := time.Now()
		coll := db.Collection("attendance")
		filter := bson.M{"employeeId": employee.ID, "date": now.Format(payroll.DateLayout)}

		var record models.Attendance
		err := coll.FindOne(ctx, filter).Decode(&record)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, attendanceComponent, "no check-in found for today")
			return
		}
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}
		if record.CheckOut != "" {
			respondWithError(c, http.StatusConflict, attendanceComponent, "already checked out today")
			return
		}

		set := bson.M{"checkOut": now.Format(payroll.ClockLayout), "updatedAt": now}
		if note := strings.TrimSpace(req.Note); note != "" {
			set["note"] = note
		}
		res, err := coll.UpdateOne(ctx,
			bson.M{"_id": record.ID, "checkOut": bson.M{"$in": bson.A{nil, ""}}},
			bson.M{"$set": set},
		)
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusConflict, attendanceComponent, "already checked out today")
			return
		}

		record.CheckOut = set["checkOut"].(string)
		record.UpdatedAt = now
		if note, ok := set["note"].(string); ok {
			record.Note = note
		}
		record.WorkedHours = payroll.WorkedHours(record.CheckIn, record.CheckOut)

		logger.From(c, attendanceComponent).WithFields(map[string]any{
			"employeeId":  employee.ID.Hex(),
			"workedHours": record.WorkedHours,
		}).Info("checked out")
		respond(c, http.StatusOK, gin.H{"data": record})
	}
}

// UpsertAttendance lets an admin write or correct the record for any day.
func UpsertAttendance(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AttendanceUpsertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		employeeID, _ := primitive.ObjectIDFromHex(req.EmployeeID)
		employee, err := findStaffEmployee(ctx, db, employeeID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, attendanceComponent, "employee not found")
			return
		}
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}

		now := time.Now()
		update := bson.M{
			"$set": bson.M{
				"employeeRole": employee.Role,
				"employeeName": employee.Name,
				"checkIn":      req.CheckIn,
				"note":         strings.TrimSpace(req.Note),
				"updatedAt":    now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		}
		if req.CheckOut != "" {
			update["$set"].(bson.M)["checkOut"] = req.CheckOut
		} else {
			update["$unset"] = bson.M{"checkOut": ""}
		}

		filter := bson.M{"employeeId": employee.ID, "date": req.Date}
		var record models.Attendance
		err = db.Collection("attendance").FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&record)
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}
		record.WorkedHours = payroll.WorkedHours(record.CheckIn, record.CheckOut)

		respond(c, http.StatusOK, gin.H{"data": record})
	}
}

// ListAttendance is the admin view, filtered by ?employeeId, ?from and ?to.
func ListAttendance(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if raw := strings.TrimSpace(c.Query("employeeId")); raw != "" {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, attendanceComponent, "invalid employeeId")
				return
			}
			filter["employeeId"] = id
		}
		if err := attendanceRangeFilter(c, filter); err != nil {
			respondWithError(c, http.StatusBadRequest, attendanceComponent, err.Error())
			return
		}

		p, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, attendanceComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection("attendance")
		records, err := findAll[models.Attendance](ctx, coll, filter,
			p.apply(options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "employeeName", Value: 1}})))
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}

		payload := gin.H{"data": withWorkedHours(records)}
		if p.Enabled {
			total, err := coll.CountDocuments(ctx, filter)
			if err != nil {
				respondInternal(c, attendanceComponent, "db error", err)
				return
			}
			payload["pagination"] = p.meta(total)
		}
		respond(c, http.StatusOK, payload)
	}
}

func GetMyAttendance(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, _, ok := middleware.CurrentAccount(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, attendanceComponent, "unauthorized")
			return
		}

		filter := bson.M{"employeeId": accountID}
		if err := attendanceRangeFilter(c, filter); err != nil {
			respondWithError(c, http.StatusBadRequest, attendanceComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		records, err := findAll[models.Attendance](ctx, db.Collection("attendance"), filter,
			options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": withWorkedHours(records)})
	}
}

// GetTodayAttendance shows who has clocked in today.
func GetTodayAttendance(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		today := time.Now().Format(payroll.DateLayout)
		records, err := findAll[models.Attendance](ctx, db.Collection("attendance"), bson.M{"date": today},
			options.Find().SetSort(bson.D{{Key: "checkIn", Value: 1}}))
		if err != nil {
			respondInternal(c, attendanceComponent, "db error", err)
			return
		}

		present := 0
		for _, r := range records {
			if r.CheckOut == "" {
				present++
			}
		}

		respond(c, http.StatusOK, gin.H{
			"date":      today,
			"data":      withWorkedHours(records),
			"checkedIn": len(records),
			"onSite":    present,
		})
	}
}
