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

const salaryComponent = "SALARY"

type SalaryUpsertRequest struct {
	EmployeeID string              `json:"employeeId" binding:"required,objectid"`
	Month      string              `json:"month" binding:"required,yearmonth"`
	Allowances []models.SalaryLine `json:"allowances" binding:"omitempty,dive"`
	Deductions []models.SalaryLine `json:"deductions" binding:"omitempty,dive"`
	Note       string              `json:"note" binding:"omitempty,max=500"`
}

func lineAmounts(lines []models.SalaryLine) []float64 {
	out := make([]float64, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Amount)
	}
	return out
}

func cleanSalaryLines(lines []models.SalaryLine) []models.SalaryLine {
	out := make([]models.SalaryLine, 0, len(lines))
	for _, l := range lines {
		l.Label = strings.TrimSpace(l.Label)
		out = append(out, l)
	}
	return out
}

// monthlySummary aggregates the employee's attendance for a "YYYY-MM" month.
func monthlySummary(ctx context.Context, db *mongo.Database, employee models.Employee, month string, standardHours int) (payroll.Summary, error) {
	start, end, err := payroll.MonthRange(month)
	if err != nil {
		return payroll.Summary{}, err
	}

	records, err := findAll[models.Attendance](ctx, db.Collection("attendance"), bson.M{
		"employeeId": employee.ID,
		"date":       bson.M{"$gte": start, "$lte": end},
	})
	if err != nil {
		return payroll.Summary{}, err
	}

	shifts := make([]payroll.Shift, 0, len(records))
	for _, r := range records {
		shifts = append(shifts, payroll.Shift{CheckIn: r.CheckIn, CheckOut: r.CheckOut})
	}
	return payroll.Summarize(shifts, employee.DayRate, standardHours), nil
}

// applySummary copies the attendance figures onto the adjustment and
// recomputes its totals.
func applySummary(adj *models.SalaryAdjustment, s payroll.Summary) {
	adj.DaysPresent = s.DaysPresent
	adj.TotalHours = s.TotalHours
	adj.DayRate = s.DayRate
	adj.HourlyRate = s.HourlyRate
	adj.BasicPay = s.BasicPay
	adj.Gross, adj.Net = payroll.Totals(s.BasicPay, lineAmounts(adj.Allowances), lineAmounts(adj.Deductions))
}

func currentMonth() string {
	return time.Now().Format(payroll.MonthLayout)
}

// GetMonthlySalary returns the attendance based salary for one employee and
// month. Staff may only look at their own figures.
func GetMonthlySalary(db *mongo.Database, standardHours int) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, role, ok := middleware.CurrentAccount(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, salaryComponent, "unauthorized")
			return
		}

		month := strings.TrimSpace(c.DefaultQuery("month", currentMonth()))
		if _, _, err := payroll.MonthRange(month); err != nil {
			respondWithError(c, http.StatusBadRequest, salaryComponent, "month must be YYYY-MM")
			return
		}

		employeeID := accountID
		if role == models.RoleAdmin {
			id, err := primitive.ObjectIDFromHex(c.Query("employeeId"))
			if err != nil {
				respondWithError(c, http.StatusBadRequest, salaryComponent, "valid employeeId is required")
				return
			}
			employeeID = id
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		employee, err := findStaffEmployee(ctx, db, employeeID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, salaryComponent, "employee not found")
			return
		}
		if err != nil {
			respondInternal(c, salaryComponent, "db error", err)
			return
		}

		summary, err := monthlySummary(ctx, db, employee, month, standardHours)
		if err != nil {
			respondInternal(c, salaryComponent, "attendance aggregation failed", err)
			return
		}

		salary := models.SalaryAdjustment{
			EmployeeID:   employee.ID,
			EmployeeRole: employee.Role,
			EmployeeName: employee.Name,
			Month:        month,
			Allowances:   []models.SalaryLine{},
			Deductions:   []models.SalaryLine{},
		}
		var saved models.SalaryAdjustment
		err = db.Collection("salary_adjustments").FindOne(ctx, bson.M{"employeeId": employee.ID, "month": month}).Decode(&saved)
		switch {
		case err == nil:
			salary = saved
		case !errors.Is(err, mongo.ErrNoDocuments):
			respondInternal(c, salaryComponent, "db error", err)
			return
		}
		applySummary(&salary, summary)

		respond(c, http.StatusOK, gin.H{
			"data":    salary,
			"summary": summary,
			"saved":   err == nil,
		})
	}
}

// UpsertSalary stores the allowances and deductions for a month and
// recalculates every derived figure.
func UpsertSalary(db *mongo.Database, standardHours int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SalaryUpsertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		employeeID, _ := primitive.ObjectIDFromHex(req.EmployeeID)
		employee, err := findStaffEmployee(ctx, db, employeeID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, salaryComponent, "employee not found")
			return
		}
		if err != nil {
			respondInternal(c, salaryComponent, "db error", err)
			return
		}

		summary, err := monthlySummary(ctx, db, employee, req.Month, standardHours)
		if err != nil {
			respondInternal(c, salaryComponent, "attendance aggregation failed", err)
			return
		}

		now := time.Now()
		adj := models.SalaryAdjustment{
			Allowances: cleanSalaryLines(req.Allowances),
			Deductions: cleanSalaryLines(req.Deductions),
		}
		applySummary(&adj, summary)

		update := bson.M{
			"$set": bson.M{
				"employeeRole": employee.Role,
				"employeeName": employee.Name,
				"daysPresent":  adj.DaysPresent,
				"totalHours":   adj.TotalHours,
				"dayRate":      adj.DayRate,
				"hourlyRate":   adj.HourlyRate,
				"basicPay":     adj.BasicPay,
				"allowances":   adj.Allowances,
				"deductions":   adj.Deductions,
				"gross":        adj.Gross,
				"net":          adj.Net,
				"note":         strings.TrimSpace(req.Note),
				"updatedAt":    now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		}

		var saved models.SalaryAdjustment
		err = db.Collection("salary_adjustments").FindOneAndUpdate(ctx,
			bson.M{"employeeId": employee.ID, "month": req.Month},
			update,
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&saved)
		if err != nil {
			respondInternal(c, salaryComponent, "db error", err)
			return
		}

		logger.From(c, salaryComponent).WithFields(map[string]any{
			"employeeId": employee.ID.Hex(),
			"month":      req.Month,
			"net":        saved.Net,
		}).Info("salary saved")
		respond(c, http.StatusOK, gin.H{"data": saved})
	}
}

// ListSalaries lists saved adjustments, optionally for one ?month.
func ListSalaries(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if month := strings.TrimSpace(c.Query("month")); month != "" {
			if _, _, err := payroll.MonthRange(month); err != nil {
				respondWithError(c, http.StatusBadRequest, salaryComponent, "month must be YYYY-MM")
				return
			}
			filter["month"] = month
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		salaries, err := findAll[models.SalaryAdjustment](ctx, db.Collection("salary_adjustments"), filter,
			options.Find().SetSort(bson.D{{Key: "month", Value: -1}, {Key: "employeeName", Value: 1}}))
		if err != nil {
			respondInternal(c, salaryComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": salaries})
	}
}

func GetMySalaries(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, _, ok := middleware.CurrentAccount(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, salaryComponent, "unauthorized")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		salaries, err := findAll[models.SalaryAdjustment](ctx, db.Collection("salary_adjustments"),
			bson.M{"employeeId": accountID},
			options.Find().SetSort(bson.D{{Key: "month", Value: -1}}))
		if err != nil {
			respondInternal(c, salaryComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": salaries})
	}
}

func DeleteSalary(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", salaryComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("salary_adjustments").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, salaryComponent, "db error", err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, salaryComponent, "salary record not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "salary record deleted"})
	}
}
