package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SalaryLine struct {
	Label  string  `bson:"label" json:"label" binding:"required,max=80"`
	Amount float64 `bson:"amount" json:"amount" binding:"gte=0"`
}

// SalaryAdjustment is one record per employee per month. The attendance
// derived fields and the totals are recalculated on every save.
type SalaryAdjustment struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EmployeeID   primitive.ObjectID `bson:"employeeId" json:"employeeId"`
	EmployeeRole string             `bson:"employeeRole" json:"employeeRole"`
	EmployeeName string             `bson:"employeeName" json:"employeeName"`
	Month        string             `bson:"month" json:"month"`
	DaysPresent  int                `bson:"daysPresent" json:"daysPresent"`
	TotalHours   float64            `bson:"totalHours" json:"totalHours"`
	DayRate      float64            `bson:"dayRate" json:"dayRate"`
	HourlyRate   float64            `bson:"hourlyRate" json:"hourlyRate"`
	BasicPay     float64            `bson:"basicPay" json:"basicPay"`
	Allowances   []SalaryLine       `bson:"allowances" json:"allowances"`
	Deductions   []SalaryLine       `bson:"deductions" json:"deductions"`
	Gross        float64            `bson:"gross" json:"gross"`
	Net          float64            `bson:"net" json:"net"`
	Note         string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
