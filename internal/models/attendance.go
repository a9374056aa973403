package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance is one record per employee per calendar day. Date is
// "YYYY-MM-DD"; CheckIn and CheckOut are local "HH:MM:SS" strings.
type Attendance struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EmployeeID   primitive.ObjectID `bson:"employeeId" json:"employeeId"`
	EmployeeRole string             `bson:"employeeRole" json:"employeeRole"`
	EmployeeName string             `bson:"employeeName" json:"employeeName"`
	Date         string             `bson:"date" json:"date"`
	CheckIn      string             `bson:"checkIn" json:"checkIn"`
	CheckOut     string             `bson:"checkOut,omitempty" json:"checkOut,omitempty"`
	WorkedHours  float64            `bson:"-" json:"workedHours"`
	Note         string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
