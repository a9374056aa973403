package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	LeaveStatusPending  = "pending"
	LeaveStatusApproved = "approved"
	LeaveStatusRejected = "rejected"
)

var LeaveTypes = []string{"annual", "sick", "casual", "unpaid"}

type Leave struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	EmployeeID    primitive.ObjectID  `bson:"employeeId" json:"employeeId"`
	EmployeeRole  string              `bson:"employeeRole" json:"employeeRole"`
	EmployeeName  string              `bson:"employeeName" json:"employeeName"`
	EmployeeEmail string              `bson:"employeeEmail" json:"employeeEmail"`
	Type          string              `bson:"type" json:"type"`
	StartDate     string              `bson:"startDate" json:"startDate"`
	EndDate       string              `bson:"endDate" json:"endDate"`
	Days          int                 `bson:"days" json:"days"`
	Reason        string              `bson:"reason" json:"reason"`
	Status        string              `bson:"status" json:"status"`
	ReviewedBy    *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewComment string              `bson:"reviewComment,omitempty" json:"reviewComment,omitempty"`
	ReviewedAt    *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
}
