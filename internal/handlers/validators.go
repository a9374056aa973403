package handlers

import (
	"fmt"
	"time"

	"autoparts/internal/payroll"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		if value == "" {
			return true
		}
		_, err := time.Parse(layout, value)
		return err == nil
	}
}

func validateClock(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	if value == "" {
		return true
	}
	_, err := payroll.ParseClock(value)
	return err == nil
}

func validateObjectID(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	if value == "" {
		return true
	}
	return primitive.IsValidObjectID(value)
}

// RegisterValidators adds the isodate, yearmonth, clock and objectid binding
// tags. Empty values pass; combine with required where needed.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validator registration: unexpected engine")
	}
	rules := map[string]validator.Func{
		"isodate":   layoutValidator(payroll.DateLayout),
		"yearmonth": layoutValidator(payroll.MonthLayout),
		"clock":     validateClock,
		"objectid":  validateObjectID,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("validator registration %s: %w", tag, err)
		}
	}
	return nil
}
