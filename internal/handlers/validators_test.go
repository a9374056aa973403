package handlers

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCustomBindingTags(t *testing.T) {
	type sample struct {
		Date  string `binding:"omitempty,isodate"`
		Month string `binding:"omitempty,yearmonth"`
		Clock string `binding:"omitempty,clock"`
		ID    string `binding:"omitempty,objectid"`
	}

	valid := []sample{
		{},
		{Date: "2026-02-28", Month: "2026-12", Clock: "23:59:59", ID: primitive.NewObjectID().Hex()},
		{Clock: "07:05"},
	}
	for _, s := range valid {
		assert.NoError(t, binding.Validator.ValidateStruct(s), "%+v", s)
	}

	invalid := []sample{
		{Date: "2026-02-30"},
		{Month: "2026-13"},
		{Clock: "24:00:00"},
		{Clock: "7:05"},
		{ID: "123"},
	}
	for _, s := range invalid {
		assert.Error(t, binding.Validator.ValidateStruct(s), "%+v", s)
	}
}
