package handlers

import (
	"errors"
	"net/http"

	"github.com/Abraj743/opd-token-allocation-sub000/services/allocation"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"github.com/gin-gonic/gin"
)

// statusFor maps allocation failure codes onto HTTP statuses.
func statusFor(code allocation.Code) int {
	switch code {
	case allocation.CodeValidation, allocation.CodeInvalidSource:
		return http.StatusBadRequest
	case allocation.CodeSlotNotFound, allocation.CodeNoAvailability:
		return http.StatusNotFound
	case allocation.CodeDuplicateInSlot,
		allocation.CodeDuplicateWithDoctor,
		allocation.CodeDuplicateOnDate,
		allocation.CodeDoctorContinuity,
		allocation.CodeSlotInactive,
		allocation.CodeSlotFull:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondAllocError renders an engine failure as a structured JSON error,
// carrying alternatives when the engine attached them.
func respondAllocError(c *gin.Context, err error) {
	var ae *allocation.AllocError
	if !errors.As(err, &ae) {
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	body := gin.H{
		"error":   string(ae.Code),
		"message": ae.Message,
	}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	if len(ae.Suggestions) > 0 {
		body["suggestions"] = ae.Suggestions
	}
	if !ae.Alternatives.Empty() {
		body["alternatives"] = ae.Alternatives
	}
	c.JSON(statusFor(ae.Code), body)
}
