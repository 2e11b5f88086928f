package handlers

import (
	"errors"
	"net/http"
	"strconv"

	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	"github.com/Abraj743/opd-token-allocation-sub000/services/slotlifecycle"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SlotHandler serves slot generation and lookup endpoints.
type SlotHandler struct {
	Lifecycle *slotlifecycle.Engine
	Logger    *zap.Logger
}

func NewSlotHandler(lifecycle *slotlifecycle.Engine, logger *zap.Logger) *SlotHandler {
	return &SlotHandler{Lifecycle: lifecycle, Logger: logger}
}

// Generate handles POST /api/slots/generate: materialize slots for a date.
func (h *SlotHandler) Generate(c *gin.Context) {
	var input struct {
		Date string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid date", "expected YYYY-MM-DD")
		return
	}

	slots, err := h.Lifecycle.GenerateForDate(c.Request.Context(), date)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "slot generation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": input.Date, "generated": len(slots), "slots": slots})
}

// GetSlot handles GET /api/slots/:slotID.
func (h *SlotHandler) GetSlot(c *gin.Context) {
	slotID := c.Param("slotID")
	slot, err := h.Lifecycle.FindBySlotID(c.Request.Context(), slotID)
	if err != nil {
		if errors.Is(err, slotRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "slot not found", slotID)
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "slot lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, slot)
}

// FindAvailable handles GET /api/slots: available slots by doctor,
// department and date range.
func (h *SlotHandler) FindAvailable(c *gin.Context) {
	filter := slotRepo.Filter{
		DoctorID:   c.Query("doctorId"),
		Department: c.Query("department"),
	}
	if v := c.Query("date"); v != "" {
		d, err := utils.ParseDate(v)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid date", "expected YYYY-MM-DD")
			return
		}
		filter.DateFrom = &d
		filter.DateTo = &d
	} else {
		if v := c.Query("from"); v != "" {
			d, err := utils.ParseDate(v)
			if err != nil {
				utils.JSONError(c, http.StatusBadRequest, "invalid from date", "expected YYYY-MM-DD")
				return
			}
			filter.DateFrom = &d
		}
		if v := c.Query("to"); v != "" {
			d, err := utils.ParseDate(v)
			if err != nil {
				utils.JSONError(c, http.StatusBadRequest, "invalid to date", "expected YYYY-MM-DD")
				return
			}
			filter.DateTo = &d
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	slots, err := h.Lifecycle.FindAvailable(c.Request.Context(), filter)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "slot search failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(slots), "slots": slots})
}

// Suspend handles PUT /api/slots/:slotID/suspend.
func (h *SlotHandler) Suspend(c *gin.Context) {
	slotID := c.Param("slotID")
	if err := h.Lifecycle.Suspend(c.Request.Context(), slotID); err != nil {
		if errors.Is(err, slotRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "slot not found", slotID)
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "slot suspension failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"slotId": slotID, "status": "suspended"})
}

// CompleteDay handles POST /api/slots/complete-day: close out a finished day.
func (h *SlotHandler) CompleteDay(c *gin.Context) {
	var input struct {
		Date string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid date", "expected YYYY-MM-DD")
		return
	}

	n, err := h.Lifecycle.CompleteForDate(c.Request.Context(), date)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "day completion failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": input.Date, "completed": n})
}
