package handlers

import (
	"errors"
	"net/http"

	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/services/allocation"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenHandler serves token allocation and lifecycle endpoints.
type TokenHandler struct {
	Engine *allocation.Engine
	Tokens tokenRepo.TokenRepository
	Logger *zap.Logger
}

func NewTokenHandler(engine *allocation.Engine, tokens tokenRepo.TokenRepository, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{Engine: engine, Tokens: tokens, Logger: logger}
}

// Allocate handles POST /api/tokens/allocate.
func (h *TokenHandler) Allocate(c *gin.Context) {
	var req allocation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	res, err := h.Engine.Allocate(c.Request.Context(), &req)
	if err != nil {
		respondAllocError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// AllocateEmergency handles POST /api/tokens/emergency.
func (h *TokenHandler) AllocateEmergency(c *gin.Context) {
	var req allocation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	res, err := h.Engine.AllocateEmergency(c.Request.Context(), &req)
	if err != nil {
		respondAllocError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetToken handles GET /api/tokens/:tokenID.
func (h *TokenHandler) GetToken(c *gin.Context) {
	tokenID := c.Param("tokenID")
	token, err := h.Tokens.GetByTokenID(c.Request.Context(), tokenID)
	if err != nil {
		if errors.Is(err, tokenRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "token not found", tokenID)
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "token lookup failed", err.Error())
		return
	}
	if token == nil {
		utils.JSONError(c, http.StatusNotFound, "token not found", tokenID)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Confirm handles PUT /api/tokens/:tokenID/confirm.
func (h *TokenHandler) Confirm(c *gin.Context) {
	token, err := h.Engine.Confirm(c.Request.Context(), c.Param("tokenID"))
	if err != nil {
		respondAllocError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Complete handles PUT /api/tokens/:tokenID/complete.
func (h *TokenHandler) Complete(c *gin.Context) {
	token, err := h.Engine.Complete(c.Request.Context(), c.Param("tokenID"))
	if err != nil {
		respondAllocError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// NoShow handles PUT /api/tokens/:tokenID/noshow.
func (h *TokenHandler) NoShow(c *gin.Context) {
	token, err := h.Engine.NoShow(c.Request.Context(), c.Param("tokenID"))
	if err != nil {
		respondAllocError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Cancel handles DELETE /api/tokens/:tokenID.
func (h *TokenHandler) Cancel(c *gin.Context) {
	var input struct {
		Reason string `json:"reason"`
	}
	// Body is optional on cancel.
	_ = c.ShouldBindJSON(&input)

	token, err := h.Engine.Cancel(c.Request.Context(), c.Param("tokenID"), input.Reason)
	if err != nil {
		respondAllocError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}
