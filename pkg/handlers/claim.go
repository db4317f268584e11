package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medreza/agt-claim-service/pkg/claims"
	"github.com/medreza/agt-claim-service/pkg/models"
	"github.com/sirupsen/logrus"
)

type ClaimHandler struct {
	claimService *claims.Service
}

func NewClaimHandler(claimService *claims.Service) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

func (h *ClaimHandler) RequestClaim(c *gin.Context) {
	var req models.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		requestLogger(c).WithField("error", err).Warn("RequestClaim: Invalid request body")
	}

	issued, err := h.claimService.RequestClaim(c.Request.Context(), c.ClientIP(), req.Address)
	if err != nil {
		log := requestLogger(c).WithFields(logrus.Fields{
			"address":   req.Address,
			"client_ip": c.ClientIP(),
		})

		var rateErr *claims.RateLimitedError
		var balErr *claims.InsufficientBalanceError
		switch {
		case errors.As(err, &rateErr):
			log.Warn("RequestClaim: Too many requests")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "too_many_requests"})
		case errors.Is(err, claims.ErrInvalidRequest):
			log.Warn("RequestClaim: Missing address")
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing_address"})
		case errors.Is(err, claims.ErrInvalidAddress):
			log.Warn("RequestClaim: Invalid address")
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_address"})
		case errors.As(err, &balErr):
			balance := balErr.Balance.InexactFloat64()
			log.WithField("balance", balErr.Balance.String()).Warn("RequestClaim: Insufficient balance")
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient_balance", Balance: &balance})
		default:
			log.WithError(err).Error("RequestClaim: Failed to issue claim code")
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error"})
		}
		return
	}

	c.JSON(http.StatusOK, models.ClaimResponse{
		ClaimCode: issued.Code,
		Expires:   issued.ExpiresAt.UnixMilli(),
	})
}

func (h *ClaimHandler) Redeem(c *gin.Context) {
	var req models.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		requestLogger(c).WithField("error", err).Warn("Redeem: Invalid request body")
	}

	address, err := h.claimService.Redeem(c.Request.Context(), req.Code)
	if err != nil {
		h.writeCodeError(c, "Redeem", req.Code, err)
		return
	}

	requestLogger(c).WithFields(logrus.Fields{
		"code":    req.Code,
		"address": address,
	}).Info("Redeem: Claim code redeemed")

	c.JSON(http.StatusOK, models.RedeemResponse{OK: true, Address: address})
}

func (h *ClaimHandler) GetClaim(c *gin.Context) {
	code := c.Param("code")

	rec, err := h.claimService.Lookup(c.Request.Context(), code)
	if err != nil {
		h.writeCodeError(c, "GetClaim", code, err)
		return
	}

	response := models.ClaimDetailsResponse{
		ClaimCode: rec.Code,
		Address:   rec.Address,
		Expires:   rec.ExpiresAt.UnixMilli(),
		Used:      rec.Used,
	}
	if rec.UsedAt != nil {
		usedAt := rec.UsedAt.UnixMilli()
		response.UsedAt = &usedAt
	}

	c.JSON(http.StatusOK, response)
}

func (h *ClaimHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ClaimHandler) writeCodeError(c *gin.Context, op, code string, err error) {
	log := requestLogger(c).WithField("code", code)

	switch {
	case errors.Is(err, claims.ErrInvalidRequest):
		log.Warn(op + ": Missing code")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing_code"})
	case errors.Is(err, claims.ErrNotFound):
		log.Warn(op + ": Claim code not found")
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "invalid_code"})
	case errors.Is(err, claims.ErrAlreadyUsed):
		log.Warn(op + ": Claim code already used")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "already_used"})
	case errors.Is(err, claims.ErrExpired):
		log.Warn(op + ": Claim code expired")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "expired"})
	default:
		log.WithError(err).Error(op + ": Failed to load claim code")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error"})
	}
}
