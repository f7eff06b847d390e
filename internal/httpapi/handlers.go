package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callbilling-platform/internal/accounts"
	"callbilling-platform/internal/auth"
	"callbilling-platform/internal/billing"
	"callbilling-platform/internal/ledger"
	"callbilling-platform/internal/rates"
	"callbilling-platform/internal/reporting"
	"callbilling-platform/internal/settings"
	"callbilling-platform/pkg/logger"
	"callbilling-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Billing   *billing.Service
	Settings  *settings.Service
	Reporting *reporting.Service

	// Redis backs the best-effort per-payer active-call slot. nil disables
	// the slot entirely; billing correctness never depends on it.
	Redis *redis.Client

	// CallSlotTTL bounds how long a crashed client can hold a slot.
	CallSlotTTL time.Duration
}

const defaultCallSlotTTL = 2 * time.Hour

func callSlotKey(payerID string) string { return "calls:active:" + payerID }

// writeBillingError maps billing errors onto HTTP statuses. A missing
// configuration value is an operator problem, not a client one, so it pages
// as 503 instead of 4xx.
func writeBillingError(c *gin.Context, err error) {
	var cfgErr *rates.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		logger.FromGin(c).Error("billing configuration missing", "setting", cfgErr.Setting)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": cfgErr.Error(),
			"code":  "configuration_error",
		})
	case errors.Is(err, accounts.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, billing.ErrInvalidArgument),
		errors.Is(err, billing.ErrNotMatched),
		errors.Is(err, billing.ErrBlocked),
		errors.Is(err, billing.ErrInsufficientFunds):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("billing request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type startCallRequest struct {
	EarnerID string            `json:"earner_id"`
	Medium   ledger.CallMedium `json:"medium"`
}

// StartCall runs admission control for the authenticated payer and, on
// success, claims the payer's single active-call slot in Redis.
func (h Handlers) StartCall(c *gin.Context) {
	payerID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	adm, err := h.Billing.StartCall(c.Request.Context(), payerID, req.EarnerID, req.Medium)
	if err != nil {
		writeBillingError(c, err)
		return
	}

	// Slot acquisition is best-effort: a Redis outage degrades to "no
	// concurrency guard", never to "no calls".
	if h.Redis != nil {
		ttl := h.CallSlotTTL
		if ttl <= 0 {
			ttl = defaultCallSlotTTL
		}
		ok, slotErr := utils.AcquireCallSlot(c.Request.Context(), h.Redis, callSlotKey(payerID), 1, ttl)
		if slotErr != nil {
			logger.FromGin(c).Warn("call slot acquire failed", "payer_id", payerID, "err", slotErr)
		} else if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a call is already in progress"})
			return
		}
	}

	c.JSON(http.StatusOK, adm)
}

type endCallRequest struct {
	EarnerID       string            `json:"earner_id"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Medium         ledger.CallMedium `json:"medium"`
	IdempotencyKey string            `json:"idempotency_key"`
}

// EndCall settles the finished call and releases the payer's active-call slot.
func (h Handlers) EndCall(c *gin.Context) {
	payerID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Billing.EndCall(c.Request.Context(), billing.EndCallRequest{
		PayerID:        payerID,
		EarnerID:       req.EarnerID,
		ElapsedSeconds: req.ElapsedSeconds,
		Medium:         req.Medium,
		IdempotencyKey: req.IdempotencyKey,
	})

	// The slot is released whatever the settlement outcome; the call is over.
	if h.Redis != nil {
		if relErr := utils.ReleaseCallSlot(c.Request.Context(), h.Redis, callSlotKey(payerID)); relErr != nil {
			logger.FromGin(c).Warn("call slot release failed", "payer_id", payerID, "err", relErr)
		}
	}

	if err != nil {
		if errors.Is(err, billing.ErrInsufficientFunds) && res.Record.ID != "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   err.Error(),
				"call_id": res.Record.ID,
				"status":  res.Record.Status,
			})
			return
		}
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Reporting ---

func pageFromQuery(c *gin.Context) reporting.Page {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return reporting.Page{Limit: limit, Offset: offset}
}

func (h Handlers) CallHistory(c *gin.Context) {
	payerID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	recs, err := h.Reporting.PayerCallHistory(c.Request.Context(), payerID, pageFromQuery(c))
	if err != nil {
		logger.FromGin(c).Error("call history failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs})
}

func (h Handlers) CallStats(c *gin.Context) {
	payerID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	totals, err := h.Reporting.PayerCallStats(c.Request.Context(), payerID)
	if err != nil {
		logger.FromGin(c).Error("call stats failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h Handlers) Earnings(c *gin.Context) {
	accountID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	entries, err := h.Reporting.Earnings(c.Request.Context(), accountID, pageFromQuery(c))
	if err != nil {
		logger.FromGin(c).Error("earnings failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": entries})
}

func (h Handlers) EarningsStats(c *gin.Context) {
	accountID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	totals, err := h.Reporting.EarningsStats(c.Request.Context(), accountID)
	if err != nil {
		logger.FromGin(c).Error("earnings stats failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, totals)
}

// --- Admin config ---

func (h Handlers) GetConfig(c *gin.Context) {
	cfg, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("config read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig applies an admin patch to the billing configuration.
// RBAC: admin only (enforced in routes).
func (h Handlers) UpdateConfig(c *gin.Context) {
	actorID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	actorRole, _ := auth.Role(c.Request.Context())

	var req settings.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	cfg, err := h.Settings.Update(c.Request.Context(), actorID, actorRole, c.ClientIP(), req)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidConfig) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("config update failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}
