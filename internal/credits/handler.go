package credits

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/payments"
	"writer-backend/internal/shared/server/middleware"
	"writer-backend/internal/shared/server/respond"
	"writer-backend/internal/shared/telemetry"
)

// granter is the part of the ledger a purchase needs.
type granter interface {
	GrantFor(ctx context.Context, userID string, amount int, reason, reference string) (Balance, error)
	Balance(ctx context.Context, userID string) (Balance, error)
}

type Handler struct {
	Ledger    granter
	Catalog   *Catalog
	Processor payments.Processor
}

func NewHandler(ledger granter, catalog *Catalog, processor payments.Processor) *Handler {
	return &Handler{Ledger: ledger, Catalog: catalog, Processor: processor}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.balance)
	rg.GET("/credits/plans", h.plans)
	rg.POST("/credits/purchase", h.purchase)
}

type purchaseRequest struct {
	PlanID          string `json:"planId"`
	PaymentMethodID string `json:"paymentMethodId"`
}

type purchaseResponse struct {
	Receipt payments.Receipt `json:"receipt"`
	Balance Balance          `json:"balance"`
}

func (h *Handler) balance(c *gin.Context) {
	bal, err := h.Ledger.Balance(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	respond.OK(c, bal)
}

func (h *Handler) plans(c *gin.Context) {
	respond.OK(c, gin.H{"plans": h.Catalog.Plans()})
}

func (h *Handler) purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	plan, err := h.Catalog.Find(req.PlanID)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "plan not found", gin.H{"planId": req.PlanID})
		return
	}

	userID := middleware.UserIDFromContext(c)
	ctx := c.Request.Context()
	receipt, err := h.Processor.Purchase(ctx, payments.Purchase{
		UserID:          userID,
		Email:           middleware.UserEmailFromContext(c),
		PlanID:          plan.ID,
		AmountCents:     plan.PriceCents,
		Currency:        plan.Currency,
		Credits:         plan.Credits,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		if errors.Is(err, payments.ErrPayment) {
			respond.Error(c, http.StatusPaymentRequired, "payment_error", payments.Message(err), nil)
			return
		}
		respond.Error(c, http.StatusBadGateway, "payment_error", "payment provider unavailable", nil)
		return
	}

	bal, err := h.Ledger.GrantFor(ctx, userID, receipt.CreditsGranted, ReasonPurchase, receipt.Reference)
	if err != nil {
		// The charge went through; the reference lets support reconcile it.
		telemetry.Error("credits.purchase_grant_failed", map[string]any{
			"user_id":   userID,
			"reference": receipt.Reference,
			"credits":   receipt.CreditsGranted,
			"error":     err,
		})
		writeLedgerError(c, err)
		return
	}
	respond.OK(c, purchaseResponse{Receipt: receipt, Balance: bal})
}

func writeLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	case errors.Is(err, ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", err.Error(), nil)
	case errors.Is(err, ErrInvalidAmount):
		respond.Error(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "credit ledger unavailable", nil)
	}
}
