package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/middleware"
	"github.com/coachhub/coachhub-api/internal/models"
)

// SubscriptionHandler serves /api/subscriptions.
type SubscriptionHandler struct {
	responder
	subscriptions core.SubscriptionService
}

func NewSubscriptionHandler(subscriptions core.SubscriptionService, r responder) *SubscriptionHandler {
	return &SubscriptionHandler{responder: r, subscriptions: subscriptions}
}

// ListPlans handles GET /api/subscriptions/plans.
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	h.ok(c, http.StatusOK, "Plans retrieved", h.subscriptions.Plans())
}

// Renew handles POST /api/subscriptions/renew.
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
		return
	}
	var req models.RenewSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.subscriptions.Renew(c.Request.Context(), actor, core.RenewRequest{
		EmployeeID:    req.EmployeeID,
		EmployeeEmail: req.EmployeeEmail,
		Plan:          req.Plan,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Subscription renewed", RenewResponse{
		Subscription: toSubscriptionDTO(res.Subscription),
		Payment:      toPaymentDTO(res.Payment),
	})
}

// Create handles POST /api/subscriptions.
func (h *SubscriptionHandler) Create(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
		return
	}
	var req models.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.subscriptions.Create(c.Request.Context(), actor, req.EmployeeID, req.Plan, req.PaymentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Subscription created", RenewResponse{
		Subscription: toSubscriptionDTO(res.Subscription),
		Payment:      toPaymentDTO(res.Payment),
	})
}

// GetForEmployee handles GET /api/subscriptions/employee/:employeeId.
func (h *SubscriptionHandler) GetForEmployee(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
		return
	}
	view, err := h.subscriptions.Get(c.Request.Context(), actor, c.Param("employeeId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Subscription retrieved", toSubscriptionViewDTO(view))
}

// ListPayments handles GET /api/subscriptions/employee/:employeeId/payments.
func (h *SubscriptionHandler) ListPayments(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
		return
	}
	payments, err := h.subscriptions.ListPayments(c.Request.Context(), actor, c.Param("employeeId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]*PaymentDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentDTO(p))
	}
	h.ok(c, http.StatusOK, "Payments retrieved", out)
}

// CheckExpirations handles POST /api/subscriptions/check-expirations.
func (h *SubscriptionHandler) CheckExpirations(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
		return
	}
	res, err := h.subscriptions.TriggerScan(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Expiration check completed", toScanResultDTO(res))
}
