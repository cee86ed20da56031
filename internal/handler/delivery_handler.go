package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/viesti/telia-gateway/internal/domain"
	"github.com/viesti/telia-gateway/internal/telia"
	"go.uber.org/zap"
)

// VerificationSender is the outbound side the verification endpoint drives.
type VerificationSender interface {
	Deliver(ctx context.Context, phoneNumber, code string, tenant telia.Tenant, isRetry bool) (*domain.Delivery, error)
}

// CallbackApplier reconciles an inbound delivery receipt.
type CallbackApplier interface {
	Apply(ctx context.Context, deliveryID string, body []byte) (*domain.Delivery, error)
}

// DeliveryReader exposes ledger lookups to the read endpoint.
type DeliveryReader interface {
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
}

type sendVerificationRequest struct {
	PhoneNumber   string `json:"phoneNumber"`
	Code          string `json:"code"`
	SenderAddress string `json:"senderAddress"`
	SenderName    string `json:"senderName"`
	Mode          string `json:"mode"`
}

type deliveryResponse struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Status      string    `json:"status"`
	ResourceURL *string   `json:"resourceUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type DeliveryHandler struct {
	gateway       VerificationSender
	callbacks     CallbackApplier
	readModel     DeliveryReader
	defaultTenant telia.Tenant
	logger        *zap.Logger
}

func NewDeliveryHandler(
	gateway VerificationSender,
	callbacks CallbackApplier,
	readModel DeliveryReader,
	defaultTenant telia.Tenant,
	logger *zap.Logger,
) *DeliveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryHandler{
		gateway:       gateway,
		callbacks:     callbacks,
		readModel:     readModel,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

func (h *DeliveryHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/deliveries/:id", h.ReceiveDeliveryReceipt)

	v1 := app.Group("/v1")
	v1.Post("/verifications", h.SendVerification)
	v1.Get("/deliveries/:id", h.GetDelivery)
}

// ReceiveDeliveryReceipt is the carrier-facing webhook. Its responses are
// deliberately terse: 204 with no body on success, 404 for unknown IDs and
// unparseable payloads alike, 403 when the correlation secret does not match.
func (h *DeliveryHandler) ReceiveDeliveryReceipt(c *fiber.Ctx) error {
	deliveryID := strings.TrimSpace(c.Params("id"))
	if deliveryID == "" {
		return respondEmpty(c, fiber.StatusNotFound)
	}

	_, err := h.callbacks.Apply(c.Context(), deliveryID, c.Body())
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return respondEmpty(c, fiber.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound):
		return respondEmpty(c, fiber.StatusNotFound)
	case err != nil:
		h.logger.Error("failed to apply delivery receipt",
			zap.String("deliveryId", deliveryID),
			zap.Error(err),
		)
		return respondEmpty(c, fiber.StatusInternalServerError)
	}

	return respondEmpty(c, fiber.StatusNoContent)
}

func (h *DeliveryHandler) SendVerification(c *fiber.Ctx) error {
	var req sendVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phoneNumber is required")
	}
	if strings.TrimSpace(req.Code) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code is required")
	}

	tenant := h.defaultTenant
	if s := strings.TrimSpace(req.SenderAddress); s != "" {
		tenant.SenderAddress = s
	}
	if s := strings.TrimSpace(req.SenderName); s != "" {
		tenant.SenderName = s
	}
	if s := strings.TrimSpace(req.Mode); s != "" {
		tenant.Mode = telia.ParseMode(s)
	}

	delivery, err := h.gateway.Deliver(c.Context(), req.PhoneNumber, req.Code, tenant, false)
	if err != nil {
		return h.sendError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toDeliveryResponse(delivery))
}

func (h *DeliveryHandler) GetDelivery(c *fiber.Ctx) error {
	deliveryID := strings.TrimSpace(c.Params("id"))

	delivery, err := h.readModel.GetByID(c.Context(), deliveryID)
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "delivery not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load delivery")
	}

	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(delivery))
}

func (h *DeliveryHandler) sendError(c *fiber.Ctx, err error) error {
	var policyErr *telia.PolicyError
	if errors.As(err, &policyErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": policyErr.Message,
			"code":  string(policyErr.Code),
		})
	}

	var authErr *telia.AuthenticationError
	if errors.As(err, &authErr) {
		return fiber.NewError(fiber.StatusBadGateway, "carrier authentication failed")
	}

	var serverErr *telia.ServerError
	if errors.As(err, &serverErr) {
		return fiber.NewError(fiber.StatusBadGateway, "carrier request failed")
	}

	if errors.Is(err, domain.ErrValidation) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.logger.Error("verification send failed", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "failed to send verification")
}

// respondEmpty sends a truly bodyless response while keeping the JSON content
// type the carrier expects on its notification channel. SendStatus is avoided
// because it fills an empty body with the status text.
func respondEmpty(c *fiber.Ctx, status int) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(nil)
}

func toDeliveryResponse(d *domain.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:          d.ID,
		From:        d.From,
		To:          d.To,
		Status:      string(d.Status),
		ResourceURL: d.ResourceURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
