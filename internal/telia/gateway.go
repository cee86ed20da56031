package telia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viesti/telia-gateway/internal/domain"
	"github.com/viesti/telia-gateway/internal/observability"
	"github.com/viesti/telia-gateway/internal/ratelimit"
	"github.com/viesti/telia-gateway/internal/repository"
	"go.uber.org/zap"
)

// DefaultRetryDelay is the wait before re-attempting a send rejected with a
// busy-server policy error.
const DefaultRetryDelay = 10 * time.Second

// Mode selects the carrier API environment in the messaging path.
type Mode string

const (
	ModeSandbox    Mode = "sandbox"
	ModeProduction Mode = "production"
)

// ParseMode normalizes a mode string; anything but production falls back to
// the sandbox endpoint.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeProduction)) {
		return ModeProduction
	}
	return ModeSandbox
}

// Tenant carries the per-tenant sender identity and callback addressing. The
// carrier credential pair stays tenant-independent; only the sender surface
// varies.
type Tenant struct {
	SenderAddress string `json:"senderAddress"`
	SenderName    string `json:"senderName"`
	Mode          Mode   `json:"mode"`
	NotifyBaseURL string `json:"notifyBaseUrl"`
}

func (t Tenant) Validate() error {
	if strings.TrimSpace(t.SenderAddress) == "" {
		return fmt.Errorf("%w: tenant sender address is required", domain.ErrValidation)
	}
	if strings.TrimSpace(t.NotifyBaseURL) == "" {
		return fmt.Errorf("%w: tenant notify base url is required", domain.ErrValidation)
	}
	return nil
}

// RetryTask is one deferred re-invocation of the gateway. The scheduler runs
// it with the retry flag set, so a retried send can never schedule another.
type RetryTask struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
	Tenant      Tenant `json:"tenant"`
}

// RetryScheduler defers a retry task. Any job queue or native timer
// satisfies the contract; scheduling is best-effort and fire-and-forget.
type RetryScheduler interface {
	Schedule(ctx context.Context, task RetryTask, delay time.Duration) error
}

// TokenSource is the token lifecycle dependency of the gateway.
type TokenSource interface {
	Fetch(ctx context.Context) (*domain.Token, error)
	Revoke(ctx context.Context, accessToken string) (bool, error)
}

type outboundSMSTextMessage struct {
	Message string `json:"message"`
}

type receiptRequest struct {
	NotifyURL          string `json:"notifyURL"`
	NotificationFormat string `json:"notificationFormat"`
	CallbackData       string `json:"callbackData"`
}

type outboundMessageRequest struct {
	Address                []string               `json:"address"`
	SenderAddress          string                 `json:"senderAddress"`
	SenderName             string                 `json:"senderName,omitempty"`
	OutboundSMSTextMessage outboundSMSTextMessage `json:"outboundSMSTextMessage"`
	ReceiptRequest         receiptRequest         `json:"receiptRequest"`
}

type outboundMessageEnvelope struct {
	OutboundMessageRequest outboundMessageRequest `json:"outboundMessageRequest"`
}

type resourceReference struct {
	ResourceURL string `json:"resourceURL"`
}

type outboundMessageResponse struct {
	ResourceReference *resourceReference `json:"resourceReference"`
}

type policyException struct {
	MessageID string   `json:"messageId"`
	Text      string   `json:"text"`
	Variables []string `json:"variables"`
}

type requestError struct {
	PolicyException *policyException `json:"policyException"`
}

type errorEnvelope struct {
	RequestError *requestError `json:"requestError"`
}

// Gateway orchestrates one verification-code send: mint a delivery record,
// obtain a token, call the carrier, classify the outcome, and revoke the
// token. Tokens are single-use by design; every send authenticates and
// revokes its own.
type Gateway struct {
	transport    *Transport
	tokens       TokenSource
	deliveries   repository.DeliveryRepository
	callbackData *CallbackDataGenerator
	scheduler    RetryScheduler
	limiter      ratelimit.RateLimiter
	retryDelay   time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewGateway(
	transport *Transport,
	tokens TokenSource,
	deliveries repository.DeliveryRepository,
	callbackData *CallbackDataGenerator,
	scheduler RetryScheduler,
	retryDelay time.Duration,
	logger *zap.Logger,
) (*Gateway, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if callbackData == nil {
		return nil, fmt.Errorf("callback data generator is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("retry scheduler is required")
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		transport:    transport,
		tokens:       tokens,
		deliveries:   deliveries,
		callbackData: callbackData,
		scheduler:    scheduler,
		retryDelay:   retryDelay,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (g *Gateway) SetMetrics(metrics *observability.Metrics) {
	if g == nil {
		return
	}
	g.metrics = metrics
}

// SetRateLimiter bounds the carrier call rate. Optional; sends proceed
// unthrottled without one.
func (g *Gateway) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if g == nil {
		return
	}
	g.limiter = limiter
}

// Deliver sends one verification code. The delivery record is created with
// status initiated before the carrier call and advanced to sent only on a
// carrier accept; on failure it stays initiated and the error is returned to
// the caller even when a retry was scheduled.
func (g *Gateway) Deliver(ctx context.Context, phoneNumber, code string, tenant Tenant, isRetry bool) (*domain.Delivery, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: message code is required", domain.ErrValidation)
	}
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	delivery, err := g.createDelivery(ctx, phoneNumber, tenant)
	if err != nil {
		return nil, err
	}

	token, err := g.tokens.Fetch(ctx)
	if err != nil {
		g.logger.Error("token acquisition failed",
			zap.String("deliveryId", delivery.ID),
			zap.Error(err),
		)
		g.metrics.IncSMSFailed(string(ErrorUnauthorized))
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	start := g.now()
	resp, postErr := g.transport.PostJSON(ctx, messagingPath(tenant), token.AccessToken, buildOutboundRequest(delivery, code, tenant))
	g.metrics.ObserveCarrierCallDuration("messaging", g.now().Sub(start))

	// Tokens are never reused across sends; revoke regardless of outcome.
	if acknowledged, revokeErr := g.tokens.Revoke(ctx, token.AccessToken); revokeErr != nil || !acknowledged {
		g.logger.Warn("token revocation after send did not complete",
			zap.String("deliveryId", delivery.ID),
			zap.Bool("acknowledged", acknowledged),
			zap.Error(revokeErr),
		)
	}

	if postErr != nil {
		g.metrics.IncSMSFailed(string(ErrorServerError))
		return nil, &ServerError{Cause: fmt.Errorf("outbound message request failed: %w", postErr)}
	}

	return g.classifyResponse(ctx, delivery, resp.StatusCode(), resp.Body(), phoneNumber, code, tenant, isRetry)
}

func (g *Gateway) createDelivery(ctx context.Context, phoneNumber string, tenant Tenant) (*domain.Delivery, error) {
	callbackData, err := g.callbackData.Generate(ctx)
	if err != nil {
		return nil, err
	}

	delivery := &domain.Delivery{
		ID:           uuid.NewString(),
		From:         domain.NormalizePhoneNumber(tenant.SenderAddress),
		To:           domain.NormalizePhoneNumber(phoneNumber),
		Status:       domain.StatusInitiated,
		CallbackData: callbackData,
	}
	if err := delivery.Validate(); err != nil {
		return nil, err
	}
	if err := g.deliveries.Create(ctx, delivery); err != nil {
		return nil, fmt.Errorf("failed to create delivery record: %w", err)
	}

	return delivery, nil
}

func (g *Gateway) classifyResponse(
	ctx context.Context,
	delivery *domain.Delivery,
	status int,
	body []byte,
	phoneNumber, code string,
	tenant Tenant,
	isRetry bool,
) (*domain.Delivery, error) {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		var parsed outboundMessageResponse
		if err := json.Unmarshal(body, &parsed); err != nil || parsed.ResourceReference == nil {
			g.metrics.IncSMSFailed(string(ErrorServerError))
			return nil, &ServerError{
				StatusCode: status,
				Cause:      fmt.Errorf("malformed carrier response: %v", err),
			}
		}

		resourceURL := parsed.ResourceReference.ResourceURL
		if err := g.deliveries.MarkSent(ctx, delivery.ID, resourceURL); err != nil {
			return nil, fmt.Errorf("failed to mark delivery as sent: %w", err)
		}
		delivery.Status = domain.StatusSent
		delivery.ResourceURL = &resourceURL

		g.metrics.IncSMSSent()
		g.logger.Info("sms accepted by carrier",
			zap.String("deliveryId", delivery.ID),
			zap.String("resourceUrl", resourceURL),
		)
		return delivery, nil
	default:
		return nil, g.policyFailure(ctx, delivery, status, body, phoneNumber, code, tenant, isRetry)
	}
}

func (g *Gateway) policyFailure(
	ctx context.Context,
	delivery *domain.Delivery,
	status int,
	body []byte,
	phoneNumber, code string,
	tenant Tenant,
	isRetry bool,
) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.RequestError == nil || envelope.RequestError.PolicyException == nil {
		g.metrics.IncSMSFailed(string(ErrorServerError))
		g.logger.Error("unexpected carrier rejection",
			zap.String("deliveryId", delivery.ID),
			zap.Int("status", status),
		)
		return &ServerError{
			StatusCode: status,
			Cause:      fmt.Errorf("carrier rejection without policy exception"),
		}
	}

	exception := envelope.RequestError.PolicyException
	errorCode := policyErrorCode(exception.MessageID)
	message := formatPolicyText(exception.Text, exception.Variables)

	g.metrics.IncSMSFailed(string(errorCode))
	g.logger.Error("carrier rejected the message",
		zap.String("deliveryId", delivery.ID),
		zap.Int("status", status),
		zap.String("carrierCode", exception.MessageID),
		zap.String("errorCode", string(errorCode)),
		zap.String("message", message),
	)

	// A busy carrier earns exactly one deferred retry; a retried send never
	// schedules another. The error is still surfaced to the caller because
	// the retry is best-effort mitigation, not a delivery guarantee.
	if errorCode == ErrorServerBusy && !isRetry {
		task := RetryTask{PhoneNumber: phoneNumber, Code: code, Tenant: tenant}
		if err := g.scheduler.Schedule(ctx, task, g.retryDelay); err != nil {
			g.logger.Error("failed to schedule retry",
				zap.String("deliveryId", delivery.ID),
				zap.Error(err),
			)
		} else {
			g.metrics.IncRetryScheduled()
		}
	}

	return &PolicyError{
		Code:      errorCode,
		MessageID: exception.MessageID,
		Message:   message,
	}
}

func messagingPath(tenant Tenant) string {
	sender := "tel:" + domain.NormalizePhoneNumber(tenant.SenderAddress)
	return fmt.Sprintf("/%s/messaging/v1/outbound/%s/requests", ParseMode(string(tenant.Mode)), url.QueryEscape(sender))
}

func buildOutboundRequest(delivery *domain.Delivery, code string, tenant Tenant) outboundMessageEnvelope {
	return outboundMessageEnvelope{
		OutboundMessageRequest: outboundMessageRequest{
			Address:       []string{"tel:" + delivery.To},
			SenderAddress: "tel:" + delivery.From,
			SenderName:    tenant.SenderName,
			OutboundSMSTextMessage: outboundSMSTextMessage{
				Message: code,
			},
			ReceiptRequest: receiptRequest{
				NotifyURL:          notifyURL(tenant, delivery.ID),
				NotificationFormat: "JSON",
				CallbackData:       delivery.CallbackData,
			},
		},
	}
}

func notifyURL(tenant Tenant, deliveryID string) string {
	base := strings.TrimRight(strings.TrimSpace(tenant.NotifyBaseURL), "/")
	return base + "/deliveries/" + deliveryID
}
