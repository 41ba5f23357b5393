// Package handler exposes the verification service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	platformmetrics "idvgate/internal/platform/metrics"
	"idvgate/internal/platform/middleware"
	"idvgate/internal/transport/http/shared"
	"idvgate/internal/verification/models"
	"idvgate/internal/verification/signature"
	dErrors "idvgate/pkg/domain-errors"
	"idvgate/pkg/requestcontext"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// TenantHeader resolves the tenant on webhook deliveries; the upstream
// gateway sets it from the registered endpoint.
const TenantHeader = "X-Tenant-ID"

// DefaultTenant is used when no tenant header is present.
const DefaultTenant = "default"

// Service is the verification operations the handler delegates to.
type Service interface {
	Execute(ctx context.Context, userID, tenantID, providerID string, flowStatus models.FlowStatus, claimURIs []string) ([]*models.VerificationClaim, string, error)
	HandleWebhook(ctx context.Context, tenantID, providerID string, rawBody []byte, signatureHex string) error
}

// Handler handles verification endpoints.
type Handler struct {
	logger       *slog.Logger
	svc          Service
	metrics      *platformmetrics.Metrics
	jwtValidator middleware.JWTValidator

	webhookRate  float64
	webhookBurst int
}

// Option customizes the Handler.
type Option func(*Handler)

// WithWebhookRateLimit overrides the webhook throttle.
func WithWebhookRateLimit(perSecond float64, burst int) Option {
	return func(h *Handler) {
		h.webhookRate = perSecond
		h.webhookBurst = burst
	}
}

// New creates a verification Handler.
func New(svc Service, logger *slog.Logger, metrics *platformmetrics.Metrics, jwtValidator middleware.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		logger:       logger,
		svc:          svc,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		webhookRate:  20,
		webhookBurst: 40,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	common := func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.RequestTime)
		router.Use(middleware.ClientMetadata)
		router.Use(middleware.Logger(h.logger, h.metrics))
		router.Use(middleware.Timeout(30 * time.Second))
	}

	userRouter := chi.NewRouter()
	common(userRouter)
	userRouter.Use(middleware.ContentTypeJSON)
	userRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	userRouter.Post("/idv/verify", h.handleVerify)

	webhookRouter := chi.NewRouter()
	common(webhookRouter)
	webhookRouter.Use(middleware.WebhookRateLimit(h.webhookRate, h.webhookBurst))
	webhookRouter.Post("/{idvProviderID}/verify", h.handleWebhook)

	r.Mount("/", userRouter)
	r.Mount("/idv/providers", webhookRouter)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID == "" {
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx))
		shared.WriteError(w, r, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	flowStatus, err := req.FlowStatus()
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	claims, token, err := h.svc.Execute(ctx, userID, tenantID, req.ProviderID, flowStatus, req.NormalizedClaims())
	if err != nil {
		h.logger.WarnContext(ctx, "verification flow failed",
			"flow_status", string(flowStatus),
			"provider_id", req.ProviderID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, r, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, models.VerifyResponse{Claims: claims, SDKToken: token})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providerID := chi.URLParam(r, "idvProviderID")
	tenantID := r.Header.Get(TenantHeader)
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		shared.WriteError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "reading webhook body"))
		return
	}

	err = h.svc.HandleWebhook(ctx, tenantID, providerID, rawBody, r.Header.Get(signature.Header))
	if err != nil {
		h.logger.WarnContext(ctx, "webhook rejected",
			"provider_id", providerID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, r, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
