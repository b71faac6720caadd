package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-deployer/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	DefaultSessionCookie = "deployer_session"

	maxDeployBodyBytes = 1 << 20
)

// Service is the deployer surface served over HTTP. *core.Deployer
// satisfies it.
type Service interface {
	BeginAuthorization(ctx context.Context, req core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error)
	CompleteAuthorization(ctx context.Context, req core.CompleteAuthorizationRequest) (core.AuthorizationResult, error)
	AuthorizationStatus() core.AuthorizationResult
	Deploy(ctx context.Context, req core.DeployRequest) (core.RunReport, error)
	SiteOptions(ctx context.Context) ([]core.SiteOption, error)
}

type Config struct {
	// SessionCookie names the cookie binding an authorize request to its
	// callback.
	SessionCookie string
	// RedirectURI overrides the callback url sent to the provider.
	RedirectURI string
	// SuccessURL receives the browser after a completed authorization. When
	// empty the callback answers with the authorization status as JSON.
	SuccessURL   string
	SecureCookie bool
	Logger       core.Logger
	Progress     core.ProgressFunc
	NewSessionID func() string
}

type Handler struct {
	service Service
	config  Config
	logger  core.Logger
}

func NewHandler(service Service, cfg Config) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("inbound: deployer service is required")
	}
	cfg.SessionCookie = strings.TrimSpace(cfg.SessionCookie)
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = DefaultSessionCookie
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	return &Handler{
		service: service,
		config:  cfg,
		logger:  glog.Ensure(cfg.Logger),
	}, nil
}

// Routes mounts the deployer endpoints on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/oauth/authorize", h.Authorize)
	r.Get("/oauth/callback", h.Callback)
	r.Get("/status", h.Status)
	r.Get("/sites", h.Sites)
	r.Post("/deploys", h.Deploy)
	return r
}

// Authorize starts an OAuth round trip and redirects to the provider.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)
	if sessionID == "" {
		sessionID = h.config.NewSessionID()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	response, err := h.service.BeginAuthorization(r.Context(), core.BeginAuthorizationRequest{
		SessionID:   sessionID,
		RedirectURI: h.config.RedirectURI,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, response.URL, http.StatusFound)
}

// Callback completes the round trip. The provider may report a denial
// through the error parameter instead of returning a code.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
		writeError(w, core.NewAuthorizationError("inbound: provider denied authorization: "+providerErr))
		return
	}

	result, err := h.service.CompleteAuthorization(r.Context(), core.CompleteAuthorizationRequest{
		SessionID: h.sessionID(r),
		Code:      query.Get("code"),
		State:     query.Get("state"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if target := strings.TrimSpace(h.config.SuccessURL); target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.AuthorizationStatus())
}

func (h *Handler) Sites(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.SiteOptions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// Deploy runs a deploy synchronously. A run with batch failures still
// answers with its full report, under the status of the first failure.
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	var body deployRequestBody
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDeployBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, inboundBadInput("inbound: invalid deploy request body: "+err.Error()))
		return
	}
	if len(body.SiteURIs) == 0 {
		writeError(w, inboundBadInput("inbound: site_uris is required"))
		return
	}
	for i, uri := range body.SiteURIs {
		if err := uri.Validate(); err != nil {
			writeError(w, inboundBadInput(fmt.Sprintf("inbound: site_uris[%d]: %v", i, err)))
			return
		}
	}

	report, err := h.service.Deploy(r.Context(), core.DeployRequest{
		SiteURIs: body.SiteURIs,
		Progress: h.config.Progress,
	})
	if err != nil && report.RunID == "" {
		writeError(w, err)
		return
	}
	writeJSON(w, StatusCode(err), newRunReportResponse(report))
}

func (h *Handler) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(h.config.SessionCookie)
	if errors.Is(err, http.ErrNoCookie) || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.WithContext(r.Context()).Info("deployer http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	})
}
