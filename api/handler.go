// Package api binds the dispatcher to HTTP. The binding is deliberately
// thin: query-string parsing and status mapping live here, authorization
// semantics live in the dispatch package.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/dispatch"
	"github.com/jgarte/gn-proxy/health"
	"github.com/jgarte/gn-proxy/resource"
)

// reservedParams are consumed by the binding itself; everything else in the
// query string is forwarded to the action as caller parameters.
var reservedParams = map[string]bool{
	"resource": true,
	"user":     true,
	"branch":   true,
	"action":   true,
}

type Handler struct {
	dispatcher *dispatch.Dispatcher
	health     *health.Manager
	secret     []byte
	log        *zap.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithAdminSecret enables the admin API, authenticated by HS256 bearer
// tokens signed with the secret.
func WithAdminSecret(secret []byte) Option {
	return func(h *Handler) {
		h.secret = secret
	}
}

// WithHealth mounts health endpoints backed by the manager.
func WithHealth(m *health.Manager) Option {
	return func(h *Handler) {
		h.health = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

func NewHandler(d *dispatch.Dispatcher, opts ...Option) *Handler {
	h := &Handler{dispatcher: d, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/available", h.HandleAvailable)
	g.GET("/run-action", h.HandleRunAction)

	admin := g.Group("/admin")
	admin.Use(h.AdminMiddleware)
	admin.POST("/resources", h.HandleAddResource)
	admin.POST("/resources/:id/grant", h.HandleGrant)
	admin.POST("/resources/:id/revoke", h.HandleRevoke)

	g.GET("/healthz", h.HandleLive)
	g.GET("/ready", h.HandleReady)
}

// HandleAvailable reports, per branch, the action names the user may
// invoke on the resource.
func (h *Handler) HandleAvailable(c echo.Context) error {
	resourceID := c.QueryParam("resource")
	userID := c.QueryParam("user")
	if resourceID == "" {
		return h.badRequest(c, "resource parameter is required")
	}

	branches, err := h.dispatcher.Available(c.Request().Context(), resourceID, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, branches)
}

// HandleRunAction authorizes and executes one action. Query parameters
// beyond resource/user/branch/action are passed through to the handler.
func (h *Handler) HandleRunAction(c echo.Context) error {
	resourceID := c.QueryParam("resource")
	userID := c.QueryParam("user")
	branch := c.QueryParam("branch")
	action := c.QueryParam("action")
	if resourceID == "" || branch == "" || action == "" {
		return h.badRequest(c, "resource, branch, and action parameters are required")
	}

	params := make(access.Params)
	for name, values := range c.QueryParams() {
		if reservedParams[name] || len(values) == 0 {
			continue
		}
		params[name] = values[0]
	}

	result, err := h.dispatcher.Execute(c.Request().Context(), resourceID, userID, branch, action, params)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"result": result})
}

// HandleAddResource provisions a resource. Provisioning is idempotent: a
// repeated id reports "already exists" and leaves the stored record
// untouched.
func (h *Handler) HandleAddResource(c echo.Context) error {
	var res resource.Resource
	if err := c.Bind(&res); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	created, err := h.dispatcher.AddResource(c.Request().Context(), &res)
	if err != nil {
		return h.fail(c, err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{"id": res.ID, "created": created})
}

func (h *Handler) HandleGrant(c echo.Context) error {
	var body struct {
		User   string `json:"user"`
		Branch string `json:"branch"`
		Level  int    `json:"level"`
	}
	if err := c.Bind(&body); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	actor, _ := c.Get("actor").(string)
	err := h.dispatcher.Grant(c.Request().Context(), c.Param("id"), actor, body.User, body.Branch, body.Level)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "granted"})
}

func (h *Handler) HandleRevoke(c echo.Context) error {
	var body struct {
		User   string `json:"user"`
		Branch string `json:"branch"`
	}
	if err := c.Bind(&body); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	actor, _ := c.Get("actor").(string)
	err := h.dispatcher.Revoke(c.Request().Context(), c.Param("id"), actor, body.User, body.Branch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) HandleLive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleReady(c echo.Context) error {
	if h.health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	report := h.health.Run(c.Request().Context())
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}

// fail maps core errors to HTTP. Denials and the whole not-found family
// share one payload: an unauthenticated caller cannot tell a resource that
// refuses them from one that does not exist. The distinction is kept in
// the server log and the audit trail.
func (h *Handler) fail(c echo.Context, err error) error {
	var ae *access.Error
	if errors.As(err, &ae) {
		switch {
		case errors.Is(err, access.ErrPermissionDenied),
			errors.Is(err, access.ErrResourceNotFound),
			errors.Is(err, access.ErrTypeNotFound),
			errors.Is(err, access.ErrBranchNotFound),
			errors.Is(err, access.ErrActionNotFound):
			h.log.Debug("request refused", zap.String("code", ae.Code), zap.Error(err))
			return c.JSON(http.StatusNotFound, map[string]any{
				"status": "not available",
				"code":   http.StatusNotFound,
			})
		case errors.Is(err, access.ErrMissingParameter),
			errors.Is(err, access.ErrInvalidResource):
			return c.JSON(http.StatusBadRequest, map[string]any{
				"status": ae.Message,
				"code":   http.StatusBadRequest,
			})
		case errors.Is(err, access.ErrTimeout):
			return c.JSON(http.StatusGatewayTimeout, map[string]any{
				"status": "action timed out",
				"code":   http.StatusGatewayTimeout,
			})
		case errors.Is(err, access.ErrHandler):
			h.log.Error("action handler failed", zap.Error(err))
			return c.JSON(http.StatusBadGateway, map[string]any{
				"status": "backend query failed",
				"code":   http.StatusBadGateway,
			})
		}
	}

	h.log.Error("internal error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"status": "internal server error",
		"code":   http.StatusInternalServerError,
	})
}

func (h *Handler) badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"status": message,
		"code":   http.StatusBadRequest,
	})
}

// ---- Admin tokens ----

// AdminMiddleware authenticates admin calls with an HS256 bearer token and
// stores the token subject as the acting user.
func (h *Handler) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if len(h.secret) == 0 {
			return c.JSON(http.StatusForbidden, map[string]any{
				"status": "admin API disabled",
				"code":   http.StatusForbidden,
			})
		}

		auth := c.Request().Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"status": "bearer token required",
				"code":   http.StatusUnauthorized,
			})
		}

		subject, err := ParseAdminToken(h.secret, auth[len(prefix):])
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"status": "invalid token",
				"code":   http.StatusUnauthorized,
			})
		}

		c.Set("actor", subject)
		return next(c)
	}
}

// SignAdminToken mints an HS256 token whose subject is the acting user id.
func SignAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAdminToken verifies the token and returns its subject.
func ParseAdminToken(secret []byte, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}
