package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/wavechat/client/internal/application/session"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/infrastructure/backend"
	"github.com/wavechat/client/internal/interfaces/http/dto"
)

// AuthGateway is the credential lifecycle slice of the backend client
type AuthGateway interface {
	Login(ctx context.Context, creds backend.Credentials) (*syncdomain.AuthGrant, error)
	Register(ctx context.Context, reg backend.Registration) (*syncdomain.AuthGrant, error)
}

// OwnerSwitcher rebinds the cache keyspace when the account changes
type OwnerSwitcher interface {
	SetOwner(userID string)
	ClearOwner(ctx context.Context, userID string) error
}

// AuthHandler proxies the credential lifecycle for the UI shell
type AuthHandler struct {
	BaseHandler
	gateway   AuthGateway
	validator *session.Validator
	cache     OwnerSwitcher
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(gateway AuthGateway, validator *session.Validator, cache OwnerSwitcher) *AuthHandler {
	return &AuthHandler{gateway: gateway, validator: validator, cache: cache}
}

// Login authenticates and installs the resulting session
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	previousOwner := h.validator.ActiveUserID()

	grant, err := h.gateway.Login(c.Request.Context(), backend.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.DomainError(c, err)
		return
	}

	s, err := h.validator.AdoptGrant(c.Request.Context(), grant)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	// Account switch on a shared device: purge the previous owner's
	// cached data before rebinding the keyspace.
	if previousOwner != "" && previousOwner != s.UserID {
		if err := h.cache.ClearOwner(c.Request.Context(), previousOwner); err != nil {
			_ = c.Error(err)
		}
	}
	h.cache.SetOwner(s.UserID)

	h.Success(c, s)
}

// Register creates an account and installs its first session
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	grant, err := h.gateway.Register(c.Request.Context(), backend.Registration{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.DomainError(c, err)
		return
	}

	s, err := h.validator.AdoptGrant(c.Request.Context(), grant)
	if err != nil {
		h.DomainError(c, err)
		return
	}
	h.cache.SetOwner(s.UserID)

	h.Created(c, s)
}

// Logout destroys the session and purges the owner's local data
func (h *AuthHandler) Logout(c *gin.Context) {
	owner := h.validator.ActiveUserID()
	h.validator.Logout(c.Request.Context())
	if owner != "" {
		if err := h.cache.ClearOwner(c.Request.Context(), owner); err != nil {
			_ = c.Error(err)
		}
	}
	h.cache.SetOwner("")
	h.Success(c, gin.H{"logged_out": true})
}

// Validate runs (or joins) the single-flight session validation
func (h *AuthHandler) Validate(c *gin.Context) {
	result := h.validator.Validate(c.Request.Context())
	h.Success(c, gin.H{
		"valid":  result.Valid,
		"user":   result.User,
		"reason": result.Reason,
	})
}

// RegisterRoutes wires the auth endpoints
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.POST("/logout", h.Logout)
		auth.POST("/validate", h.Validate)
	}
}
