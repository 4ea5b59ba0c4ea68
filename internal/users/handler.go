package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/shared/server/middleware"
	"writer-backend/internal/shared/server/respond"
	"writer-backend/internal/shared/validation"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Sign(sub, email, name, role string) (string, error)
}

type Handler struct {
	Svc    *Service
	Tokens TokenIssuer
}

func NewHandler(svc *Service, tokens TokenIssuer) *Handler {
	return &Handler{Svc: svc, Tokens: tokens}
}

// RegisterPublicRoutes mounts routes that need no session.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), req)
	if err != nil {
		if verr, ok := validation.As(err); ok {
			respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "invalid registration", verr)
			return
		}
		if errors.Is(err, ErrDuplicateEmail) {
			respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register", nil)
		return
	}
	h.issue(c, http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	user, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, "auth_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign in", nil)
		return
	}
	h.issue(c, http.StatusOK, user)
}

func (h *Handler) issue(c *gin.Context, status int, user User) {
	token, err := h.Tokens.Sign(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	respond.JSON(c, status, sessionResponse{Token: token, User: user})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	respond.OK(c, user)
}
