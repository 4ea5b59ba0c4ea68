package pipeline

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/credits"
	"writer-backend/internal/export"
	"writer-backend/internal/requests"
	"writer-backend/internal/shared/server/middleware"
	"writer-backend/internal/shared/server/respond"
	"writer-backend/internal/shared/storage/object"
	"writer-backend/internal/shared/telemetry"
	"writer-backend/internal/shared/validation"
)

type Handler struct {
	Svc *Service
	// Exports, when set, keeps a copy of every exported file.
	Exports object.ObjectStore
}

func NewHandler(svc *Service, exports object.ObjectStore) *Handler {
	return &Handler{Svc: svc, Exports: exports}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/items", h.submit)
	rg.GET("/items", h.list)
	rg.GET("/items/:id", h.get)
	rg.POST("/items/:id/generate", h.generate)
	rg.POST("/items/:id/retry", h.retry)
	rg.GET("/items/:id/article/export", h.exportArticle)
}

// ActorFromContext builds the Actor for the authenticated request.
func ActorFromContext(c *gin.Context) Actor {
	return Actor{UserID: middleware.UserIDFromContext(c), Role: middleware.UserRoleFromContext(c)}
}

// ContextWithRequest returns the request context tagged with its request ID.
func ContextWithRequest(c *gin.Context) *gin.Context {
	c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c)))
	return c
}

func (h *Handler) submit(c *gin.Context) {
	var sub requests.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	ctx := ContextWithRequest(c).Request.Context()
	actor := ActorFromContext(c)

	item, err := h.Svc.Submit(ctx, actor, sub)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.Set(middleware.ItemIDKey, item.ID)

	started, err := h.Svc.StartStructure(ctx, actor, item.ID)
	if err != nil {
		// The item exists and can be started later through /generate.
		telemetry.Warn("pipeline.start_after_submit_failed", map[string]any{
			"item_id": item.ID,
			"error":   err,
		})
		respond.Created(c, item)
		return
	}
	c.Set(middleware.StageTransitionKey, string(StageRequested)+"->"+string(started.Stage))
	respond.Created(c, started)
}

func (h *Handler) list(c *gin.Context) {
	actor := ActorFromContext(c)
	var (
		items []WorkItem
		err   error
	)
	if c.Query("all") == "true" {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		items, err = h.Svc.ListAll(c.Request.Context(), actor, limit)
	} else {
		items, err = h.Svc.List(c.Request.Context(), actor, c.Query("owner"))
	}
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) get(c *gin.Context) {
	c.Set(middleware.ItemIDKey, c.Param("id"))
	item, err := h.Svc.Get(c.Request.Context(), ActorFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, item)
}

func (h *Handler) generate(c *gin.Context) {
	c.Set(middleware.ItemIDKey, c.Param("id"))
	ctx := ContextWithRequest(c).Request.Context()
	item, err := h.Svc.StartStructure(ctx, ActorFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.Accepted(c, item)
}

func (h *Handler) retry(c *gin.Context) {
	c.Set(middleware.ItemIDKey, c.Param("id"))
	ctx := ContextWithRequest(c).Request.Context()
	item, err := h.Svc.Retry(ctx, ActorFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.Accepted(c, item)
}

func (h *Handler) exportArticle(c *gin.Context) {
	c.Set(middleware.ItemIDKey, c.Param("id"))
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "format must be txt or html", nil)
		return
	}
	ctx := c.Request.Context()
	item, err := h.Svc.Get(ctx, ActorFromContext(c), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	if item.Article == nil {
		respond.Error(c, http.StatusConflict, "invalid_transition", "article not generated yet", gin.H{"stage": item.Stage})
		return
	}
	file, err := export.Render(*item.Article, format)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render export", nil)
		return
	}
	if h.Exports != nil {
		if _, err := h.Exports.Save(ctx, item.UserID, file.FileName, file.ContentType, bytes.NewReader(file.Body)); err != nil {
			telemetry.Warn("export.store_failed", map[string]any{"item_id": item.ID, "error": err})
		}
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

// WriteError maps pipeline, ledger and validation errors to responses.
func WriteError(c *gin.Context, err error) {
	if verr, ok := validation.As(err); ok {
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "validation failed", verr)
		return
	}
	switch {
	case errors.Is(err, credits.ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "no credits left", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, ErrStaleEdit):
		respond.Error(c, http.StatusConflict, "stale_edit", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "work item not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, credits.ErrUserNotFound):
		respond.Error(c, http.StatusUnauthorized, "auth_error", "account not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
