package editor

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/pipeline"
	"writer-backend/internal/shared/server/middleware"
	"writer-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/items/:id/structure-session", h.openStructure)
	rg.GET("/structure-sessions/:sid", h.getStructure)
	rg.PUT("/structure-sessions/:sid/title", h.setTitle)
	rg.POST("/structure-sessions/:sid/sections", h.addSection)
	rg.PATCH("/structure-sessions/:sid/sections/:secId", h.editSection)
	rg.DELETE("/structure-sessions/:sid/sections/:secId", h.removeSection)
	rg.POST("/structure-sessions/:sid/reorder", h.reorder)
	rg.POST("/structure-sessions/:sid/save", h.saveStructure)
	rg.POST("/structure-sessions/:sid/approve", h.approveStructure)

	rg.POST("/items/:id/article-session", h.openArticle)
	rg.GET("/article-sessions/:sid", h.getArticle)
	rg.PATCH("/article-sessions/:sid", h.editArticle)
	rg.POST("/article-sessions/:sid/save", h.saveDraft)
	rg.POST("/article-sessions/:sid/publish", h.publish)
}

type titleRequest struct {
	Title string `json:"title"`
}

type sectionPatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type reorderRequest struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

func (h *Handler) openStructure(c *gin.Context) {
	c.Set(middleware.ItemIDKey, c.Param("id"))
	sess, err := h.Svc.OpenStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, sess)
}

func (h *Handler) getStructure(c *gin.Context) {
	sess, err := h.Svc.GetStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"))
	h.structureResult(c, sess, err)
}

func (h *Handler) setTitle(c *gin.Context) {
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	sess, err := h.Svc.EditStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"), func(s *StructureSession) error {
		s.SetTitle(req.Title)
		return nil
	})
	h.structureResult(c, sess, err)
}

func (h *Handler) addSection(c *gin.Context) {
	sess, err := h.Svc.EditStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"), func(s *StructureSession) error {
		s.AddSection()
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, sess)
}

func (h *Handler) editSection(c *gin.Context) {
	var req sectionPatch
	if err := c.ShouldBindJSON(&req); err != nil || (req.Title == nil && req.Content == nil) {
		respond.Error(c, http.StatusBadRequest, "bad_request", "title or content is required", nil)
		return
	}
	secID := c.Param("secId")
	sess, err := h.Svc.EditStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"), func(s *StructureSession) error {
		if req.Title != nil {
			if err := s.EditSection(secID, "title", *req.Title); err != nil {
				return err
			}
		}
		if req.Content != nil {
			return s.EditSection(secID, "content", *req.Content)
		}
		return nil
	})
	h.structureResult(c, sess, err)
}

func (h *Handler) removeSection(c *gin.Context) {
	secID := c.Param("secId")
	sess, err := h.Svc.EditStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"), func(s *StructureSession) error {
		return s.RemoveSection(secID)
	})
	h.structureResult(c, sess, err)
}

func (h *Handler) reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.From == nil || req.To == nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "from and to are required", nil)
		return
	}
	sess, err := h.Svc.EditStructure(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"), func(s *StructureSession) error {
		return s.Reorder(*req.From, *req.To)
	})
	h.structureResult(c, sess, err)
}

func (h *Handler) saveStructure(c *gin.Context) {
	ctx := pipeline.ContextWithRequest(c).Request.Context()
	sess, err := h.Svc.SaveStructure(ctx, pipeline.ActorFromContext(c), c.Param("sid"))
	h.structureResult(c, sess, err)
}

func (h *Handler) approveStructure(c *gin.Context) {
	ctx := pipeline.ContextWithRequest(c).Request.Context()
	item, err := h.Svc.ApproveStructure(ctx, pipeline.ActorFromContext(c), c.Param("sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.ItemIDKey, item.ID)
	c.Set(middleware.StageTransitionKey, string(pipeline.StageStructureReady)+"->"+string(item.Stage))
	respond.Accepted(c, item)
}

func (h *Handler) structureResult(c *gin.Context, sess StructureSession, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) openArticle(c *gin.Context) {
	c.Set(middleware.ItemIDKey, c.Param("id"))
	sess, err := h.Svc.OpenArticle(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, sess)
}

func (h *Handler) getArticle(c *gin.Context) {
	sess, err := h.Svc.GetArticle(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"))
	h.articleResult(c, sess, err)
}

func (h *Handler) editArticle(c *gin.Context) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil || len(fields) == 0 {
		respond.Error(c, http.StatusBadRequest, "bad_request", "expected an object of field values", gin.H{"fields": ArticleFields})
		return
	}
	sess, err := h.Svc.EditArticle(c.Request.Context(), pipeline.ActorFromContext(c), c.Param("sid"), fields)
	h.articleResult(c, sess, err)
}

func (h *Handler) saveDraft(c *gin.Context) {
	ctx := pipeline.ContextWithRequest(c).Request.Context()
	sess, err := h.Svc.SaveDraft(ctx, pipeline.ActorFromContext(c), c.Param("sid"))
	h.articleResult(c, sess, err)
}

func (h *Handler) publish(c *gin.Context) {
	ctx := pipeline.ContextWithRequest(c).Request.Context()
	sess, err := h.Svc.Publish(ctx, pipeline.ActorFromContext(c), c.Param("sid"))
	h.articleResult(c, sess, err)
}

func (h *Handler) articleResult(c *gin.Context, sess ArticleSession, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.ItemIDKey, sess.ItemID)
	respond.OK(c, sess)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "editor session not found", nil)
	case errors.Is(err, ErrSessionConflict):
		respond.Error(c, http.StatusConflict, "session_conflict", err.Error(), nil)
	case errors.Is(err, ErrSectionNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "section not found", nil)
	case errors.Is(err, ErrIndexOutOfRange):
		respond.Error(c, http.StatusBadRequest, "index_out_of_range", err.Error(), nil)
	case errors.Is(err, ErrUnknownField):
		respond.Error(c, http.StatusBadRequest, "bad_request", err.Error(), gin.H{"fields": ArticleFields})
	case errors.Is(err, ErrWrongStage):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	default:
		pipeline.WriteError(c, err)
	}
}
