package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/pipeline"
	"writer-backend/internal/shared/server/respond"
)

// ItemLister returns the work items visible to actor for ownerID.
type ItemLister interface {
	List(ctx context.Context, actor pipeline.Actor, ownerID string) ([]pipeline.WorkItem, error)
}

type Handler struct {
	Items ItemLister
}

func NewHandler(items ItemLister) *Handler {
	return &Handler{Items: items}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.get)
}

func (h *Handler) get(c *gin.Context) {
	items, err := h.Items.List(c.Request.Context(), pipeline.ActorFromContext(c), c.Query("owner"))
	if err != nil {
		pipeline.WriteError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, Summarize(items))
}
