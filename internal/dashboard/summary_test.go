package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/content"
	"writer-backend/internal/pipeline"
	"writer-backend/internal/requests"
)

func item(id string, stage pipeline.Stage, updated time.Time, withStructure, withArticle bool) pipeline.WorkItem {
	w := pipeline.WorkItem{
		ID:        id,
		UserID:    "user-1",
		Stage:     stage,
		Request:   requests.GenerationRequest{Title: "Request " + id, Keyword: "seo"},
		UpdatedAt: updated,
	}
	if withStructure {
		w.Structure = &content.StructurePayload{Title: "Outline " + id, Sections: []content.Section{{ID: "s1", Title: "Intro"}}}
	}
	if withArticle {
		w.Article = &content.ArticlePayload{Title: "Article " + id}
	}
	return w
}

func TestSummarizeEmptyHasAllStages(t *testing.T) {
	sum := Summarize(nil)
	if sum.Total != 0 || len(sum.Counts) != len(pipeline.Stages) {
		t.Fatalf("unexpected summary %+v", sum)
	}
	for _, s := range pipeline.Stages {
		if n, ok := sum.Counts[s]; !ok || n != 0 {
			t.Fatalf("stage %s missing or non-zero", s)
		}
	}
	if sum.Structures == nil || sum.Articles == nil {
		t.Fatalf("lists should be empty, not nil")
	}
}

func TestSummarizeSplitsAndOrders(t *testing.T) {
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	items := []pipeline.WorkItem{
		item("a", pipeline.StageRequested, base, false, false),
		item("b", pipeline.StageStructureReady, base.Add(time.Minute), true, false),
		item("c", pipeline.StageArticleFailed, base.Add(3*time.Minute), true, false),
		item("d", pipeline.StagePublished, base.Add(2*time.Minute), true, true),
		item("e", pipeline.StageDraft, base.Add(4*time.Minute), true, true),
	}
	sum := Summarize(items)

	if sum.Total != 5 || sum.Counts[pipeline.StageRequested] != 1 || sum.Counts[pipeline.StageArticlePending] != 0 {
		t.Fatalf("unexpected counts %+v", sum.Counts)
	}
	if len(sum.Structures) != 2 || sum.Structures[0].ItemID != "c" || sum.Structures[1].ItemID != "b" {
		t.Fatalf("unexpected structures %+v", sum.Structures)
	}
	if sum.Structures[0].Badge != BadgeFailed || sum.Structures[1].Badge != BadgeCompleted {
		t.Fatalf("unexpected structure badges %+v", sum.Structures)
	}
	if sum.Structures[1].Title != "Outline b" || sum.Structures[1].Sections != 1 {
		t.Fatalf("unexpected structure entry %+v", sum.Structures[1])
	}
	if len(sum.Articles) != 2 || sum.Articles[0].Badge != BadgeDraft || sum.Articles[1].Badge != BadgePublished {
		t.Fatalf("unexpected articles %+v", sum.Articles)
	}
}

func TestBadgeFor(t *testing.T) {
	cases := map[pipeline.Stage]Badge{
		pipeline.StageRequested:        BadgeProcessing,
		pipeline.StageStructurePending: BadgeProcessing,
		pipeline.StageArticlePending:   BadgeProcessing,
		pipeline.StageStructureReady:   BadgeCompleted,
		pipeline.StageArticleReady:     BadgeCompleted,
		pipeline.StageStructureFailed:  BadgeFailed,
		pipeline.StageDraft:            BadgeDraft,
		pipeline.StagePublished:        BadgePublished,
	}
	for stage, want := range cases {
		if got := BadgeFor(stage); got != want {
			t.Fatalf("%s: got %s want %s", stage, got, want)
		}
	}
}

type stubLister struct {
	items []pipeline.WorkItem
	err   error
}

func (s stubLister) List(ctx context.Context, actor pipeline.Actor, ownerID string) ([]pipeline.WorkItem, error) {
	return s.items, s.err
}

func TestDashboardHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(l ItemLister) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set("userId", "user-1")
			c.Next()
		})
		NewHandler(l).RegisterRoutes(router.Group("/api/v1"))
		return router
	}

	resp := httptest.NewRecorder()
	newRouter(stubLister{items: []pipeline.WorkItem{item("a", pipeline.StageDraft, time.Now(), true, true)}}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var sum Summary
	if err := json.Unmarshal(resp.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Total != 1 || sum.Counts[pipeline.StageDraft] != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	resp = httptest.NewRecorder()
	newRouter(stubLister{err: pipeline.ErrForbidden}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?owner=user-2", nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}
