package editor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newEditorRouter(f *editorFixture, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("userRole", "standard")
		c.Next()
	})
	NewHandler(f.editor).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestStructureSessionRoutes(t *testing.T) {
	f := newEditorFixture(t)
	item := f.structureReady(t)
	router := newEditorRouter(f, "user-1")

	resp := doJSON(router, http.MethodPost, "/api/v1/items/"+item.ID+"/structure-session", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var sess StructureSession
	if err := json.Unmarshal(resp.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	base := "/api/v1/structure-sessions/" + sess.ID

	resp = doJSON(router, http.MethodPost, base+"/reorder", `{"from":0,"to":42}`)
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "index_out_of_range") {
		t.Fatalf("expected 400 index_out_of_range, got %d %s", resp.Code, resp.Body.String())
	}

	secID := sess.Payload.Sections[0].ID
	resp = doJSON(router, http.MethodPatch, base+"/sections/"+secID, `{"title":"Opening"}`)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "Opening") {
		t.Fatalf("expected edited section, got %d %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(router, http.MethodPost, base+"/approve", "")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(router, http.MethodGet, base, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected closed session 404, got %d", resp.Code)
	}
}

func TestArticleSessionRoutesReportStaleEdit(t *testing.T) {
	f := newEditorFixture(t)
	item := f.articleReady(t)
	router := newEditorRouter(f, "user-1")

	open := func() string {
		resp := doJSON(router, http.MethodPost, "/api/v1/items/"+item.ID+"/article-session", "")
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
		}
		var sess ArticleSession
		if err := json.Unmarshal(resp.Body.Bytes(), &sess); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		return sess.ID
	}
	first, second := open(), open()

	resp := doJSON(router, http.MethodPatch, "/api/v1/article-sessions/"+first, `{"colour":"red"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.Code)
	}
	resp = doJSON(router, http.MethodPost, "/api/v1/article-sessions/"+first+"/publish", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = doJSON(router, http.MethodPost, "/api/v1/article-sessions/"+second+"/save", "")
	if resp.Code != http.StatusConflict || !strings.Contains(resp.Body.String(), "stale_edit") {
		t.Fatalf("expected 409 stale_edit, got %d %s", resp.Code, resp.Body.String())
	}

	other := newEditorRouter(f, "user-2")
	resp = doJSON(other, http.MethodGet, "/api/v1/article-sessions/"+first, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user, got %d", resp.Code)
	}
}
