package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubIssuer struct{}

func (stubIssuer) Sign(sub, email, name, role string) (string, error) {
	return "token-" + sub, nil
}

func newUsersRouter(svc *Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(svc, stubIssuer{})
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterPublicRoutes(api)
	authed := api.Group("")
	authed.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	handler.RegisterRoutes(authed)
	return router
}

func TestRegisterThenLogin(t *testing.T) {
	svc := newTestService()
	router := newUsersRouter(svc, "")

	body := `{"name":"Ada","email":"ada@example.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var session sessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.Token != "token-"+session.User.ID || session.User.Credits != DefaultSignupCredits {
		t.Fatalf("unexpected session %+v", session)
	}
	if strings.Contains(resp.Body.String(), "passwordHash") || strings.Contains(resp.Body.String(), "$2a$") {
		t.Fatalf("password hash leaked: %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"bad-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRegisterValidationError(t *testing.T) {
	router := newUsersRouter(newTestService(), "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"validation_error"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestMeUnknownUser(t *testing.T) {
	router := newUsersRouter(newTestService(), "ghost")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
