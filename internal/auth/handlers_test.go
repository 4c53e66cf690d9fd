package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-parfum/internal/common"
)

type loginResponse struct {
	Data struct {
		AccessToken string `json:"accessToken"`
		User        User   `json:"user"`
	} `json:"data"`
}

func newAuthRouter(svc *Service) http.Handler {
	h := &Handler{Service: svc, RefreshCookieName: "refresh_token"}
	mw := Middleware{Service: svc}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.With(mw.RequireAuth).Get("/auth/me", h.Me)
	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireRole(RoleAdmin))
		r.Get("/users", h.AdminUsers)
		r.Put("/users/{userID}/roles", h.SetUserRoles)
	})
	return r
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	return nil
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	queries := newFakeQueries()
	queries.addUser("user@example.com", "password123", RoleCustomer)
	router := newAuthRouter(newTestService(t, queries))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"user@example.com","password":"password123"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(rec.Body.String(), "refreshToken") {
		t.Fatal("refresh token must only travel in the cookie")
	}
	cookie := refreshCookie(rec)
	if cookie == nil || !cookie.HttpOnly {
		t.Fatal("expected http-only refresh cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status %d: %s", rec.Code, rec.Body.String())
	}
	rotated := refreshCookie(rec)
	if rotated == nil || rotated.Value == cookie.Value {
		t.Fatal("expected rotated refresh cookie")
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(rotated)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", rec.Code)
	}
	if queries.sessionCount() != 0 {
		t.Fatal("logout should revoke the session")
	}
}

func TestMeRequiresToken(t *testing.T) {
	router := newAuthRouter(newTestService(t, newFakeQueries()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	queries := newFakeQueries()
	customer := queries.addUser("user@example.com", "password123", RoleCustomer)
	queries.addUser("admin@example.com", "password123", RoleCustomer, RoleAdmin)
	svc := newTestService(t, queries)
	router := newAuthRouter(svc)

	token := func(email string) string {
		result, err := svc.Login(t.Context(), email, "password123", "", "")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		return result.AccessToken
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+token("user@example.com"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	adminToken := token("admin@example.com")
	req = httptest.NewRequest(http.MethodGet, "/admin/users?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Data       []User            `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Pagination.TotalItems != 2 {
		t.Fatalf("expected 2 users, got %d", list.Pagination.TotalItems)
	}

	req = httptest.NewRequest(http.MethodPut, "/admin/users/"+common.UUIDString(customer.ID)+"/roles",
		strings.NewReader(`{"roles":["admin"]}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set roles status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterHandler(t *testing.T) {
	router := newAuthRouter(newTestService(t, newFakeQueries()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"name":"Kabir","email":"kabir@example.com","password":"password123"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"name":"Kabir","email":"kabir@example.com","password":"password123"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rec.Code)
	}
}
