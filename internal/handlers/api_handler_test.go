package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"little_lemon/internal/access"
	"little_lemon/internal/messaging"
	"little_lemon/internal/models"
	"little_lemon/internal/repository/memory"
	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	users  services.UserService
}

func newTestServer(t *testing.T, checks ...HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	kv := memory.NewKV()
	log := zap.NewNop()
	pagination := services.Pagination{DefaultSize: 20, MaxSize: 100}

	users := services.NewUserService(store.Users(), kv, time.Hour, log)
	handler := NewAPIHandler(
		users,
		services.NewRoleService(store.Roles(), store.Users(), log),
		services.NewMenuService(store.Categories(), store.MenuItems(), kv, time.Minute, pagination, log),
		services.NewCartService(store.Cart(), store.MenuItems()),
		services.NewOrderService(store.Orders(), store.Roles(), store.Transactor(), messaging.NopPublisher{}, pagination, log),
		log,
		checks...,
	)

	router := gin.New()
	handler.RegisterRoutes(router)
	return &testServer{router: router, store: store, users: users}
}

// login registers username with roles and returns an auth token.
func (s *testServer) login(t *testing.T, username string, roles ...access.Role) (string, uint) {
	t.Helper()
	ctx := context.Background()
	user, err := s.users.Register(ctx, services.RegisterInput{Username: username, Password: "lemonade-123"})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	for _, role := range roles {
		if _, err := s.store.Roles().Add(ctx, user.ID, role); err != nil {
			t.Fatalf("grant %s: %v", role, err)
		}
	}

	rec := s.do(t, http.MethodPost, "/api/auth/token/login/", "", map[string]string{"username": username, "password": "lemonade-123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body)
	}
	var body struct {
		AuthToken string `json:"auth_token"`
	}
	decode(t, rec, &body)
	return body.AuthToken, user.ID
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedMenuItem(t *testing.T, title, price string) models.MenuItem {
	t.Helper()
	ctx := context.Background()
	categories, _ := s.store.Categories().GetAll(ctx)
	var category models.Category
	if len(categories) > 0 {
		category = categories[0]
	} else {
		category = models.Category{Slug: "mains", Title: "Mains"}
		if err := s.store.Categories().Create(ctx, &category); err != nil {
			t.Fatalf("seed category: %v", err)
		}
	}
	item := models.MenuItem{Title: title, Price: decimal.RequireFromString(price), CategoryID: category.ID}
	if err := s.store.MenuItems().Create(ctx, &item); err != nil {
		t.Fatalf("seed menu item: %v", err)
	}
	return item
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/users/", "", map[string]string{"username": "alice", "password": "lemonade-123", "email": "alice@example.com"})
	expectStatus(t, rec, http.StatusCreated)
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Errorf("password hash leaked in %s", rec.Body)
	}

	rec = s.do(t, http.MethodPost, "/api/auth/token/login/", "", map[string]string{"username": "alice", "password": "nope"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodPost, "/api/auth/token/login/", "", map[string]string{"username": "alice", "password": "lemonade-123"})
	expectStatus(t, rec, http.StatusOK)
	var login struct {
		AuthToken string `json:"auth_token"`
	}
	decode(t, rec, &login)

	rec = s.do(t, http.MethodGet, "/api/auth/users/me/", login.AuthToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var me struct {
		Username string        `json:"username"`
		Roles    []access.Role `json:"roles"`
		Role     access.Role   `json:"role"`
	}
	decode(t, rec, &me)
	if me.Username != "alice" || len(me.Roles) != 0 || me.Role != access.Customer {
		t.Errorf("unexpected me response %+v", me)
	}

	rec = s.do(t, http.MethodPost, "/api/auth/token/logout/", login.AuthToken, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(t, http.MethodGet, "/api/auth/users/me/", login.AuthToken, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "alice")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"unknown token", "Token nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"token scheme", "Token " + token, http.StatusOK},
		{"bearer scheme", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/menu-items/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Token abc", "abc"},
		{"bearer abc", "abc"},
		{"Token  abc ", "abc"},
		{"abc", ""},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := tokenFromHeader(tt.header); got != tt.want {
			t.Errorf("tokenFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMenuItemEndpoints(t *testing.T) {
	s := newTestServer(t)
	customer, _ := s.login(t, "alice")
	manager, _ := s.login(t, "mia", access.Manager)
	item := s.seedMenuItem(t, "Greek salad", "12.50")
	s.seedMenuItem(t, "Bruschetta", "7.25")

	body := map[string]interface{}{"title": "Soup", "price": "5.00", "category": item.CategoryID}
	rec := s.do(t, http.MethodPost, "/api/menu-items/", customer, body)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(t, http.MethodPost, "/api/menu-items/", manager, body)
	expectStatus(t, rec, http.StatusCreated)

	rec = s.do(t, http.MethodPost, "/api/menu-items/", manager, map[string]interface{}{"title": "Soup", "price": "-1", "category": item.CategoryID})
	expectStatus(t, rec, http.StatusBadRequest)
	var verr struct {
		Field string `json:"field"`
	}
	decode(t, rec, &verr)
	if verr.Field != "price" {
		t.Errorf("field = %q, want price", verr.Field)
	}

	rec = s.do(t, http.MethodGet, "/api/menu-items/?ordering=price&perpage=2", customer, nil)
	expectStatus(t, rec, http.StatusOK)
	var page struct {
		Count   int64             `json:"count"`
		Results []models.MenuItem `json:"results"`
	}
	decode(t, rec, &page)
	if page.Count != 3 || len(page.Results) != 2 || page.Results[0].Title != "Soup" {
		t.Errorf("unexpected page %+v", page)
	}

	rec = s.do(t, http.MethodGet, "/api/menu-items/?price_min=abc", customer, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/menu-items/%d/", item.ID), manager, map[string]interface{}{"featured": true})
	expectStatus(t, rec, http.StatusOK)
	var patched models.MenuItem
	decode(t, rec, &patched)
	if !patched.Featured || patched.Title != "Greek salad" {
		t.Errorf("unexpected patched item %+v", patched)
	}

	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/menu-items/%d/", item.ID), manager, map[string]interface{}{"featured": false})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodGet, "/api/menu-items/abc/", customer, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/menu-items/%d/", item.ID), manager, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/menu-items/%d/", item.ID), customer, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCategoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	customer, _ := s.login(t, "alice")
	manager, _ := s.login(t, "mia", access.Manager)

	body := map[string]string{"slug": "drinks", "title": "Drinks"}
	expectStatus(t, s.do(t, http.MethodPost, "/api/categories/", customer, body), http.StatusForbidden)
	rec := s.do(t, http.MethodPost, "/api/categories/", manager, body)
	expectStatus(t, rec, http.StatusCreated)
	var category models.Category
	decode(t, rec, &category)

	expectStatus(t, s.do(t, http.MethodPost, "/api/categories/", manager, body), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodGet, "/api/categories/", customer, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d/", category.ID), manager, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d/", category.ID), customer, nil), http.StatusNotFound)
}

func TestCartAndOrderFlow(t *testing.T) {
	s := newTestServer(t)
	customer, customerID := s.login(t, "alice")
	manager, _ := s.login(t, "mia", access.Manager)
	crew, crewID := s.login(t, "carl", access.DeliveryCrew)
	salad := s.seedMenuItem(t, "Greek salad", "12.50")

	expectStatus(t, s.do(t, http.MethodPost, "/api/orders/", customer, nil), http.StatusBadRequest)

	rec := s.do(t, http.MethodPost, "/api/cart/menu-items/", customer, map[string]interface{}{"menuitem": salad.ID, "quantity": 2})
	expectStatus(t, rec, http.StatusCreated)
	rec = s.do(t, http.MethodPost, "/api/cart/menu-items/", customer, map[string]interface{}{"menuitem": salad.ID, "quantity": 0})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodGet, "/api/cart/menu-items/", customer, nil)
	expectStatus(t, rec, http.StatusOK)
	var lines []models.CartLine
	decode(t, rec, &lines)
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", lines)
	}

	rec = s.do(t, http.MethodPost, "/api/orders/", customer, nil)
	expectStatus(t, rec, http.StatusCreated)
	var order models.Order
	decode(t, rec, &order)
	if order.UserID != customerID || !order.Total.Equal(decimal.RequireFromString("25.00")) || len(order.Items) != 1 {
		t.Fatalf("unexpected order %+v", order)
	}

	rec = s.do(t, http.MethodGet, "/api/cart/menu-items/", customer, nil)
	decode(t, rec, &lines)
	if len(lines) != 0 {
		t.Errorf("cart should be empty after ordering, got %+v", lines)
	}

	orderPath := fmt.Sprintf("/api/orders/%d/", order.ID)
	expectStatus(t, s.do(t, http.MethodGet, orderPath, crew, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPatch, orderPath, customer, map[string]string{"status": "delivered"}), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, orderPath, customer, nil), http.StatusForbidden)

	rec = s.do(t, http.MethodPatch, orderPath, manager, fmt.Sprintf(`{"delivery_crew": %d}`, crewID))
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, http.MethodPatch, orderPath, crew, `{"status": "delivered", "total": "0.00"}`)
	expectStatus(t, rec, http.StatusForbidden)
	rec = s.do(t, http.MethodPut, orderPath, crew, `{"status": "delivered"}`)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &order)
	if order.Status != models.OrderDelivered {
		t.Errorf("status = %s, want delivered", order.Status)
	}

	rec = s.do(t, http.MethodPatch, orderPath, manager, `{"status": "pending"}`)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodGet, "/api/orders/?status=delivered", crew, nil)
	expectStatus(t, rec, http.StatusOK)
	var page struct {
		Count int64 `json:"count"`
	}
	decode(t, rec, &page)
	if page.Count != 1 {
		t.Errorf("crew should see 1 delivered order, got %d", page.Count)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/orders/?date=yesterday", manager, nil), http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodDelete, orderPath, manager, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, orderPath, manager, nil), http.StatusNotFound)
}

func TestGroupEndpoints(t *testing.T) {
	s := newTestServer(t)
	manager, _ := s.login(t, "mia", access.Manager)
	customer, customerID := s.login(t, "alice")

	path := "/api/groups/delivery-crew/users/"
	expectStatus(t, s.do(t, http.MethodGet, path, customer, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodPost, path, manager, map[string]string{"username": "ghost"}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, path, manager, map[string]string{"username": "alice"}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, path, manager, map[string]string{"username": "alice"}), http.StatusOK)

	rec := s.do(t, http.MethodGet, path, manager, nil)
	expectStatus(t, rec, http.StatusOK)
	var members []models.User
	decode(t, rec, &members)
	if len(members) != 1 || members[0].ID != customerID {
		t.Errorf("unexpected members %+v", members)
	}

	member := fmt.Sprintf("%s%d/", path, customerID)
	expectStatus(t, s.do(t, http.MethodDelete, member, manager, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, member, manager, nil), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodDelete, path+"999/", manager, nil), http.StatusNotFound)

	rec = s.do(t, http.MethodGet, path, manager, nil)
	expectStatus(t, rec, http.StatusOK)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty group should render as [], got %s", body)
	}

	rec = s.do(t, http.MethodGet, "/api/groups/manager/users/", manager, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &members)
	if len(members) != 1 || members[0].Username != "mia" {
		t.Errorf("unexpected managers %+v", members)
	}
}

func TestHealth(t *testing.T) {
	ok := newTestServer(t, HealthCheck{Name: "store", Check: func(ctx context.Context) error { return nil }})
	expectStatus(t, ok.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)

	down := newTestServer(t, HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }})
	rec := down.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	decode(t, rec, &body)
	if body.Checks["redis"] != "connection refused" {
		t.Errorf("unexpected checks %+v", body.Checks)
	}
}
