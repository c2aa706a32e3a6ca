package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"little_lemon/internal/access"
	"little_lemon/internal/messaging"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"
	"little_lemon/internal/repository/memory"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event messaging.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	kv     *memory.KV
	events *recordingPublisher

	users  UserService
	roles  RoleService
	menu   MenuService
	cart   CartService
	orders OrderService

	category models.Category
}

var testPagination = Pagination{DefaultSize: 20, MaxSize: 100}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	kv := memory.NewKV()
	events := &recordingPublisher{}
	log := zap.NewNop()

	f := &fixture{
		store:  store,
		kv:     kv,
		events: events,
		users:  NewUserService(store.Users(), kv, time.Hour, log),
		roles:  NewRoleService(store.Roles(), store.Users(), log),
		menu:   NewMenuService(store.Categories(), store.MenuItems(), kv, time.Minute, testPagination, log),
		cart:   NewCartService(store.Cart(), store.MenuItems()),
		orders: NewOrderService(store.Orders(), store.Roles(), store.Transactor(), events, testPagination, log),
	}

	f.category = models.Category{Slug: "mains", Title: "Mains"}
	if err := store.Categories().Create(context.Background(), &f.category); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return f
}

// principal registers username and grants it roles directly in the store.
func (f *fixture) principal(t *testing.T, username string, roles ...access.Role) access.Principal {
	t.Helper()
	ctx := context.Background()
	user, err := f.users.Register(ctx, RegisterInput{Username: username, Password: "lemonade-123"})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	for _, role := range roles {
		if _, err := f.store.Roles().Add(ctx, user.ID, role); err != nil {
			t.Fatalf("grant %s to %s: %v", role, username, err)
		}
	}
	p, err := f.roles.Resolve(ctx, user)
	if err != nil {
		t.Fatalf("resolve %s: %v", username, err)
	}
	return p
}

func (f *fixture) menuItem(t *testing.T, title, price string) models.MenuItem {
	t.Helper()
	item := models.MenuItem{Title: title, Price: decimal.RequireFromString(price), CategoryID: f.category.ID}
	if err := f.store.MenuItems().Create(context.Background(), &item); err != nil {
		t.Fatalf("seed menu item %s: %v", title, err)
	}
	return item
}

func (f *fixture) addToCart(t *testing.T, actor access.Principal, item models.MenuItem, qty int) {
	t.Helper()
	if _, err := f.cart.Add(context.Background(), actor, AddToCartInput{MenuItemID: item.ID, Quantity: qty}); err != nil {
		t.Fatalf("add %s to cart: %v", item.Title, err)
	}
}

// placeOrder fills actor's cart with one item and places the order.
func (f *fixture) placeOrder(t *testing.T, actor access.Principal, item models.MenuItem) *models.Order {
	t.Helper()
	f.addToCart(t, actor, item, 1)
	order, err := f.orders.PlaceOrder(context.Background(), actor)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Field != field {
		t.Fatalf("expected validation error on %q, got %q (%s)", field, verr.Field, verr.Message)
	}
}

type failingDeleteCart struct {
	repository.CartRepository
}

func (failingDeleteCart) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	return 0, errors.New("connection reset")
}

// failingTransactor runs the real transaction but fails the cart delete.
type failingTransactor struct {
	inner repository.Transactor
}

func (t failingTransactor) Transaction(ctx context.Context, fn func(cart repository.CartRepository, orders repository.OrderRepository) error) error {
	return t.inner.Transaction(ctx, func(cart repository.CartRepository, orders repository.OrderRepository) error {
		return fn(failingDeleteCart{cart}, orders)
	})
}

// inflatingTransactor reports every locked cart line at price.
type inflatingTransactor struct {
	inner repository.Transactor
	price decimal.Decimal
}

type inflatedCart struct {
	repository.CartRepository
	price decimal.Decimal
}

func (c inflatedCart) LockByUser(ctx context.Context, userID uint) ([]models.CartLine, error) {
	lines, err := c.CartRepository.LockByUser(ctx, userID)
	for i := range lines {
		lines[i].Price = c.price
	}
	return lines, err
}

func (t inflatingTransactor) Transaction(ctx context.Context, fn func(cart repository.CartRepository, orders repository.OrderRepository) error) error {
	return t.inner.Transaction(ctx, func(cart repository.CartRepository, orders repository.OrderRepository) error {
		return fn(inflatedCart{cart, t.price}, orders)
	})
}
