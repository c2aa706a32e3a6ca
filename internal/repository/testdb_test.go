package repository

import (
	"context"
	"testing"

	"little_lemon/internal/access"
	"little_lemon/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with the full schema.
// SQLite has no row locks, so its dialect drops FOR UPDATE; the locking SQL is
// checked separately against the postgres dialect.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)&_time_format=sqlite"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Every connection to :memory: is a new database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.RoleMembership{},
		&models.Category{},
		&models.MenuItem{},
		&models.CartLine{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recordSQL opens a postgres-dialect session that builds statements without
// a server and records each query and insert it would have run.
func recordSQL(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=lemon dbname=little_lemon sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres dry run: %v", err)
	}

	var statements []string
	record := func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}
	if err := db.Callback().Query().After("gorm:query").Register("test:record_query", record); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	if err := db.Callback().Create().After("gorm:create").Register("test:record_create", record); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	return db, &statements
}

type testData struct {
	alice, bob, carl models.User
	mains, desserts  models.Category
	salad, soup, pie models.MenuItem
}

func seedTestData(t *testing.T, db *gorm.DB) testData {
	t.Helper()
	ctx := context.Background()
	var d testData

	users := NewUserRepository(db)
	d.alice = models.User{Username: "alice", PasswordHash: "x"}
	d.bob = models.User{Username: "bob", PasswordHash: "x"}
	d.carl = models.User{Username: "carl", PasswordHash: "x"}
	for _, u := range []*models.User{&d.alice, &d.bob, &d.carl} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", u.Username, err)
		}
	}
	if _, err := NewRoleRepository(db).Add(ctx, d.carl.ID, access.DeliveryCrew); err != nil {
		t.Fatalf("grant delivery crew: %v", err)
	}

	categories := NewCategoryRepository(db)
	d.mains = models.Category{Slug: "mains", Title: "Mains"}
	d.desserts = models.Category{Slug: "desserts", Title: "Desserts"}
	for _, c := range []*models.Category{&d.mains, &d.desserts} {
		if err := categories.Create(ctx, c); err != nil {
			t.Fatalf("create category %s: %v", c.Slug, err)
		}
	}

	items := NewMenuItemRepository(db)
	d.salad = models.MenuItem{Title: "Greek Salad", Price: decimal.RequireFromString("12.50"), Featured: true, CategoryID: d.mains.ID}
	d.soup = models.MenuItem{Title: "Lentil soup", Price: decimal.RequireFromString("8.00"), CategoryID: d.mains.ID}
	d.pie = models.MenuItem{Title: "Lemon pie", Price: decimal.RequireFromString("6.25"), CategoryID: d.desserts.ID}
	for _, item := range []*models.MenuItem{&d.salad, &d.soup, &d.pie} {
		if err := items.Create(ctx, item); err != nil {
			t.Fatalf("create menu item %s: %v", item.Title, err)
		}
	}
	return d
}

func cartLine(user models.User, item models.MenuItem, qty int) *models.CartLine {
	return &models.CartLine{
		UserID:     user.ID,
		MenuItemID: item.ID,
		Quantity:   qty,
		UnitPrice:  item.Price,
		Price:      models.LinePrice(qty, item.Price),
	}
}
