package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"little_lemon/internal/config"
	"little_lemon/internal/database"
	"little_lemon/internal/handlers"
	"little_lemon/internal/logger"
	"little_lemon/internal/messaging"
	"little_lemon/internal/migrations"
	"little_lemon/internal/redis"
	"little_lemon/internal/repository"
	"little_lemon/internal/repository/memory"
	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// backend groups the storage the services run on.
type backend struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	categories repository.CategoryRepository
	menuItems  repository.MenuItemRepository
	cart       repository.CartRepository
	orders     repository.OrderRepository
	tx         repository.Transactor
	sessions   services.SessionStore
	cache      services.Cache
	checks     []handlers.HealthCheck
	closers    []func() error
}

func (b *backend) close() {
	for _, c := range b.closers {
		_ = c()
	}
}

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	admin := migrations.Admin{Username: cfg.AdminUsername, Email: cfg.AdminEmail, Password: cfg.AdminPassword}

	var (
		store *backend
		err   error
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		store, err = openPostgres(ctx, cfg, admin, log)
	case config.StorageMemory:
		store, err = openMemory(ctx, admin, log)
	default:
		err = fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if err != nil {
		return err
	}
	defer store.close()

	var events services.EventPublisher = messaging.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		publisher, err := messaging.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer publisher.Close()
		events = publisher
	} else {
		log.Info("RABBITMQ_URL not set, order events are disabled")
	}

	pagination := services.Pagination{DefaultSize: cfg.DefaultPageSize, MaxSize: cfg.MaxPageSize}

	userService := services.NewUserService(store.users, store.sessions, cfg.SessionTTL(), log)
	roleService := services.NewRoleService(store.roles, store.users, log)
	menuService := services.NewMenuService(store.categories, store.menuItems, store.cache, cfg.CacheDuration(), pagination, log)
	cartService := services.NewCartService(store.cart, store.menuItems)
	orderService := services.NewOrderService(store.orders, store.roles, store.tx, events, pagination, log)

	apiHandler := handlers.NewAPIHandler(userService, roleService, menuService, cartService, orderService, log, store.checks...)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(log))
	apiHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openPostgres(ctx context.Context, cfg *config.Config, admin migrations.Admin, log *zap.Logger) (*backend, error) {
	db, err := database.Initialize(cfg.DatabaseURL, cfg.DBLogLevel, log)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunMigrations(ctx, db, admin, log); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &backend{
		users:      repository.NewUserRepository(db),
		roles:      repository.NewRoleRepository(db),
		categories: repository.NewCategoryRepository(db),
		menuItems:  repository.NewMenuItemRepository(db),
		cart:       repository.NewCartRepository(db),
		orders:     repository.NewOrderRepository(db),
		tx:         repository.NewTransactor(db),
		sessions:   redisClient,
		cache:      redisClient,
		checks: []handlers.HealthCheck{
			{Name: "postgres", Check: sqlDB.PingContext},
			{Name: "redis", Check: redisClient.Ping},
		},
		closers: []func() error{redisClient.Close, sqlDB.Close},
	}, nil
}

// openMemory runs everything in process with the sample menu loaded. Data is
// lost on restart.
func openMemory(ctx context.Context, admin migrations.Admin, log *zap.Logger) (*backend, error) {
	store := memory.NewStore()
	kv := memory.NewKV()

	if err := migrations.SeedAdmin(ctx, store.Users(), store.Roles(), admin, log); err != nil {
		return nil, err
	}
	if err := migrations.SeedMenu(ctx, store.Categories(), store.MenuItems(), log); err != nil {
		return nil, err
	}
	log.Warn("using in-memory storage, data will not survive a restart")

	return &backend{
		users:      store.Users(),
		roles:      store.Roles(),
		categories: store.Categories(),
		menuItems:  store.MenuItems(),
		cart:       store.Cart(),
		orders:     store.Orders(),
		tx:         store.Transactor(),
		sessions:   kv,
		cache:      kv,
	}, nil
}
