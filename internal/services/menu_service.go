package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"little_lemon/internal/access"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const menuCachePrefix = "menu:"

var maxPrice = decimal.RequireFromString("9999.99")

// Cache is the JSON cache used for menu listings. *redis.Client implements it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Pagination bounds page sizes requested by clients.
type Pagination struct {
	DefaultSize int
	MaxSize     int
}

func (p Pagination) normalize(page repository.Page) repository.Page {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size <= 0 {
		page.Size = p.DefaultSize
	}
	if p.MaxSize > 0 && page.Size > p.MaxSize {
		page.Size = p.MaxSize
	}
	return page
}

type CategoryInput struct {
	Slug  string `json:"slug" binding:"required"`
	Title string `json:"title" binding:"required"`
}

// MenuItemInput carries a create or update payload. Nil fields were not sent.
type MenuItemInput struct {
	Title      *string          `json:"title"`
	Price      *decimal.Decimal `json:"price"`
	Featured   *bool            `json:"featured"`
	CategoryID *uint            `json:"category"`
}

type MenuItemPage struct {
	Count   int64             `json:"count"`
	Results []models.MenuItem `json:"results"`
}

type MenuService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	CreateCategory(ctx context.Context, actor access.Principal, input CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, actor access.Principal, id uint) error

	ListMenuItems(ctx context.Context, filter repository.MenuItemFilter) (*MenuItemPage, error)
	GetMenuItem(ctx context.Context, id uint) (*models.MenuItem, error)
	CreateMenuItem(ctx context.Context, actor access.Principal, input MenuItemInput) (*models.MenuItem, error)
	// UpdateMenuItem replaces the item when partial is false, otherwise it
	// only applies the fields present in input.
	UpdateMenuItem(ctx context.Context, actor access.Principal, id uint, input MenuItemInput, partial bool) (*models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, actor access.Principal, id uint) error
}

type menuService struct {
	categoryRepo repository.CategoryRepository
	menuItemRepo repository.MenuItemRepository
	cache        Cache
	cacheTTL     time.Duration
	pagination   Pagination
	logger       *zap.Logger
}

func NewMenuService(
	categoryRepo repository.CategoryRepository,
	menuItemRepo repository.MenuItemRepository,
	cache Cache,
	cacheTTL time.Duration,
	pagination Pagination,
	log *zap.Logger,
) MenuService {
	return &menuService{
		categoryRepo: categoryRepo,
		menuItemRepo: menuItemRepo,
		cache:        cache,
		cacheTTL:     cacheTTL,
		pagination:   pagination,
		logger:       log,
	}
}

func (s *menuService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categoryRepo.GetAll(ctx)
}

func (s *menuService) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "category")
	}
	return category, nil
}

func (s *menuService) CreateCategory(ctx context.Context, actor access.Principal, input CategoryInput) (*models.Category, error) {
	if !actor.Can(access.ManageCategories) {
		return nil, forbidden("you cannot add categories")
	}
	slug := strings.TrimSpace(input.Slug)
	title := strings.TrimSpace(input.Title)
	if slug == "" {
		return nil, invalid("slug", "this field is required")
	}
	if title == "" {
		return nil, invalid("title", "this field is required")
	}

	category := &models.Category{Slug: slug, Title: title}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("slug", "category with this slug already exists")
		}
		return nil, err
	}
	s.invalidateMenuCache(ctx)
	return category, nil
}

func (s *menuService) DeleteCategory(ctx context.Context, actor access.Principal, id uint) error {
	if !actor.Can(access.ManageCategories) {
		return forbidden("you cannot delete categories")
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return invalid("", "category still has menu items")
		}
		return notFound(err, "category")
	}
	s.invalidateMenuCache(ctx)
	return nil
}

func (s *menuService) ListMenuItems(ctx context.Context, filter repository.MenuItemFilter) (*MenuItemPage, error) {
	if filter.Ordering != "" {
		if _, ok := repository.MenuItemOrderings[filter.Ordering]; !ok {
			return nil, invalid("ordering", fmt.Sprintf("unsupported ordering %q", filter.Ordering))
		}
	}
	filter.Page = s.pagination.normalize(filter.Page)

	cacheKey, keyErr := menuCacheKey(filter)
	if keyErr == nil {
		var cached MenuItemPage
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	items, count, err := s.menuItemRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	page := &MenuItemPage{Count: count, Results: items}

	if keyErr == nil {
		if err := s.cache.SetJSON(ctx, cacheKey, page, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache menu listing", zap.Error(err))
		}
	}
	return page, nil
}

func menuCacheKey(filter repository.MenuItemFilter) (string, error) {
	data, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return menuCachePrefix + hex.EncodeToString(sum[:]), nil
}

func (s *menuService) invalidateMenuCache(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, menuCachePrefix); err != nil {
		s.logger.Warn("failed to invalidate menu cache", zap.Error(err))
	}
}

func (s *menuService) GetMenuItem(ctx context.Context, id uint) (*models.MenuItem, error) {
	item, err := s.menuItemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "menu item")
	}
	return item, nil
}

func (s *menuService) CreateMenuItem(ctx context.Context, actor access.Principal, input MenuItemInput) (*models.MenuItem, error) {
	if !actor.Can(access.AddMenuItem) {
		return nil, forbidden("you cannot add menu items")
	}

	item := &models.MenuItem{}
	if err := s.applyMenuItemInput(ctx, item, input, false); err != nil {
		return nil, err
	}
	if err := s.menuItemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.invalidateMenuCache(ctx)
	s.logger.Info("menu item created", zap.Uint("menu_item_id", item.ID), zap.Uint("user_id", actor.UserID))
	return item, nil
}

func (s *menuService) UpdateMenuItem(ctx context.Context, actor access.Principal, id uint, input MenuItemInput, partial bool) (*models.MenuItem, error) {
	if !actor.Can(access.ChangeMenuItem) {
		return nil, forbidden("you cannot change menu items")
	}

	item, err := s.menuItemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "menu item")
	}
	if err := s.applyMenuItemInput(ctx, item, input, partial); err != nil {
		return nil, err
	}
	if err := s.menuItemRepo.Update(ctx, item); err != nil {
		return nil, notFound(err, "menu item")
	}

	s.invalidateMenuCache(ctx)
	return item, nil
}

func (s *menuService) DeleteMenuItem(ctx context.Context, actor access.Principal, id uint) error {
	if !actor.Can(access.DeleteMenuItem) {
		return forbidden("you cannot delete menu items")
	}
	if err := s.menuItemRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return invalid("", "menu item is referenced by existing orders")
		}
		return notFound(err, "menu item")
	}

	s.invalidateMenuCache(ctx)
	s.logger.Info("menu item deleted", zap.Uint("menu_item_id", id), zap.Uint("user_id", actor.UserID))
	return nil
}

// applyMenuItemInput validates input and copies it onto item. Without
// partial, title, price and category are required.
func (s *menuService) applyMenuItemInput(ctx context.Context, item *models.MenuItem, input MenuItemInput, partial bool) error {
	if !partial {
		switch {
		case input.Title == nil:
			return invalid("title", "this field is required")
		case input.Price == nil:
			return invalid("price", "this field is required")
		case input.CategoryID == nil:
			return invalid("category", "this field is required")
		}
		if input.Featured == nil {
			featured := false
			input.Featured = &featured
		}
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return invalid("title", "this field may not be blank")
		}
		if len(title) > 255 {
			return invalid("title", "ensure this field has no more than 255 characters")
		}
		item.Title = title
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return err
		}
		item.Price = *input.Price
	}
	if input.Featured != nil {
		item.Featured = *input.Featured
	}
	if input.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalid("category", fmt.Sprintf("invalid pk \"%d\" - object does not exist", *input.CategoryID))
			}
			return err
		}
		item.CategoryID = category.ID
		item.Category = *category
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return invalid("price", "must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return invalid("price", "ensure that there are no more than 2 decimal places")
	}
	if price.GreaterThan(maxPrice) {
		return invalid("price", "ensure that there are no more than 6 digits in total")
	}
	return nil
}
