package services

import (
	"context"
	"errors"
	"fmt"

	"little_lemon/internal/access"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"

	"gorm.io/gorm"
)

type AddToCartInput struct {
	MenuItemID uint `json:"menuitem" binding:"required"`
	Quantity   int  `json:"quantity"`
}

type CartService interface {
	List(ctx context.Context, actor access.Principal) ([]models.CartLine, error)
	Add(ctx context.Context, actor access.Principal, input AddToCartInput) (*models.CartLine, error)
	// Clear empties the caller's cart. Clearing an empty cart is not an error.
	Clear(ctx context.Context, actor access.Principal) error
}

type cartService struct {
	cartRepo     repository.CartRepository
	menuItemRepo repository.MenuItemRepository
}

func NewCartService(cartRepo repository.CartRepository, menuItemRepo repository.MenuItemRepository) CartService {
	return &cartService{cartRepo: cartRepo, menuItemRepo: menuItemRepo}
}

func (s *cartService) List(ctx context.Context, actor access.Principal) ([]models.CartLine, error) {
	if !actor.Can(access.UseCart) {
		return nil, forbidden("you cannot use a cart")
	}
	lines, err := s.cartRepo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []models.CartLine{}
	}
	return lines, nil
}

func (s *cartService) Add(ctx context.Context, actor access.Principal, input AddToCartInput) (*models.CartLine, error) {
	if !actor.Can(access.UseCart) {
		return nil, forbidden("you cannot use a cart")
	}
	if input.Quantity <= 0 || input.Quantity > models.MaxLineQuantity {
		return nil, invalid("quantity", fmt.Sprintf("must be between 1 and %d", models.MaxLineQuantity))
	}

	item, err := s.menuItemRepo.GetByID(ctx, input.MenuItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("menuitem", fmt.Sprintf("invalid pk \"%d\" - object does not exist", input.MenuItemID))
		}
		return nil, err
	}

	line := &models.CartLine{
		UserID:     actor.UserID,
		MenuItemID: item.ID,
		Quantity:   input.Quantity,
		UnitPrice:  item.Price,
		Price:      models.LinePrice(input.Quantity, item.Price),
	}
	if err := s.cartRepo.Add(ctx, line); err != nil {
		if errors.Is(err, repository.ErrCartLineFull) {
			return nil, invalid("quantity", fmt.Sprintf("a cart line cannot hold more than %d", models.MaxLineQuantity))
		}
		return nil, err
	}
	return line, nil
}

func (s *cartService) Clear(ctx context.Context, actor access.Principal) error {
	if !actor.Can(access.UseCart) {
		return forbidden("you cannot use a cart")
	}
	_, err := s.cartRepo.DeleteByUser(ctx, actor.UserID)
	return err
}
