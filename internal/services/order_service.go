package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"little_lemon/internal/access"
	"little_lemon/internal/messaging"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher receives order lifecycle events. *messaging.Publisher
// implements it.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event messaging.OrderEvent) error
}

type OrderPage struct {
	Count   int64          `json:"count"`
	Results []models.Order `json:"results"`
}

type OrderService interface {
	// PlaceOrder turns the caller's cart into an order and empties the cart
	// in the same transaction.
	PlaceOrder(ctx context.Context, actor access.Principal) (*models.Order, error)
	ListOrders(ctx context.Context, actor access.Principal, filter repository.OrderFilter) (*OrderPage, error)
	GetOrder(ctx context.Context, actor access.Principal, id uint) (*models.Order, error)
	// UpdateOrder applies a JSON object payload. The set of keys present
	// decides whether the caller may perform the update.
	UpdateOrder(ctx context.Context, actor access.Principal, id uint, payload map[string]json.RawMessage) (*models.Order, error)
	DeleteOrder(ctx context.Context, actor access.Principal, id uint) error
}

// Keys a manager may change, and keys rendered on orders that nobody may.
var (
	managerOrderFields = map[string]bool{"status": true, "delivery_crew": true}
	readOnlyOrderField = map[string]bool{"id": true, "user": true, "total": true, "date": true, "order_items": true}
)

type orderService struct {
	orderRepo  repository.OrderRepository
	roleRepo   repository.RoleRepository
	tx         repository.Transactor
	events     EventPublisher
	pagination Pagination
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	roleRepo repository.RoleRepository,
	tx repository.Transactor,
	events EventPublisher,
	pagination Pagination,
	log *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		roleRepo:   roleRepo,
		tx:         tx,
		events:     events,
		pagination: pagination,
		logger:     log,
		now:        time.Now,
	}
}

// scopeFor limits what actor can see: roles that may view all orders see
// everything, delivery crew their assigned orders, customers their own.
func scopeFor(actor access.Principal) repository.OrderScope {
	id := actor.UserID
	role := actor.Primary()
	switch {
	case access.Can(role, access.ViewAllOrders):
		return repository.OrderScope{}
	case access.Can(role, access.UpdateOrderStatus):
		return repository.OrderScope{DeliveryCrewID: &id}
	default:
		return repository.OrderScope{OwnerID: &id}
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, actor access.Principal) (*models.Order, error) {
	if !actor.Can(access.PlaceOrder) {
		return nil, forbidden("you cannot place orders")
	}

	var order *models.Order
	err := s.tx.Transaction(ctx, func(cart repository.CartRepository, orders repository.OrderRepository) error {
		lines, err := cart.LockByUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return invalid("", "your cart is empty")
		}

		order = buildOrder(actor.UserID, lines, s.now())
		if order.Total.GreaterThan(models.MaxOrderTotal) {
			return invalid("", "the order total is too large, please remove some items")
		}
		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		deleted, err := cart.DeleteByUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if deleted != int64(len(lines)) {
			return invalid("", "your cart changed while the order was being placed, please try again")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)))
	s.publish(ctx, messaging.OrderPlaced, order)
	return order, nil
}

// buildOrder snapshots cart lines into order items. The total is the sum of
// the line prices as they were in the cart.
func buildOrder(userID uint, lines []models.CartLine, now time.Time) *models.Order {
	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		total = total.Add(line.Price)
		items = append(items, models.OrderItem{
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Price:      line.Price,
		})
	}
	return &models.Order{
		UserID: userID,
		Status: models.OrderPending,
		Total:  total,
		Date:   now,
		Items:  items,
	}
}

func (s *orderService) ListOrders(ctx context.Context, actor access.Principal, filter repository.OrderFilter) (*OrderPage, error) {
	if filter.Ordering != "" {
		if _, ok := repository.OrderOrderings[filter.Ordering]; !ok {
			return nil, invalid("ordering", fmt.Sprintf("unsupported ordering %q", filter.Ordering))
		}
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("%q is not a valid choice", *filter.Status))
	}
	filter.Page = s.pagination.normalize(filter.Page)

	orders, count, err := s.orderRepo.List(ctx, scopeFor(actor), filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{Count: count, Results: orders}, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor access.Principal, id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id, scopeFor(actor))
	if err != nil {
		return nil, notFound(err, "order")
	}
	return order, nil
}

// canUpdateOrders is true for roles allowed to touch orders at all.
func canUpdateOrders(role access.Role) bool {
	return access.Can(role, access.ChangeOrder) || access.Can(role, access.UpdateOrderStatus)
}

// authorizeOrderUpdate decides from the payload keys alone whether actor may
// update an order.
func authorizeOrderUpdate(actor access.Principal, fields []string) error {
	role := actor.Primary()
	switch {
	case access.Can(role, access.ChangeOrder):
		if len(fields) == 0 {
			return invalid("", "no fields to update")
		}
		for _, field := range fields {
			if readOnlyOrderField[field] {
				return invalid(field, "this field is read-only")
			}
			if !managerOrderFields[field] {
				return invalid(field, "unknown field")
			}
			if field == "delivery_crew" && !access.Can(role, access.AssignDelivery) {
				return forbidden("you cannot assign delivery crew")
			}
		}
		return nil
	case access.Can(role, access.UpdateOrderStatus):
		if len(fields) == 1 && fields[0] == "status" {
			return nil
		}
		return forbidden("you can only update the status")
	default:
		return forbidden("you do not have permission to update this order")
	}
}

func (s *orderService) UpdateOrder(ctx context.Context, actor access.Principal, id uint, payload map[string]json.RawMessage) (*models.Order, error) {
	if !canUpdateOrders(actor.Primary()) {
		return nil, forbidden("you do not have permission to update this order")
	}

	scope := scopeFor(actor)
	order, err := s.orderRepo.GetByID(ctx, id, scope)
	if err != nil {
		return nil, notFound(err, "order")
	}

	fields := make([]string, 0, len(payload))
	for field := range payload {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if err := authorizeOrderUpdate(actor, fields); err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	var events []string

	if raw, ok := payload["status"]; ok {
		var status models.OrderStatus
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, invalid("status", "must be a string")
		}
		if !status.Valid() {
			return nil, invalid("status", fmt.Sprintf("%q is not a valid choice", status))
		}
		if !order.Status.CanTransitionTo(status) {
			return nil, invalid("status", fmt.Sprintf("cannot move an order from %s back to %s", order.Status, status))
		}
		if status != order.Status {
			changes["status"] = string(status)
			events = append(events, messaging.OrderStatusChanged)
		}
	}

	if raw, ok := payload["delivery_crew"]; ok {
		var crewID *uint
		if err := json.Unmarshal(raw, &crewID); err != nil {
			return nil, invalid("delivery_crew", "must be a user id or null")
		}
		if crewID == nil {
			changes["delivery_crew_id"] = nil
		} else {
			if err := s.requireDeliveryCrew(ctx, *crewID); err != nil {
				return nil, err
			}
			changes["delivery_crew_id"] = *crewID
			events = append(events, messaging.OrderAssigned)
		}
	}

	if len(changes) > 0 {
		if err := s.orderRepo.Update(ctx, order.ID, changes); err != nil {
			return nil, notFound(err, "order")
		}
	}

	updated, err := s.orderRepo.GetByID(ctx, order.ID, scope)
	if err != nil {
		return nil, notFound(err, "order")
	}

	s.logger.Info("order updated",
		zap.Uint("order_id", updated.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Strings("fields", fields))
	for _, eventType := range events {
		s.publish(ctx, eventType, updated)
	}
	return updated, nil
}

func (s *orderService) requireDeliveryCrew(ctx context.Context, userID uint) error {
	roles, err := s.roleRepo.RolesOf(ctx, userID)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if role == access.DeliveryCrew {
			return nil
		}
	}
	return invalid("delivery_crew", fmt.Sprintf("user %d is not a member of the %s group", userID, access.DeliveryCrew))
}

func (s *orderService) DeleteOrder(ctx context.Context, actor access.Principal, id uint) error {
	if !actor.Can(access.DeleteOrder) {
		return forbidden("only managers can delete orders")
	}

	order, err := s.orderRepo.GetByID(ctx, id, repository.OrderScope{})
	if err != nil {
		return notFound(err, "order")
	}
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return notFound(err, "order")
	}

	s.logger.Info("order deleted", zap.Uint("order_id", id), zap.Uint("user_id", actor.UserID))
	s.publish(ctx, messaging.OrderDeleted, order)
	return nil
}

// publish is best effort: the order is already committed.
func (s *orderService) publish(ctx context.Context, eventType string, order *models.Order) {
	event := messaging.OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		DeliveryCrewID: order.DeliveryCrewID,
		Status:         string(order.Status),
		Total:          order.Total,
		OccurredAt:     s.now(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish order event",
			zap.String("type", eventType),
			zap.Uint("order_id", order.ID),
			zap.Error(err))
	}
}
