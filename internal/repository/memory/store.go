// Package memory is an in-process implementation of the repository
// interfaces, used for tests and STORAGE_DRIVER=memory runs. It mimics the
// gorm/postgres error behaviour the services rely on.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"little_lemon/internal/access"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"

	"gorm.io/gorm"
)

type dataset struct {
	seq        map[string]uint
	users      map[uint]models.User
	roles      map[uint]map[access.Role]bool
	categories map[uint]models.Category
	menuItems  map[uint]models.MenuItem
	cart       map[uint]models.CartLine
	orders     map[uint]models.Order
}

func newDataset() *dataset {
	return &dataset{
		seq:        map[string]uint{},
		users:      map[uint]models.User{},
		roles:      map[uint]map[access.Role]bool{},
		categories: map[uint]models.Category{},
		menuItems:  map[uint]models.MenuItem{},
		cart:       map[uint]models.CartLine{},
		orders:     map[uint]models.Order{},
	}
}

func (d *dataset) next(table string) uint {
	d.seq[table]++
	return d.seq[table]
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.seq {
		c.seq[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.roles {
		set := map[access.Role]bool{}
		for r := range v {
			set[r] = true
		}
		c.roles[k] = set
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.menuItems {
		c.menuItems[k] = v
	}
	for k, v := range d.cart {
		c.cart[k] = v
	}
	for k, v := range d.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	return c
}

// Store holds every table behind one mutex.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

func NewStore() *Store {
	return &Store{data: newDataset()}
}

// view runs against the live dataset under the lock, or against a
// transaction's private copy when tx is set.
type view struct {
	s  *Store
	tx *dataset
}

func (v view) with(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.data)
}

func (s *Store) Users() repository.UserRepository { return userRepo{view{s: s}} }
func (s *Store) Roles() repository.RoleRepository { return roleRepo{view{s: s}} }
func (s *Store) Categories() repository.CategoryRepository { return categoryRepo{view{s: s}} }
func (s *Store) MenuItems() repository.MenuItemRepository { return menuItemRepo{view{s: s}} }
func (s *Store) Cart() repository.CartRepository { return cartRepo{view{s: s}} }
func (s *Store) Orders() repository.OrderRepository { return orderRepo{view{s: s}} }
func (s *Store) Transactor() repository.Transactor { return s }

// Transaction serializes with every other store call. fn works on a copy
// that replaces the live data only when fn succeeds.
func (s *Store) Transaction(ctx context.Context, fn func(cart repository.CartRepository, orders repository.OrderRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	v := view{s: s, tx: tx}
	if err := fn(cartRepo{v}, orderRepo{v}); err != nil {
		return err
	}
	s.data = tx
	return nil
}

type userRepo struct{ view }

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	return r.with(func(d *dataset) error {
		for _, u := range d.users {
			if u.Username == user.Username {
				return gorm.ErrDuplicatedKey
			}
		}
		user.ID = d.next("users")
		now := time.Now()
		user.CreatedAt, user.UpdatedAt = now, now
		d.users[user.ID] = *user
		return nil
	})
}

func (r userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var out *models.User
	err := r.with(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := r.with(func(d *dataset) error {
		for _, u := range d.users {
			if u.Username == username {
				u := u
				out = &u
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

type roleRepo struct{ view }

func (r roleRepo) RolesOf(ctx context.Context, userID uint) ([]access.Role, error) {
	var roles []access.Role
	err := r.with(func(d *dataset) error {
		for role := range d.roles[userID] {
			roles = append(roles, role)
		}
		return nil
	})
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, err
}

func (r roleRepo) Members(ctx context.Context, role access.Role) ([]models.User, error) {
	users := []models.User{}
	err := r.with(func(d *dataset) error {
		for userID, set := range d.roles {
			if set[role] {
				if u, ok := d.users[userID]; ok {
					users = append(users, u)
				}
			}
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, err
}

func (r roleRepo) Add(ctx context.Context, userID uint, role access.Role) (bool, error) {
	added := false
	err := r.with(func(d *dataset) error {
		if _, ok := d.users[userID]; !ok {
			return gorm.ErrForeignKeyViolated
		}
		if d.roles[userID] == nil {
			d.roles[userID] = map[access.Role]bool{}
		}
		if !d.roles[userID][role] {
			d.roles[userID][role] = true
			added = true
		}
		return nil
	})
	return added, err
}

func (r roleRepo) Remove(ctx context.Context, userID uint, role access.Role) (bool, error) {
	removed := false
	err := r.with(func(d *dataset) error {
		if d.roles[userID][role] {
			delete(d.roles[userID], role)
			removed = true
		}
		return nil
	})
	return removed, err
}

type categoryRepo struct{ view }

func (r categoryRepo) Create(ctx context.Context, category *models.Category) error {
	return r.with(func(d *dataset) error {
		for _, c := range d.categories {
			if c.Slug == category.Slug {
				return gorm.ErrDuplicatedKey
			}
		}
		category.ID = d.next("categories")
		d.categories[category.ID] = *category
		return nil
	})
}

func (r categoryRepo) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var out *models.Category
	err := r.with(func(d *dataset) error {
		c, ok := d.categories[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r categoryRepo) GetAll(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := r.with(func(d *dataset) error {
		for _, c := range d.categories {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r categoryRepo) Delete(ctx context.Context, id uint) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.categories[id]; !ok {
			return gorm.ErrRecordNotFound
		}
		for _, item := range d.menuItems {
			if item.CategoryID == id {
				return gorm.ErrForeignKeyViolated
			}
		}
		delete(d.categories, id)
		return nil
	})
}

type menuItemRepo struct{ view }

func (r menuItemRepo) Create(ctx context.Context, item *models.MenuItem) error {
	return r.with(func(d *dataset) error {
		category, ok := d.categories[item.CategoryID]
		if !ok {
			return gorm.ErrForeignKeyViolated
		}
		item.ID = d.next("menu_items")
		item.Category = category
		d.menuItems[item.ID] = *item
		return nil
	})
}

func (r menuItemRepo) GetByID(ctx context.Context, id uint) (*models.MenuItem, error) {
	var out *models.MenuItem
	err := r.with(func(d *dataset) error {
		item, ok := d.menuItems[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		item.Category = d.categories[item.CategoryID]
		out = &item
		return nil
	})
	return out, err
}

func (r menuItemRepo) List(ctx context.Context, filter repository.MenuItemFilter) ([]models.MenuItem, int64, error) {
	var items []models.MenuItem
	err := r.with(func(d *dataset) error {
		for _, item := range d.menuItems {
			if !matchMenuItem(item, filter) {
				continue
			}
			item.Category = d.categories[item.CategoryID]
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch filter.Ordering {
		case "price":
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case "-price":
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case "-title":
			if a.Title != b.Title {
				return a.Title > b.Title
			}
		}
		return a.ID < b.ID
	})

	count := int64(len(items))
	return paginate(items, filter.Page), count, nil
}

func matchMenuItem(item models.MenuItem, filter repository.MenuItemFilter) bool {
	if filter.CategoryID != nil && item.CategoryID != *filter.CategoryID {
		return false
	}
	if filter.Price != nil && !item.Price.Equal(*filter.Price) {
		return false
	}
	if filter.MinPrice != nil && item.Price.LessThan(*filter.MinPrice) {
		return false
	}
	if filter.MaxPrice != nil && item.Price.GreaterThan(*filter.MaxPrice) {
		return false
	}
	if filter.Featured != nil && item.Featured != *filter.Featured {
		return false
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(item.Title), strings.ToLower(filter.Search)) {
		return false
	}
	return true
}

func (r menuItemRepo) Update(ctx context.Context, item *models.MenuItem) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.menuItems[item.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		category, ok := d.categories[item.CategoryID]
		if !ok {
			return gorm.ErrForeignKeyViolated
		}
		item.Category = category
		d.menuItems[item.ID] = *item
		return nil
	})
}

func (r menuItemRepo) Delete(ctx context.Context, id uint) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.menuItems[id]; !ok {
			return gorm.ErrRecordNotFound
		}
		for _, order := range d.orders {
			for _, oi := range order.Items {
				if oi.MenuItemID == id {
					return gorm.ErrForeignKeyViolated
				}
			}
		}
		delete(d.menuItems, id)
		for lineID, line := range d.cart {
			if line.MenuItemID == id {
				delete(d.cart, lineID)
			}
		}
		return nil
	})
}

type cartRepo struct{ view }

func (r cartRepo) ListByUser(ctx context.Context, userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.with(func(d *dataset) error {
		lines = d.cartOf(userID, true)
		return nil
	})
	return lines, err
}

func (d *dataset) cartOf(userID uint, withItems bool) []models.CartLine {
	var lines []models.CartLine
	for _, line := range d.cart {
		if line.UserID != userID {
			continue
		}
		if withItems {
			if item, ok := d.menuItems[line.MenuItemID]; ok {
				line.MenuItem = &item
			}
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (r cartRepo) Add(ctx context.Context, line *models.CartLine) error {
	return r.with(func(d *dataset) error {
		item, ok := d.menuItems[line.MenuItemID]
		if !ok {
			return gorm.ErrForeignKeyViolated
		}
		for id, existing := range d.cart {
			if existing.UserID == line.UserID && existing.MenuItemID == line.MenuItemID {
				if existing.Quantity+line.Quantity > models.MaxLineQuantity {
					return repository.ErrCartLineFull
				}
				existing.Quantity += line.Quantity
				existing.UnitPrice = line.UnitPrice
				existing.Price = models.LinePrice(existing.Quantity, existing.UnitPrice)
				d.cart[id] = existing
				existing.MenuItem = &item
				*line = existing
				return nil
			}
		}
		line.ID = d.next("cart_lines")
		line.MenuItem = nil
		d.cart[line.ID] = *line
		line.MenuItem = &item
		return nil
	})
}

func (r cartRepo) LockByUser(ctx context.Context, userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.with(func(d *dataset) error {
		lines = d.cartOf(userID, false)
		return nil
	})
	return lines, err
}

func (r cartRepo) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	var deleted int64
	err := r.with(func(d *dataset) error {
		for id, line := range d.cart {
			if line.UserID == userID {
				delete(d.cart, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

type orderRepo struct{ view }

func (r orderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.with(func(d *dataset) error {
		order.ID = d.next("orders")
		for i := range order.Items {
			order.Items[i].ID = d.next("order_items")
			order.Items[i].OrderID = order.ID
		}
		stored := *order
		stored.Items = append([]models.OrderItem(nil), order.Items...)
		d.orders[order.ID] = stored
		return nil
	})
}

func visible(order models.Order, scope repository.OrderScope) bool {
	if scope.OwnerID != nil && order.UserID != *scope.OwnerID {
		return false
	}
	if scope.DeliveryCrewID != nil && (order.DeliveryCrewID == nil || *order.DeliveryCrewID != *scope.DeliveryCrewID) {
		return false
	}
	return true
}

func (r orderRepo) GetByID(ctx context.Context, id uint, scope repository.OrderScope) (*models.Order, error) {
	var out *models.Order
	err := r.with(func(d *dataset) error {
		order, ok := d.orders[id]
		if !ok || !visible(order, scope) {
			return gorm.ErrRecordNotFound
		}
		order.Items = append([]models.OrderItem(nil), order.Items...)
		out = &order
		return nil
	})
	return out, err
}

func (r orderRepo) List(ctx context.Context, scope repository.OrderScope, filter repository.OrderFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	err := r.with(func(d *dataset) error {
		for _, order := range d.orders {
			if !visible(order, scope) || !matchOrder(order, filter) {
				continue
			}
			order.Items = append([]models.OrderItem(nil), order.Items...)
			orders = append(orders, order)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		switch filter.Ordering {
		case "total":
			if !a.Total.Equal(b.Total) {
				return a.Total.LessThan(b.Total)
			}
		case "-total":
			if !a.Total.Equal(b.Total) {
				return a.Total.GreaterThan(b.Total)
			}
		case "date":
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		case "-date":
			if !a.Date.Equal(b.Date) {
				return a.Date.After(b.Date)
			}
		}
		return a.ID < b.ID
	})

	count := int64(len(orders))
	return paginate(orders, filter.Page), count, nil
}

func matchOrder(order models.Order, filter repository.OrderFilter) bool {
	if filter.Status != nil && order.Status != *filter.Status {
		return false
	}
	if filter.UserID != nil && order.UserID != *filter.UserID {
		return false
	}
	if filter.DeliveryCrewID != nil && (order.DeliveryCrewID == nil || *order.DeliveryCrewID != *filter.DeliveryCrewID) {
		return false
	}
	if filter.Date != nil {
		day := *filter.Date
		if order.Date.Before(day) || !order.Date.Before(day.AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}

func (r orderRepo) Update(ctx context.Context, id uint, changes map[string]interface{}) error {
	return r.with(func(d *dataset) error {
		order, ok := d.orders[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		for column, value := range changes {
			switch column {
			case "status":
				order.Status = models.OrderStatus(value.(string))
			case "delivery_crew_id":
				if value == nil {
					order.DeliveryCrewID = nil
					continue
				}
				crewID := value.(uint)
				if _, ok := d.users[crewID]; !ok {
					return gorm.ErrForeignKeyViolated
				}
				order.DeliveryCrewID = &crewID
			}
		}
		d.orders[id] = order
		return nil
	})
}

func (r orderRepo) Delete(ctx context.Context, id uint) error {
	return r.with(func(d *dataset) error {
		if _, ok := d.orders[id]; !ok {
			return gorm.ErrRecordNotFound
		}
		delete(d.orders, id)
		return nil
	})
}

func paginate[T any](rows []T, page repository.Page) []T {
	if page.Size <= 0 {
		return rows
	}
	start := page.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + page.Size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
