package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/safar/kitrunner/internal/models"
)

// MemoryStore keeps every table in maps keyed by auto-incremented ids.
// Transactions hold the store lock, work on a copy and swap it in on success.
type MemoryStore struct {
	mu sync.Mutex
	*memRepo
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.memRepo = &memRepo{data: newMemData(), mu: &s.mu, now: time.Now}
	return s
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.data.clone()
	if err := fn(&memRepo{data: staged, now: s.now}); err != nil {
		return err
	}
	s.data = staged
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memData struct {
	lastID    map[string]int64
	events    map[int64]models.Event
	customers map[int64]models.Customer
	addresses map[int64]models.Address
	orders    map[int64]models.Order
	kits      map[int64]models.Kit
	coupons   map[int64]models.Coupon
}

func newMemData() *memData {
	return &memData{
		lastID:    make(map[string]int64),
		events:    make(map[int64]models.Event),
		customers: make(map[int64]models.Customer),
		addresses: make(map[int64]models.Address),
		orders:    make(map[int64]models.Order),
		kits:      make(map[int64]models.Kit),
		coupons:   make(map[int64]models.Coupon),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.lastID {
		c.lastID[k] = v
	}
	copyMap(c.events, d.events)
	copyMap(c.customers, d.customers)
	copyMap(c.addresses, d.addresses)
	copyMap(c.orders, d.orders)
	copyMap(c.kits, d.kits)
	copyMap(c.coupons, d.coupons)
	return c
}

func copyMap[V any](dst, src map[int64]V) {
	for k, v := range src {
		dst[k] = v
	}
}

func sortedByID[V any](m map[int64]V, keep func(V) bool) []V {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// memRepo implements Repository over one memData. mu is nil inside a
// transaction, where the store lock is already held.
type memRepo struct {
	data *memData
	mu   *sync.Mutex
	now  func() time.Time
}

func (r *memRepo) lock() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memRepo) nextID(table string) int64 {
	r.data.lastID[table]++
	return r.data.lastID[table]
}

func (r *memRepo) ListEvents(ctx context.Context) ([]models.Event, error) {
	defer r.lock()()
	return sortedByID(r.data.events, nil), nil
}

func (r *memRepo) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	defer r.lock()()
	e, ok := r.data.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (r *memRepo) CreateEvent(ctx context.Context, e *models.Event) error {
	defer r.lock()()
	e.ID = r.nextID("events")
	e.CreatedAt = r.now().UTC()
	r.data.events[e.ID] = *e
	return nil
}

func (r *memRepo) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	defer r.lock()()
	c, ok := r.data.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &c, nil
}

func (r *memRepo) GetCustomerByCredentials(ctx context.Context, cpf, birthDate string) (*models.Customer, error) {
	defer r.lock()()
	for _, c := range r.data.customers {
		if c.CPF == cpf && c.BirthDate == birthDate {
			return &c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (r *memRepo) CreateCustomer(ctx context.Context, c *models.Customer) error {
	defer r.lock()()
	for _, existing := range r.data.customers {
		if existing.CPF == c.CPF {
			return ErrDuplicateCPF
		}
	}
	c.ID = r.nextID("customers")
	c.CreatedAt = r.now().UTC()
	r.data.customers[c.ID] = *c
	return nil
}

// LockCustomer only checks existence: transactions already hold the store lock.
func (r *memRepo) LockCustomer(ctx context.Context, id int64) error {
	defer r.lock()()
	if _, ok := r.data.customers[id]; !ok {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *memRepo) CreateAddress(ctx context.Context, a *models.Address) error {
	defer r.lock()()
	if _, ok := r.data.customers[a.CustomerID]; !ok {
		return fmt.Errorf("create address: %w", ErrCustomerNotFound)
	}
	if a.IsDefault && r.otherDefault(a.CustomerID, 0) {
		return fmt.Errorf("create address: %w", ErrDuplicateDefaultAddress)
	}
	a.ID = r.nextID("addresses")
	a.CreatedAt = r.now().UTC()
	r.data.addresses[a.ID] = *a
	return nil
}

func (r *memRepo) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	defer r.lock()()
	a, ok := r.data.addresses[id]
	if !ok {
		return nil, ErrAddressNotFound
	}
	return &a, nil
}

func (r *memRepo) ListAddressesByCustomer(ctx context.Context, customerID int64) ([]models.Address, error) {
	defer r.lock()()
	return sortedByID(r.data.addresses, func(a models.Address) bool {
		return a.CustomerID == customerID
	}), nil
}

func (r *memRepo) UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error) {
	defer r.lock()()
	a, ok := r.data.addresses[id]
	if !ok {
		return nil, ErrAddressNotFound
	}
	patch.Apply(&a)
	if a.IsDefault && r.otherDefault(a.CustomerID, id) {
		return nil, fmt.Errorf("update address: %w", ErrDuplicateDefaultAddress)
	}
	r.data.addresses[id] = a
	return &a, nil
}

// otherDefault mirrors the addresses_one_default_idx partial index.
func (r *memRepo) otherDefault(customerID, exceptID int64) bool {
	for id, a := range r.data.addresses {
		if id != exceptID && a.CustomerID == customerID && a.IsDefault {
			return true
		}
	}
	return false
}

func (r *memRepo) ClearDefaultAddresses(ctx context.Context, customerID int64) error {
	defer r.lock()()
	for id, a := range r.data.addresses {
		if a.CustomerID == customerID && a.IsDefault {
			a.IsDefault = false
			r.data.addresses[id] = a
		}
	}
	return nil
}

func (r *memRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	defer r.lock()()
	if _, ok := r.data.events[o.EventID]; !ok {
		return fmt.Errorf("create order: %w", ErrEventNotFound)
	}
	if _, ok := r.data.customers[o.CustomerID]; !ok {
		return fmt.Errorf("create order: %w", ErrCustomerNotFound)
	}
	if _, ok := r.data.addresses[o.AddressID]; !ok {
		return fmt.Errorf("create order: %w", ErrAddressNotFound)
	}
	for _, existing := range r.data.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrDuplicateOrderNumber
		}
	}
	o.ID = r.nextID("orders")
	o.CreatedAt = r.now().UTC()
	r.data.orders[o.ID] = *o
	return nil
}

func (r *memRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	defer r.lock()()
	for _, o := range r.data.orders {
		if o.OrderNumber == orderNumber {
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r *memRepo) ListOrdersByCustomer(ctx context.Context, customerID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	limit = ClampLimit(limit)

	defer r.lock()()
	var orders []models.Order
	for _, o := range r.data.orders {
		if o.CustomerID == customerID && cursorData.After(o.CreatedAt, o.ID) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &CursorPage{Items: orders, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (r *memRepo) CreateKit(ctx context.Context, k *models.Kit) error {
	defer r.lock()()
	if _, ok := r.data.orders[k.OrderID]; !ok {
		return fmt.Errorf("create kit: %w", ErrOrderNotFound)
	}
	k.ID = r.nextID("kits")
	r.data.kits[k.ID] = *k
	return nil
}

func (r *memRepo) ListKitsByOrder(ctx context.Context, orderID int64) ([]models.Kit, error) {
	defer r.lock()()
	return sortedByID(r.data.kits, func(k models.Kit) bool {
		return k.OrderID == orderID
	}), nil
}

func (r *memRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	defer r.lock()()
	for _, c := range r.data.coupons {
		if strings.EqualFold(c.Code, code) {
			return &c, nil
		}
	}
	return nil, ErrCouponNotFound
}

func (r *memRepo) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	defer r.lock()()
	for _, existing := range r.data.coupons {
		if strings.EqualFold(existing.Code, c.Code) {
			return ErrDuplicateCoupon
		}
	}
	c.ID = r.nextID("coupons")
	c.CreatedAt = r.now().UTC()
	r.data.coupons[c.ID] = *c
	return nil
}
