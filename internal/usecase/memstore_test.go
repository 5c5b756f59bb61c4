package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	repo "github.com/Moisinho/odym-ecommerce-sub000/internal/repository"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"gorm.io/gorm"
)

// memState is one snapshot of the database. WithinTx works on a clone and
// swaps it in only when fn returns nil, so a failed tx leaves nothing behind.
type memState struct {
	products    map[int64]model.Product
	users       map[int64]model.User
	addresses   map[int64]model.Address
	orders      map[int64]model.Order
	deleted     map[int64]model.Order
	items       map[int64][]model.OrderItem
	payments    []model.Payment
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
	nextID      int64
}

func newMemState() *memState {
	return &memState{
		products:  map[int64]model.Product{},
		users:     map[int64]model.User{},
		addresses: map[int64]model.Address{},
		orders:    map[int64]model.Order{},
		deleted:   map[int64]model.Order{},
		items:     map[int64][]model.OrderItem{},
		nextID:    1000,
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.deleted {
		c.deleted[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	c.payments = append([]model.Payment(nil), s.payments...)
	c.audits = append([]model.AuditLog(nil), s.audits...)
	c.adjustments = append([]model.InventoryAdjustment(nil), s.adjustments...)
	c.nextID = s.nextID
	return c
}

// allOrders includes soft-deleted rows, like an Unscoped query.
func (s *memState) allOrders() []model.Order {
	out := make([]model.Order, 0, len(s.orders)+len(s.deleted))
	for _, o := range s.orders {
		out = append(out, o)
	}
	for _, o := range s.deleted {
		out = append(out, o)
	}
	return out
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

type memStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState

	// hideRefOnce makes the next FindByPaymentRef miss, as if another
	// delivery committed between the lookup and the insert.
	hideRefOnce string
	txCount     int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	work := m.state.clone()
	m.txCount++
	m.mu.Unlock()

	if err := fn(memRepos{store: m, st: work}); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = work
	m.mu.Unlock()
	return nil
}

// committed state accessors for assertions
func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) addProduct(p model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
}

func (m *memStore) addUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = u
}

func (m *memStore) addAddress(a model.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.addresses[a.ID] = a
}

func (m *memStore) addOrder(o model.Order, items []model.OrderItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.orders[o.ID] = o
	m.state.items[o.ID] = items
}

func (m *memStore) stock(productID int64) int64 {
	return m.snapshot().products[productID].Stock
}

func (m *memStore) orderCount() int {
	return len(m.snapshot().orders)
}

// repos outside a tx go straight to the committed state
func (m *memStore) repos() memRepos {
	return memRepos{store: m}
}

type memRepos struct {
	store *memStore
	st    *memState
}

func (r memRepos) with(fn func(st *memState)) {
	if r.st != nil {
		fn(r.st)
		return
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	fn(r.store.state)
}

func (r memRepos) Orders() repo.OrderRepository         { return memOrders{r} }
func (r memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r} }
func (r memRepos) Inventory() repo.InventoryRepository  { return memInventory{r} }
func (r memRepos) Products() repo.ProductRepository     { return memProducts{r} }
func (r memRepos) Payments() repo.PaymentRepository     { return memPayments{r} }
func (r memRepos) Users() repo.UserRepository           { return memUsers{r} }
func (r memRepos) Addresses() repo.AddressRepository    { return memAddresses{r} }
func (r memRepos) AuditLogs() repo.AuditLogRepository   { return memAudits{r} }

var _ repo.TransactionManager = (*memStore)(nil)

// products

type memProducts struct{ memRepos }

func (r memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var out []model.Product
	r.with(func(st *memState) {
		for _, p := range st.products {
			if p.IsActive && (q.Category == "" || p.Category == q.Category) {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var (
		p  model.Product
		ok bool
	)
	r.with(func(st *memState) { p, ok = st.products[id] })
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memProducts) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var out []model.Product
	r.with(func(st *memState) {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

func (r memProducts) ListBoxCandidates(ctx context.Context, limit int) ([]model.Product, error) {
	var out []model.Product
	r.with(func(st *memState) {
		for _, p := range st.products {
			if p.IsActive && p.Stock > 0 {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock > out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	r.with(func(st *memState) {
		p.ID = st.id()
		st.products[p.ID] = p
	})
	return p, nil
}

func (r memProducts) Update(ctx context.Context, p model.Product) error {
	var err error
	r.with(func(st *memState) {
		cur, ok := st.products[p.ID]
		if !ok {
			err = repo.ErrNotFound
			return
		}
		p.Stock = cur.Stock
		st.products[p.ID] = p
	})
	return err
}

func (r memProducts) SoftDelete(ctx context.Context, id int64) error {
	var err error
	r.with(func(st *memState) {
		if _, ok := st.products[id]; !ok {
			err = repo.ErrNotFound
			return
		}
		delete(st.products, id)
	})
	return err
}

// inventory

type memInventory struct{ memRepos }

func (r memInventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	var err error
	r.with(func(st *memState) {
		p, ok := st.products[productID]
		if !ok {
			err = repo.ErrNotFound
			return
		}
		p.Stock = newStock
		st.products[productID] = p
	})
	return err
}

func (r memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	var ok bool
	r.with(func(st *memState) {
		p, found := st.products[productID]
		if !found || p.Stock < qty {
			return
		}
		p.Stock -= qty
		st.products[productID] = p
		ok = true
	})
	return ok, nil
}

func (r memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	var err error
	r.with(func(st *memState) {
		p, ok := st.products[productID]
		if !ok {
			err = repo.ErrNotFound
			return
		}
		p.Stock += qty
		st.products[productID] = p
	})
	return err
}

func (r memInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	r.with(func(st *memState) { st.adjustments = append(st.adjustments, adj) })
	return nil
}

// orders

type memOrders struct{ memRepos }

func (r memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var (
		o  model.Order
		ok bool
	)
	r.with(func(st *memState) { o, ok = st.orders[orderID] })
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	r.with(func(st *memState) {
		for _, o := range st.orders {
			if o.UserID != nil && *o.UserID == userID {
				out = append(out, o)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	var err error
	r.with(func(st *memState) {
		for _, o := range st.allOrders() {
			if o.PaymentRef == order.PaymentRef {
				err = repo.ErrDuplicate
				return
			}
		}
		order.ID = st.id()
		st.orders[order.ID] = order
	})
	return order.ID, err
}

func (r memOrders) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	var err error
	r.with(func(st *memState) {
		o, ok := st.orders[orderID]
		if !ok {
			err = repo.ErrNotFound
			return
		}
		o.Status = status
		st.orders[orderID] = o
	})
	return err
}

func (r memOrders) Delete(ctx context.Context, orderID int64) error {
	var err error
	r.with(func(st *memState) {
		o, ok := st.orders[orderID]
		if !ok {
			err = repo.ErrNotFound
			return
		}
		// 論理削除。payment_ref は deleted に残る
		o.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		st.deleted[orderID] = o
		delete(st.orders, orderID)
	})
	return err
}

func (r memOrders) FindByPaymentRef(ctx context.Context, ref string) (model.Order, bool, error) {
	r.store.mu.Lock()
	hide := r.store.hideRefOnce == ref
	if hide {
		r.store.hideRefOnce = ""
	}
	r.store.mu.Unlock()
	if hide {
		return model.Order{}, false, nil
	}

	var (
		o     model.Order
		found bool
	)
	r.with(func(st *memState) {
		for _, cur := range st.allOrders() {
			if cur.PaymentRef == ref {
				o, found = cur, true
				return
			}
		}
	})
	return o, found, nil
}

func (r memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var out []model.Order
	r.with(func(st *memState) {
		for _, o := range st.orders {
			if f.Status != "" && string(o.Status) != f.Status {
				continue
			}
			if f.OrderType != "" && string(o.OrderType) != f.OrderType {
				continue
			}
			out = append(out, o)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// order items

type memOrderItems struct{ memRepos }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	r.with(func(st *memState) {
		for _, it := range items {
			it.ID = st.id()
			it.OrderID = orderID
			st.items[orderID] = append(st.items[orderID], it)
		}
	})
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var out []model.OrderItem
	r.with(func(st *memState) { out = append(out, st.items[orderID]...) })
	return out, nil
}

func (r memOrderItems) DeleteByOrderID(ctx context.Context, orderID int64) error {
	r.with(func(st *memState) { delete(st.items, orderID) })
	return nil
}

// payments

type memPayments struct{ memRepos }

func (r memPayments) Create(ctx context.Context, p model.Payment) error {
	r.with(func(st *memState) {
		p.ID = st.id()
		st.payments = append(st.payments, p)
	})
	return nil
}

func (r memPayments) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	var out []model.Payment
	r.with(func(st *memState) {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

// users

type memUsers struct{ memRepos }

func (r memUsers) Create(ctx context.Context, user *model.User) error {
	var err error
	r.with(func(st *memState) {
		for _, u := range st.users {
			if u.Email == user.Email {
				err = repo.ErrDuplicate
				return
			}
		}
		user.ID = st.id()
		st.users[user.ID] = *user
	})
	return err
}

func (r memUsers) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	var (
		u  model.User
		ok bool
	)
	r.with(func(st *memState) { u, ok = st.users[userID] })
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var (
		u  model.User
		ok bool
	)
	r.with(func(st *memState) {
		for _, cur := range st.users {
			if cur.Email == email {
				u, ok = cur, true
				return
			}
		}
	})
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) Update(ctx context.Context, user *model.User) error {
	var err error
	r.with(func(st *memState) {
		if _, ok := st.users[user.ID]; !ok {
			err = repo.ErrUserNotFound
			return
		}
		st.users[user.ID] = *user
	})
	return err
}

func (r memUsers) UpdateSubscription(ctx context.Context, userID int64, sub model.Subscription) error {
	var err error
	r.with(func(st *memState) {
		u, ok := st.users[userID]
		if !ok {
			err = repo.ErrUserNotFound
			return
		}
		u.Subscription = sub
		st.users[userID] = u
	})
	return err
}

func (r memUsers) IncrementTokenVersion(ctx context.Context, userID int64) (int, error) {
	var (
		v   int
		err error
	)
	r.with(func(st *memState) {
		u, ok := st.users[userID]
		if !ok {
			err = repo.ErrUserNotFound
			return
		}
		u.TokenVersion++
		v = u.TokenVersion
		st.users[userID] = u
	})
	return v, err
}

// addresses

type memAddresses struct{ memRepos }

func (r memAddresses) Create(ctx context.Context, a model.Address) (model.Address, error) {
	r.with(func(st *memState) {
		a.ID = st.id()
		st.addresses[a.ID] = a
	})
	return a, nil
}

func (r memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	var out []model.Address
	r.with(func(st *memState) {
		for _, a := range st.addresses {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAddresses) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var (
		a  model.Address
		ok bool
	)
	r.with(func(st *memState) { a, ok = st.addresses[addressID] })
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r memAddresses) FindDefaultByUserID(ctx context.Context, userID int64) (model.Address, bool, error) {
	var (
		a     model.Address
		found bool
	)
	r.with(func(st *memState) {
		for _, cur := range st.addresses {
			if cur.UserID == userID && cur.IsDefault {
				a, found = cur, true
				return
			}
		}
	})
	return a, found, nil
}

func (r memAddresses) Update(ctx context.Context, a model.Address) error {
	var err error
	r.with(func(st *memState) {
		cur, ok := st.addresses[a.ID]
		if !ok {
			err = repo.ErrNotFound
			return
		}
		a.UserID = cur.UserID
		a.IsDefault = cur.IsDefault
		a.CreatedAt = cur.CreatedAt
		st.addresses[a.ID] = a
	})
	return err
}

func (r memAddresses) Delete(ctx context.Context, addressID int64) error {
	var err error
	r.with(func(st *memState) {
		if _, ok := st.addresses[addressID]; !ok {
			err = repo.ErrNotFound
			return
		}
		delete(st.addresses, addressID)
	})
	return err
}

func (r memAddresses) SetDefault(ctx context.Context, userID, addressID int64) error {
	var err error
	r.with(func(st *memState) {
		target, ok := st.addresses[addressID]
		if !ok || target.UserID != userID {
			err = repo.ErrNotFound
			return
		}
		for id, a := range st.addresses {
			if a.UserID == userID {
				a.IsDefault = id == addressID
				st.addresses[id] = a
			}
		}
	})
	return err
}

// audit logs

type memAudits struct{ memRepos }

func (r memAudits) Create(ctx context.Context, log model.AuditLog) error {
	r.with(func(st *memState) { st.audits = append(st.audits, log) })
	return nil
}

func (r memAudits) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	var out []model.AuditLog
	r.with(func(st *memState) { out = append(out, st.audits...) })
	return out, nil
}

// test doubles for the ports

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeProvider struct {
	mu       sync.Mutex
	created  []usecase.CreateSessionParams
	sessions map[string]usecase.CheckoutSession
	event    usecase.ProviderEvent
	eventErr error
	err      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: map[string]usecase.CheckoutSession{}}
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, in usecase.CreateSessionParams) (usecase.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return usecase.CheckoutSession{}, p.err
	}
	p.created = append(p.created, in)
	return usecase.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (p *fakeProvider) RetrieveCheckoutSession(ctx context.Context, sessionID string) (usecase.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return usecase.CheckoutSession{}, p.err
	}
	s, ok := p.sessions[sessionID]
	if !ok {
		return usecase.CheckoutSession{}, errors.New("no such session")
	}
	return s, nil
}

func (p *fakeProvider) ConstructEvent(payload []byte, signature string) (usecase.ProviderEvent, error) {
	if p.eventErr != nil {
		return usecase.ProviderEvent{}, p.eventErr
	}
	return p.event, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []usecase.OrderCreatedEvent
	err    error
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, ev usecase.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type opRecorder struct {
	mu  sync.Mutex
	ops map[string][]bool
}

func newOpRecorder() *opRecorder {
	return &opRecorder{ops: map[string][]bool{}}
}

func (r *opRecorder) record(op string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op] = append(r.ops[op], success)
}

func int64Ptr(v int64) *int64 { return &v }
