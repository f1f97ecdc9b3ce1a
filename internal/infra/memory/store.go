package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"
)

// Store はPostgresなしで動かすためのインメモリ実装。
// WithinTxは1本のmutexで直列化し、コピーした状態に書いてから成功時だけ差し替える。
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), now: time.Now}
}

type state struct {
	seq        map[string]int64
	products   map[int64]model.Product
	categories map[int64]model.Category
	orders     map[int64]model.Order
	items      map[int64][]model.OrderItem
	movements  []model.StockMovement
	settings   map[string]string
	auditLogs  []model.AuditLog
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		products:   map[int64]model.Product{},
		categories: map[int64]model.Category{},
		orders:     map[int64]model.Order{},
		items:      map[int64][]model.OrderItem{},
		settings:   map[string]string{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:        make(map[string]int64, len(s.seq)),
		products:   make(map[int64]model.Product, len(s.products)),
		categories: make(map[int64]model.Category, len(s.categories)),
		orders:     make(map[int64]model.Order, len(s.orders)),
		items:      make(map[int64][]model.OrderItem, len(s.items)),
		movements:  append([]model.StockMovement(nil), s.movements...),
		settings:   make(map[string]string, len(s.settings)),
		auditLogs:  append([]model.AuditLog(nil), s.auditLogs...),
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	return c
}

func (s *state) next(name string) int64 {
	s.seq[name]++
	return s.seq[name]
}

// WithinTx はfnがnilを返したときだけ変更を反映する。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&txRepos{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// PutProduct は商品を直接登録する（初期データ・テスト用）。
func (s *Store) PutProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if p.ID == 0 {
		p.ID = s.state.next("products")
	} else if p.ID > s.state.seq["products"] {
		s.state.seq["products"] = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.state.products[p.ID] = p
	return p
}

// PutCategory はカテゴリを直接登録する（テスト用）。
func (s *Store) PutCategory(c model.Category) model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		c.ID = s.state.next("categories")
	} else if c.ID > s.state.seq["categories"] {
		s.state.seq["categories"] = c.ID
	}
	s.state.categories[c.ID] = c
	return c
}

// PutSetting は設定を直接書く（初期データ・テスト用）。
func (s *Store) PutSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.settings[key] = value
}

// Product はコミット済みの商品を返す。
func (s *Store) Product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	return p, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *Store) OrderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.state.items {
		n += len(v)
	}
	return n
}

// Movements はコミット済みの台帳（古い順）。
func (s *Store) Movements() []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StockMovement(nil), s.state.movements...)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.state.auditLogs...)
}

type txRepos struct {
	st  *state
	now func() time.Time
}

func (r *txRepos) Products() repo.ProductRepository             { return productRepo{r} }
func (r *txRepos) Orders() repo.OrderRepository                 { return orderRepo{r} }
func (r *txRepos) OrderItems() repo.OrderItemRepository         { return orderItemRepo{r} }
func (r *txRepos) StockMovements() repo.StockMovementRepository { return movementRepo{r} }
func (r *txRepos) Settings() repo.SettingRepository             { return settingRepo{r} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository           { return auditLogRepo{r} }

type productRepo struct{ *txRepos }

func (r productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	if p.CategoryID != nil {
		if c, ok := r.st.categories[*p.CategoryID]; ok {
			p.Category = &c
		}
	}
	return p, nil
}

// ロックはStore全体のmutexで取れている
func (r productRepo) FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r productRepo) UpdateStock(_ context.Context, id int64, newStock int64) error {
	p, ok := r.st.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	if newStock < 0 {
		return errNegativeStock
	}
	p.Stock = newStock
	p.UpdatedAt = r.now()
	r.st.products[id] = p
	return nil
}

func (r productRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	p.Category = nil
	now := r.now()
	p.ID = r.st.next("products")
	p.CreatedAt = now
	p.UpdatedAt = now
	r.st.products[p.ID] = p
	return p, nil
}

type orderRepo struct{ *txRepos }

func (r orderRepo) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r orderRepo) ListByCustomerID(_ context.Context, customerID int64, limit int) ([]model.Order, error) {
	out := make([]model.Order, 0)
	for _, o := range r.st.orders {
		if o.CustomerID != nil && *o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r orderRepo) Create(_ context.Context, o model.Order) (model.Order, error) {
	if o.IdempotencyKey != nil {
		for _, existing := range r.st.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey &&
				sameScope(existing.IdempotencyScope, o.IdempotencyScope) {
				return model.Order{}, repo.ErrConflict
			}
		}
	}
	now := r.now()
	o.ID = r.st.next("orders")
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	r.st.orders[o.ID] = o
	return o, nil
}

func (r orderRepo) UpdateStatus(_ context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := r.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = r.now()
	r.st.orders[orderID] = o
	return nil
}

func (r orderRepo) FindByIdempotencyKey(_ context.Context, scope string, key string) (model.Order, bool, error) {
	for _, o := range r.st.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key && o.IdempotencyScope != nil && *o.IdempotencyScope == scope {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

type orderItemRepo struct{ *txRepos }

func (r orderItemRepo) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) ([]model.OrderItem, error) {
	if _, ok := r.st.orders[orderID]; !ok {
		return nil, repo.ErrNotFound
	}
	saved := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, errNonPositiveQuantity
		}
		it.ID = r.st.next("order_items")
		it.OrderID = orderID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = r.now()
		}
		saved = append(saved, it)
	}
	r.st.items[orderID] = append(r.st.items[orderID], saved...)
	return saved, nil
}

func (r orderItemRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.st.items[orderID]...), nil
}

type movementRepo struct{ *txRepos }

func (r movementRepo) Create(_ context.Context, m model.StockMovement) (model.StockMovement, error) {
	m.ID = r.st.next("stock_movements")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	r.st.movements = append(r.st.movements, m)
	return m, nil
}

func (r movementRepo) ListByProductID(_ context.Context, productID int64, limit int) ([]model.StockMovement, error) {
	out := make([]model.StockMovement, 0)
	for i := len(r.st.movements) - 1; i >= 0; i-- {
		if r.st.movements[i].ProductID != productID {
			continue
		}
		out = append(out, r.st.movements[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type settingRepo struct{ *txRepos }

func (r settingRepo) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := r.st.settings[key]
	return v, ok, nil
}

type auditLogRepo struct{ *txRepos }

func (r auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	log.ID = r.st.next("audit_logs")
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	r.st.auditLogs = append(r.st.auditLogs, log)
	return nil
}

func (r auditLogRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit := repo.NormalizeAuditLimit(f.Limit)
	out := make([]model.AuditLog, 0)
	for i := len(r.st.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		l := r.st.auditLogs[i]
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// NULLどうしは別物（Postgresの一意制約と同じ）
func sameScope(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
