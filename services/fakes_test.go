package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"checkout-service/models"
	repositories "checkout-service/repository"
	"checkout-service/sender"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"gorm.io/gorm"
)

// fakeOrderRepo is an in-memory OrderRepository. It hands out copies so
// callers can only change state through its methods.
type fakeOrderRepo struct {
	mu              sync.Mutex
	orders          map[uuid.UUID]*models.Order
	createErr       error
	findErr         error
	updateErr       error
	statusChanges   []repositories.StatusChange
	itemUpdates     []map[uuid.UUID]int
	beforeUpdate    func(change repositories.StatusChange)
	createdSnapshot *models.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func copyOrder(o *models.Order) *models.Order {
	raw, _ := json.Marshal(o)
	var out models.Order
	_ = json.Unmarshal(raw, &out)
	// json drops these; keep them for the service under test.
	out.DeletedAt = o.DeletedAt
	for i := range out.Items {
		for j := range out.Items[i].Colors {
			out.Items[i].Colors[j].ID = o.Items[i].Colors[j].ID
			out.Items[i].Colors[j].OrderItemID = o.Items[i].Colors[j].OrderItemID
		}
	}
	return &out
}

func (r *fakeOrderRepo) put(o *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = copyOrder(o)
}

func (r *fakeOrderRepo) get(id uuid.UUID) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return copyOrder(o)
	}
	return nil
}

func (r *fakeOrderRepo) CreateWithItems(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.orders[order.ID] = copyOrder(order)
	r.createdSnapshot = copyOrder(order)
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.orders[id]
	if !ok || o.DeletedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return copyOrder(o), nil
}

func (r *fakeOrderRepo) list(userID string) []models.Order {
	var out []models.Order
	for _, o := range r.orders {
		if o.DeletedAt == nil && (userID == "" || o.UserID == userID) {
			out = append(out, *copyOrder(o))
		}
	}
	return out
}

func (r *fakeOrderRepo) FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list(userID)
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list("")
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, change repositories.StatusChange) (bool, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate(change)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	o, ok := r.orders[change.OrderID]
	if !ok || o.DeletedAt != nil || o.Status != change.From {
		return false, nil
	}
	o.Status = change.To
	o.UpdatedAt = change.At
	r.statusChanges = append(r.statusChanges, change)
	return true, nil
}

func (r *fakeOrderRepo) UpdateItemQuantities(ctx context.Context, quantities map[uuid.UUID]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemUpdates = append(r.itemUpdates, quantities)
	for _, o := range r.orders {
		for i := range o.Items {
			if q, ok := quantities[o.Items[i].ID]; ok {
				o.Items[i].Quantities = q
			}
		}
	}
	return nil
}

func (r *fakeOrderRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.DeletedAt != nil {
		return false, nil
	}
	o.DeletedAt = &at
	return true, nil
}

func (r *fakeOrderRepo) transitionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statusChanges)
}

type fakeCatalog struct {
	products map[string]*models.Product
	err      error
	calls    [][]string
}

func (c *fakeCatalog) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	c.calls = append(c.calls, ids)
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]*models.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

type fakeIdempotency struct {
	mu       sync.Mutex
	values   map[string]string
	err      error
	released []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{values: make(map[string]string)}
}

func (f *fakeIdempotency) Reserve(ctx context.Context, userID, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	k := userID + ":" + key
	v, ok := f.values[k]
	if !ok {
		f.values[k] = "pending"
		return "", nil
	}
	if v == "pending" {
		return "", repositories.ErrIdempotencyInProgress
	}
	return v, nil
}

func (f *fakeIdempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[userID+":"+key] = orderID
	return nil
}

func (f *fakeIdempotency) Release(ctx context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, userID+":"+key)
	f.released = append(f.released, key)
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	created []IntentParams
}

func (p *fakeProvider) CreatePaymentIntent(ctx context.Context, params IntentParams) (*ProviderIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.created = append(p.created, params)
	return &ProviderIntent{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret_abc",
		Amount:       params.Amount,
		Currency:     params.Currency,
	}, nil
}

func (p *fakeProvider) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []models.OrderEvent
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var evt models.OrderEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	p.messages = append(p.messages, evt)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.Type)
	}
	return out
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, body string) (sender.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return sender.SendResult{}, f.err
	}
	f.sent = append(f.sent, to)
	return sender.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// pendingOrder returns a persisted-shape order worth 2 × 100000 + 20000.
func pendingOrder(userID string) *models.Order {
	orderID := uuid.New()
	itemID := uuid.New()
	now := time.Now()
	return &models.Order{
		ID:              orderID,
		UserID:          userID,
		SubTotal:        200000,
		ShippingFee:     20000,
		Total:           220000,
		Currency:        "vnd",
		BillingAddress:  "1 Billing St",
		ShippingAddress: "2 Shipping Rd",
		Status:          models.StatusPendingPayment,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items: []models.OrderItem{{
			ID:         itemID,
			OrderID:    orderID,
			ProductID:  "P1",
			SalePrice:  100000,
			Quantities: 2,
			Colors: []models.OrderItemColor{{
				ID:          uuid.New(),
				OrderItemID: itemID,
				Color:       "#ff0000",
				Quantity:    2,
			}},
		}},
	}
}
