package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/pkg/db"
	"github.com/tramar/pcbuilder-backend/pkg/db/dbtest"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	pkgstripe "github.com/tramar/pcbuilder-backend/pkg/stripe"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

const testWebhookSecret = "whsec_test_secret"

type fakeGateway struct {
	mu       sync.Mutex
	intents  map[string]*Intent
	created  []IntentRequest
	onCreate func(req IntentRequest)
	nextID   string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*Intent{}}
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if g.onCreate != nil {
		g.onCreate(req)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	id := g.nextID
	if id == "" {
		id = fmt.Sprintf("pi_%d", len(g.created))
	}
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Metadata:     map[string]string{"orderId": req.OrderID.String()},
	}
	g.intents[id] = intent
	return intent, nil
}

func (g *fakeGateway) RetrievePaymentIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	copied := *intent
	return &copied, nil
}

func (g *fakeGateway) CancelPaymentIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[id]; ok {
		intent.Status = IntentStatusCanceled
	}
	return nil
}

func (g *fakeGateway) put(intent Intent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intent.ID] = &intent
}

type fixture struct {
	client  *db.Client
	orders  orders.Repository
	outbox  *outbox.Repository
	gateway *fakeGateway
	svc     Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	repo := orders.NewRepository(client.DB())
	outboxRepo := outbox.NewRepository(client.DB())
	gateway := newFakeGateway()
	svc, err := NewService(ServiceParams{
		Orders:   repo,
		Tx:       client,
		Outbox:   outbox.NewService(outboxRepo, logger.Nop()),
		Gateway:  gateway,
		Currency: "usd",
	})
	require.NoError(t, err)
	return fixture{client: client, orders: repo, outbox: outboxRepo, gateway: gateway, svc: svc}
}

func (f fixture) webhook(t *testing.T, guard eventGuard) *Webhook {
	t.Helper()
	h, err := NewWebhook(WebhookParams{
		Verifier: pkgstripe.NewSignatureVerifier(testWebhookSecret),
		Guard:    guard,
		Payments: f.svc,
		Orders:   f.orders,
		Tx:       f.client,
		Outbox:   outbox.NewService(f.outbox, logger.Nop()),
		Currency: "usd",
	})
	require.NoError(t, err)
	return h
}

// seedOrder stores an unpaid order totalling 67.50.
func seedOrder(t *testing.T, f fixture, userID uuid.UUID, method enums.PaymentMethod) models.Order {
	t.Helper()
	p := dbtest.SeedProduct(t, f.client, "gpu-"+uuid.NewString()[:8], 5000, 5)
	order := models.Order{
		UserID: userID,
		Items: []models.OrderLineItem{{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  1,
		}},
		ShippingAddress: types.ShippingAddress{Address: "1 Main St", City: "Austin", PostalCode: "78701", Country: "US"},
		PaymentMethod:   method,
		ItemsPrice:      types.MustParseMoney("50.00"),
		TaxPrice:        types.MustParseMoney("7.50"),
		ShippingPrice:   types.MustParseMoney("10.00"),
		TotalPrice:      types.MustParseMoney("67.50"),
	}
	require.NoError(t, f.orders.Create(context.Background(), &order))
	return order
}

func countEvents(t *testing.T, f fixture, orderID uuid.UUID, eventType enums.OutboxEventType) int {
	t.Helper()
	events, err := f.outbox.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	n := 0
	for _, e := range events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func intentEvent(t *testing.T, eventID, eventType string, intent map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": intent},
	})
	require.NoError(t, err)
	return payload
}

func succeededIntent(orderID uuid.UUID, amount int64) map[string]any {
	return map[string]any{
		"id":            "pi_" + orderID.String()[:8],
		"object":        "payment_intent",
		"amount":        amount,
		"currency":      "usd",
		"status":        "succeeded",
		"receipt_email": "buyer@example.com",
		"metadata":      map[string]string{"orderId": orderID.String()},
	}
}

func signHeader(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
