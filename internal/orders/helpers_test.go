package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/pkg/db"
	"github.com/tramar/pcbuilder-backend/pkg/db/dbtest"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

type fakeCanceler struct {
	mu       sync.Mutex
	canceled []string
	err      error
}

func (f *fakeCanceler) CancelPaymentIntent(_ context.Context, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, intentID)
	return f.err
}

type fixture struct {
	client   *db.Client
	repo     Repository
	outbox   *outbox.Repository
	svc      Service
	canceler *fakeCanceler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	outboxRepo := outbox.NewRepository(client.DB())
	canceler := &fakeCanceler{}
	svc, err := NewService(repo, client, outbox.NewService(outboxRepo, logger.Nop()), inventory.NewLedger(), canceler, logger.Nop())
	require.NoError(t, err)
	return fixture{client: client, repo: repo, outbox: outboxRepo, svc: svc, canceler: canceler}
}

// seedOrder writes an order snapshot directly, as if placement had already
// reserved qty units of product.
func seedOrder(t *testing.T, client *db.Client, userID uuid.UUID, product models.Product, qty int, method enums.PaymentMethod, createdAt time.Time) models.Order {
	t.Helper()
	items := product.Price.Times(qty)
	order := models.Order{
		UserID: userID,
		Items: []models.OrderLineItem{{
			Position:  0,
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			UnitPrice: product.Price,
			Quantity:  qty,
		}},
		ShippingAddress: types.ShippingAddress{
			Address:    "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "US",
		},
		PaymentMethod: method,
		ItemsPrice:    items,
		TaxPrice:      0,
		ShippingPrice: 0,
		TotalPrice:    items,
		CreatedAt:     createdAt,
	}
	require.NoError(t, NewRepository(client.DB()).Create(context.Background(), &order))
	return order
}

func customer() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
}

func admin() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
}
