package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/pkg/db/dbtest"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
)

func TestFindByIDAndFindByIDs(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	gpu := dbtest.SeedProduct(t, client, "gpu", 49999, 3)
	cpu := dbtest.SeedProduct(t, client, "cpu", 29999, 5)

	got, err := repo.FindByID(ctx, gpu.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpu", got.Name)
	assert.Equal(t, int64(49999), got.Price.Cents())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	missing := uuid.New()
	byID, err := repo.FindByIDs(ctx, []uuid.UUID{gpu.ID, cpu.ID, missing})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	_, ok := byID[missing]
	assert.False(t, ok)
}

func TestCreateRejectsNegativeStock(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	err := repo.Create(context.Background(), &models.Product{Name: "psu", Category: "power", CountInStock: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	p := &models.Product{Name: "psu", Category: "power", Price: 8999, CountInStock: 2}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.NotEqual(t, uuid.Nil, p.ID)
}
