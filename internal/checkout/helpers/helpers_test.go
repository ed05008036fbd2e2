package helpers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

func TestMergeLinesSumsDuplicatesInFirstSeenOrder(t *testing.T) {
	t.Parallel()
	a, b := uuid.New(), uuid.New()
	merged := MergeLines([]inventory.Line{
		{ProductID: b, Quantity: 1},
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 3},
	})
	if len(merged) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(merged))
	}
	if merged[0].ProductID != b || merged[0].Quantity != 4 {
		t.Fatalf("unexpected first line %+v", merged[0])
	}
	if merged[1].ProductID != a || merged[1].Quantity != 2 {
		t.Fatalf("unexpected second line %+v", merged[1])
	}
	if ids := ProductIDs(merged); len(ids) != 2 || ids[0] != b {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestSnapshotLinesUsesCatalogPrice(t *testing.T) {
	t.Parallel()
	gpu := models.Product{ID: uuid.New(), Name: "gpu", Image: "/gpu.jpg", Price: types.MustParseMoney("499.99")}
	items, priced := SnapshotLines(
		[]inventory.Line{{ProductID: gpu.ID, Quantity: 2}},
		map[uuid.UUID]models.Product{gpu.ID: gpu},
	)
	if len(items) != 1 || len(priced) != 1 {
		t.Fatalf("expected one line, got %d/%d", len(items), len(priced))
	}
	if items[0].UnitPrice != gpu.Price || items[0].Name != "gpu" || items[0].Image != "/gpu.jpg" {
		t.Fatalf("unexpected snapshot %+v", items[0])
	}
	if priced[0].UnitPrice != gpu.Price || priced[0].Quantity != 2 {
		t.Fatalf("unexpected pricing line %+v", priced[0])
	}
}
