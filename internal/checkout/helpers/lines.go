package helpers

import (
	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/internal/pricing"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
)

// MergeLines folds repeated product ids into one line by summing quantities.
// Lines keep the position of the first occurrence.
func MergeLines(lines []inventory.Line) []inventory.Line {
	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]inventory.Line, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// ProductIDs returns the ids referenced by lines, in order.
func ProductIDs(lines []inventory.Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// SnapshotLines copies catalog name, image and price onto order line items
// and returns the matching pricing input. Every product must be present.
func SnapshotLines(lines []inventory.Line, catalog map[uuid.UUID]models.Product) ([]models.OrderLineItem, []pricing.Line) {
	items := make([]models.OrderLineItem, 0, len(lines))
	priced := make([]pricing.Line, 0, len(lines))
	for i, line := range lines {
		product := catalog[line.ProductID]
		items = append(items, models.OrderLineItem{
			Position:  i,
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		})
		priced = append(priced, pricing.Line{UnitPrice: product.Price, Quantity: line.Quantity})
	}
	return items, priced
}
