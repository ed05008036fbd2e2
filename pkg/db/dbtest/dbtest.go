// Package dbtest opens throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tramar/pcbuilder-backend/pkg/db"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Open returns a client over a private in-memory database. The pool is
// limited to one connection, so concurrent transactions serialize the way
// row locks would serialize them on postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:tramar_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db.FromGorm(conn)
}

// SeedProduct inserts a product with the given price in cents and stock.
func SeedProduct(t testing.TB, client *db.Client, name string, priceCents int64, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:         name,
		Brand:        "Tramar",
		Category:     "components",
		Image:        "/images/" + name + ".jpg",
		Price:        types.Money(priceCents),
		CountInStock: stock,
	}
	if err := client.DB().Create(&p).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return p
}

// Stock re-reads the current count_in_stock for a product.
func Stock(t testing.TB, client *db.Client, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	if err := client.DB().First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product %s: %v", productID, err)
	}
	return p.CountInStock
}
