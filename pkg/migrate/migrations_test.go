package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one %s migration", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestProductsMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "create_products_table")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS products",
		"count_in_stock integer NOT NULL DEFAULT 0",
		"CHECK (count_in_stock >= 0)",
		"price_cents bigint NOT NULL",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestOrdersMigrationContainsLatchesAndSnapshots(t *testing.T) {
	content := readMigration(t, "create_orders_tables")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"is_paid boolean NOT NULL DEFAULT false",
		"payment_result jsonb",
		"CHECK (NOT is_delivered OR is_paid)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_payment_intent",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"product_id uuid NOT NULL,",
	} {
		assert.Contains(t, content, sub)
	}
	assert.NotContains(t, content, "REFERENCES products", "order snapshots must not reference the catalog")
}

func TestCartsAndOutboxMigrations(t *testing.T) {
	carts := readMigration(t, "create_carts_tables")
	assert.Contains(t, carts, "CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_user_id")
	assert.Contains(t, carts, "CHECK (quantity >= 1)")

	outbox := readMigration(t, "create_outbox_events_table")
	assert.Contains(t, outbox, "CREATE TABLE IF NOT EXISTS outbox_events")
	assert.True(t, strings.Contains(outbox, "WHERE published_at IS NULL"))
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestValidateDirRequiresDownSection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
	err := migrate.ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goose Down")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_order_notes.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))
}
