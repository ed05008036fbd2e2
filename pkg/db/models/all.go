package models

// All lists every persisted model; tests pass it to AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderLineItem{},
		&OutboxEvent{},
	}
}
