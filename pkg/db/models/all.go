package models

// All lists every table the services touch, in dependency order. Goose owns the
// postgres schema; the list backs sqlite automigration for dev and tests.
func All() []any {
	return []any{
		&DesignSubmission{},
		&PreOrder{},
		&Vote{},
		&PayoutRecord{},
		&DesignerProfile{},
		&StoreCreditEntry{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
