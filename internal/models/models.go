package models

// All - список моделей для миграций
func All() []any {
	return []any{
		&User{},
		&Gig{},
		&Bid{},
		&Notification{},
		&OutboxEvent{},
		&EmailJob{},
	}
}
