package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	BidHandler          *BidHandler
	GigHandler          *GigHandler
	NotificationHandler *NotificationHandler
	HealthHandler       *HealthHandler
}
