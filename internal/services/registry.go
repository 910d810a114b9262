package services

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	BidService          BidService
	GigService          GigService
	NotificationService NotificationService
}
