package models

type GigStatus string
type BidStatus string
type NotificationType string
type OutboxStatus string
type EmailJobStatus string

const (
	GigStatusOpen      GigStatus = "open"
	GigStatusAssigned  GigStatus = "assigned"
	GigStatusCompleted GigStatus = "completed"

	BidStatusPending  BidStatus = "pending"
	BidStatusHired    BidStatus = "hired"
	BidStatusRejected BidStatus = "rejected"

	NotificationTypeNewBid      NotificationType = "new_bid"
	NotificationTypeBidHired    NotificationType = "bid_hired"
	NotificationTypeBidRejected NotificationType = "bid_rejected"

	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusDone       OutboxStatus = "done"
	OutboxStatusDeadLetter OutboxStatus = "dead_letter"

	EmailJobStatusPending    EmailJobStatus = "pending"
	EmailJobStatusProcessing EmailJobStatus = "processing"
	EmailJobStatusSent       EmailJobStatus = "sent"
	EmailJobStatusDeadLetter EmailJobStatus = "dead_letter"
)

