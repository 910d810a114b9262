package apperrors

import (
	"net/http"
)

/*
Фабрики и предопределенные переменные для ошибок домена:
гиги, ставки, найм, уведомления.
*/

// =========================================================================
// Фабрики
// =========================================================================

// ErrNotFound - "не найдено" (404), когда нет более точной доменной ошибки
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists - "уже существует" (409), обычно нарушение уникального индекса
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// =========================================================================
// Gigs
// =========================================================================

var ErrGigNotFound = New(CodeNotFound, "gig", "Gig not found", http.StatusNotFound)

var ErrNotGigOwner = New(CodeForbidden, "gig", "Only the gig owner can perform this action", http.StatusForbidden)

// ErrGigNotOpen - гиг уже не принимает ставки (назначен или завершен)
var ErrGigNotOpen = New(CodeConflict, "gig", "This gig is no longer available", http.StatusConflict)

// ErrGigAlreadyAssigned - проигравший в гонке найма или повторный найм
var ErrGigAlreadyAssigned = New(CodeConflict, "hire", "This gig has already been assigned", http.StatusConflict)

var ErrInvalidBudget = New(CodeValidationFailed, "gig", "Budget cannot be negative", http.StatusBadRequest)

// =========================================================================
// Bids
// =========================================================================

var ErrBidNotFound = New(CodeNotFound, "bid", "Bid not found", http.StatusNotFound)

var ErrOwnGigBid = New(CodeForbidden, "bid", "You cannot bid on your own gig", http.StatusForbidden)

var ErrNotBidOwner = New(CodeForbidden, "bid", "You can only modify your own bids", http.StatusForbidden)

// ErrBidNotPending - ставка уже hired/rejected
var ErrBidNotPending = New(CodeConflict, "bid", "This bid is no longer available", http.StatusConflict)

var ErrDuplicateBid = New(CodeAlreadyExists, "bid", "You have already placed a bid on this gig", http.StatusConflict)

var ErrInvalidPrice = New(CodeValidationFailed, "bid", "Price cannot be negative", http.StatusBadRequest)

var ErrEmptyBidMessage = New(CodeValidationFailed, "bid", "Message is required", http.StatusBadRequest)

// ErrEmptyBidUpdate - в запросе нет ни price, ни message
var ErrEmptyBidUpdate = New(CodeValidationFailed, "bid", "Provide a new price or message", http.StatusBadRequest)

// ErrSiblingsChanged - набор pending-ставок изменился внутри транзакции найма
var ErrSiblingsChanged = New(CodeConflict, "hire", "Competing bids changed during hire, try again", http.StatusConflict)

// =========================================================================
// Notifications
// =========================================================================

var ErrNotificationNotFound = New(CodeNotFound, "notification", "Notification not found", http.StatusNotFound)
