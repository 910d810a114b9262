package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/models"
)

// registerCustomRules регистрирует кастомные правила
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// без правил приложение запускать нельзя
			logger.Fatal("failed to register custom validation tag", "tag", tag, "error", err)
		}
	}

	// 'not-blank': строка не пустая после TrimSpace
	mustRegister("not-blank", validateNotBlank)

	// 'is-notification-type': тип уведомления из statuses.go
	mustRegister("is-notification-type", validateNotificationType)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateNotificationType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.NotificationType(value) {
	case models.NotificationTypeNewBid, models.NotificationTypeBidHired, models.NotificationTypeBidRejected:
		return true
	}
	return false
}
