package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

const (
	// Системные ошибки
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Ошибки бизнес-логики
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"

	// Аутентификация и авторизация
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeInvalidToken ErrorCode = "INVALID_TOKEN"
	CodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
)

// Kind - укрупненная категория ошибки, по ней вызывающий код решает,
// что делать дальше (ретраить, вернуть 409, залогировать и т.д.)
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalidArgument
	KindUnauthorized
	KindInfra
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "infra"
	}
}

func kindOfCode(code ErrorCode) Kind {
	switch code {
	case CodeNotFound:
		return KindNotFound
	case CodeForbidden:
		return KindForbidden
	case CodeConflict, CodeAlreadyExists, CodeInvalidStatus:
		return KindConflict
	case CodeValidationFailed:
		return KindInvalidArgument
	case CodeUnauthorized, CodeInvalidToken, CodeTokenExpired:
		return KindUnauthorized
	default:
		return KindInfra
	}
}
