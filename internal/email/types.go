package email

// Email - одно письмо одному получателю
type Email struct {
	From     string
	FromName string
	To       string
	ToName   string
	Subject  string
	Body     string
	HTMLBody string
}

// TemplateData представляет данные для шаблонов писем
type TemplateData map[string]any

// Имена шаблонов
const (
	TemplateBidCreated           = "bid_created"
	TemplateBidHired             = "bid_hired"
	TemplateHireConfirmation     = "hire_confirmation"
	TemplateBidRejected          = "bid_rejected"
	TemplateBidUpdatedFreelancer = "bid_updated_freelancer"
	TemplateBidUpdatedOwner      = "bid_updated_owner"
	TemplateBidDeletedFreelancer = "bid_deleted_freelancer"
	TemplateBidDeletedOwner      = "bid_deleted_owner"
)
