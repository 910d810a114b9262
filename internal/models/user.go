package models

// User - только чтение. Таблицу наполняет сервис аутентификации,
// здесь она нужна для имен и email в уведомлениях.
type User struct {
	BaseModel
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username string `gorm:"size:100;not null" json:"username"`
	FullName string `gorm:"size:200" json:"full_name"`
}

// DisplayName - полное имя, потом username, потом "there"
func (u *User) DisplayName() string {
	if u == nil {
		return "there"
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "there"
}
