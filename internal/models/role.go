package models

// Role - роль пользователя, определяет видимость и права редактирования
type Role string

const (
	RoleClient  Role = "client"  // клиент (владелец техники)
	RoleService Role = "service" // сервисная организация
	RoleManager Role = "manager" // менеджер завода
)

// Valid проверяет, что роль — одна из известных
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleService, RoleManager:
		return true
	}
	return false
}
