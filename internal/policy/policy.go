// Package policy содержит правила доступа по ролям.
//
// Один и тот же набор предикатов применяется в двух точках:
// при выборке (репозиторий не возвращает чужие записи) и при
// изменении (обработчик отклоняет запись, которую нельзя редактировать).
package policy

import (
	"github.com/user/silant-monitoring-api/internal/models"
)

// ownership - принадлежность записи: владелец машины и сервисная компания
type ownership struct {
	clientID         uint
	serviceCompanyID *uint
}

// visibleTo - единая таблица видимости:
// менеджер видит всё, клиент — записи своих машин,
// сервисная организация — записи, закреплённые за ней.
func visibleTo(user *models.User, o ownership) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case models.RoleManager:
		return true
	case models.RoleClient:
		return o.clientID != 0 && o.clientID == user.ID
	case models.RoleService:
		return o.serviceCompanyID != nil && *o.serviceCompanyID == user.ID
	}
	return false
}

// editableBy - единая таблица прав на изменение:
// менеджер редактирует всё, сервисная организация — свои записи
// (если для вида записи это разрешено), клиент — ничего.
func editableBy(user *models.User, o ownership, serviceMayEdit bool) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case models.RoleManager:
		return true
	case models.RoleService:
		return serviceMayEdit && o.serviceCompanyID != nil && *o.serviceCompanyID == user.ID
	}
	return false
}

// MachineVisible - видна ли машина пользователю
func MachineVisible(user *models.User, m *models.Machine) bool {
	return visibleTo(user, ownership{clientID: m.ClientID, serviceCompanyID: m.ServiceCompanyID})
}

// MachineEditable - машины редактирует только менеджер
func MachineEditable(user *models.User) bool {
	return editableBy(user, ownership{}, false)
}

// TechnicalServiceVisible - видно ли ТО пользователю.
// Для клиента нужна загруженная машина (видимость через её владельца).
func TechnicalServiceVisible(user *models.User, ts *models.TechnicalService) bool {
	o := ownership{serviceCompanyID: ts.ServiceCompanyID}
	if ts.Machine != nil {
		o.clientID = ts.Machine.ClientID
	}
	return visibleTo(user, o)
}

// TechnicalServiceEditable - может ли пользователь редактировать ТО
func TechnicalServiceEditable(user *models.User, ts *models.TechnicalService) bool {
	return editableBy(user, ownership{serviceCompanyID: ts.ServiceCompanyID}, true)
}

// ReclamationVisible - видна ли рекламация пользователю
func ReclamationVisible(user *models.User, rec *models.Reclamation) bool {
	o := ownership{serviceCompanyID: rec.ServiceCompanyID}
	if rec.Machine != nil {
		o.clientID = rec.Machine.ClientID
	}
	return visibleTo(user, o)
}

// ReclamationEditable - может ли пользователь редактировать рекламацию
func ReclamationEditable(user *models.User, rec *models.Reclamation) bool {
	return editableBy(user, ownership{serviceCompanyID: rec.ServiceCompanyID}, true)
}

// ComponentEditable - компоненты редактирует менеджер
// или сервисная компания, закреплённая за машиной
func ComponentEditable(user *models.User, machine *models.Machine) bool {
	return editableBy(user, ownership{serviceCompanyID: machine.ServiceCompanyID}, true)
}

// MaintenanceEditable - запись обслуживания редактирует менеджер
// или сервисная компания, проводившая работы
func MaintenanceEditable(user *models.User, mnt *models.Maintenance) bool {
	return editableBy(user, ownership{serviceCompanyID: mnt.ServiceCompanyID}, true)
}

// CanEditReferences - справочники редактирует только менеджер
func CanEditReferences(user *models.User) bool {
	return user != nil && user.Role == models.RoleManager
}
