package models

import (
	"time"
)

// ReferenceKind - вид справочника
type ReferenceKind string

const (
	KindMachineModel        ReferenceKind = "machine_model"        // модель техники
	KindEngineModel         ReferenceKind = "engine_model"         // модель двигателя
	KindTransmissionModel   ReferenceKind = "transmission_model"   // модель трансмиссии
	KindDriveAxleModel      ReferenceKind = "drive_axle_model"     // модель ведущего моста
	KindSteeringAxleModel   ReferenceKind = "steering_axle_model"  // модель управляемого моста
	KindServiceType         ReferenceKind = "service_type"         // вид ТО
	KindFailureNode         ReferenceKind = "failure_node"         // узел отказа
	KindRecoveryMethod      ReferenceKind = "recovery_method"      // способ восстановления
	KindServiceOrganization ReferenceKind = "service_organization" // организация, проводившая ТО
)

// ReferenceKinds - все виды справочников (для валидации и маршрутов)
var ReferenceKinds = []ReferenceKind{
	KindMachineModel, KindEngineModel, KindTransmissionModel,
	KindDriveAxleModel, KindSteeringAxleModel, KindServiceType,
	KindFailureNode, KindRecoveryMethod, KindServiceOrganization,
}

// Valid проверяет, что вид справочника известен
func (k ReferenceKind) Valid() bool {
	for _, known := range ReferenceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Reference - запись справочника, создаётся при первом текстовом упоминании
type Reference struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Kind        ReferenceKind `gorm:"size:30;not null;uniqueIndex:idx_reference_kind_name" json:"kind"`
	Name        string        `gorm:"size:255;not null;uniqueIndex:idx_reference_kind_name" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
}

// Machine - машина (агрегирующий корень для компонентов, ТО и рекламаций)
type Machine struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	SerialNumber string `gorm:"uniqueIndex;size:50;not null" json:"serial_number"` // Зав. № машины

	// Ссылки на справочники моделей
	MachineModelID      *uint      `json:"machine_model_id"`
	MachineModel        *Reference `gorm:"foreignKey:MachineModelID;constraint:OnDelete:RESTRICT" json:"machine_model,omitempty"`
	EngineModelID       *uint      `json:"engine_model_id"`
	EngineModel         *Reference `gorm:"foreignKey:EngineModelID;constraint:OnDelete:RESTRICT" json:"engine_model,omitempty"`
	TransmissionModelID *uint      `json:"transmission_model_id"`
	TransmissionModel   *Reference `gorm:"foreignKey:TransmissionModelID;constraint:OnDelete:RESTRICT" json:"transmission_model,omitempty"`
	DriveAxleModelID    *uint      `json:"drive_axle_model_id"`
	DriveAxleModel      *Reference `gorm:"foreignKey:DriveAxleModelID;constraint:OnDelete:RESTRICT" json:"drive_axle_model,omitempty"`
	SteeringAxleModelID *uint      `json:"steering_axle_model_id"`
	SteeringAxleModel   *Reference `gorm:"foreignKey:SteeringAxleModelID;constraint:OnDelete:RESTRICT" json:"steering_axle_model,omitempty"`

	// Заводские номера компонентов
	EngineSerial       string `gorm:"size:50" json:"engine_serial"`       // Зав. № двигателя
	TransmissionSerial string `gorm:"size:50" json:"transmission_serial"` // Зав. № трансмиссии
	DriveAxleSerial    string `gorm:"size:50" json:"drive_axle_serial"`   // Зав. № ведущего моста
	SteeringAxleSerial string `gorm:"size:50" json:"steering_axle_serial"`

	// Договор и поставка
	SupplyContract  string    `gorm:"size:255" json:"supply_contract"` // Договор поставки №, дата
	ShipmentDate    time.Time `gorm:"type:date" json:"shipment_date"`  // Дата отгрузки с завода
	Consignee       string    `gorm:"size:255" json:"consignee"`       // Грузополучатель
	DeliveryAddress string    `gorm:"type:text" json:"delivery_address"`
	Equipment       string    `gorm:"type:text" json:"equipment"` // Комплектация (доп. опции)

	// Связи с пользователями
	ClientID         uint  `gorm:"not null" json:"client_id"` // владелец (роль client)
	Client           *User `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT" json:"client,omitempty"`
	ServiceCompanyID *uint `json:"service_company_id"` // сервисная компания (роль service), может отсутствовать
	ServiceCompany   *User `gorm:"foreignKey:ServiceCompanyID" json:"service_company,omitempty"`

	CurrentHours uint `gorm:"default:0" json:"current_hours"` // Наработка, м/час

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Components         []Component        `gorm:"foreignKey:MachineID;constraint:OnDelete:CASCADE" json:"components,omitempty"`
	MaintenanceHistory []Maintenance      `gorm:"foreignKey:MachineID;constraint:OnDelete:CASCADE" json:"maintenance_history,omitempty"`
	TechnicalServices  []TechnicalService `gorm:"foreignKey:MachineID;constraint:OnDelete:CASCADE" json:"technical_services,omitempty"`
	Reclamations       []Reclamation      `gorm:"foreignKey:MachineID;constraint:OnDelete:CASCADE" json:"reclamations,omitempty"`
}

// RequiresMaintenance проверяет, требуется ли машине обслуживание
// (какой-либо компонент изношен более чем на 85%). Требует загруженных Components.
func (m *Machine) RequiresMaintenance() bool {
	for _, comp := range m.Components {
		if comp.WearPercentage() > 85 {
			return true
		}
	}
	return false
}

// InService проверяет, находится ли машина в сервисе
// (есть незакрытое обслуживание). Требует загруженной MaintenanceHistory.
func (m *Machine) InService() bool {
	for _, mnt := range m.MaintenanceHistory {
		if mnt.EndDate == nil {
			return true
		}
	}
	return false
}

// BasicInfo - основная информация (поля 1-10), доступная без авторизации
func (m *Machine) BasicInfo() map[string]interface{} {
	refName := func(ref *Reference) string {
		if ref == nil {
			return ""
		}
		return ref.Name
	}
	return map[string]interface{}{
		"serial_number":        m.SerialNumber,
		"machine_model":        refName(m.MachineModel),
		"engine_model":         refName(m.EngineModel),
		"transmission_model":   refName(m.TransmissionModel),
		"drive_axle_model":     refName(m.DriveAxleModel),
		"steering_axle_model":  refName(m.SteeringAxleModel),
		"engine_serial":        m.EngineSerial,
		"transmission_serial":  m.TransmissionSerial,
		"drive_axle_serial":    m.DriveAxleSerial,
		"steering_axle_serial": m.SteeringAxleSerial,
	}
}

// Component - компонент машины
type Component struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:100" json:"name"`
	PartNumber    string    `gorm:"size:50" json:"part_number"`
	LifetimeHours uint      `json:"lifetime_hours"` // ресурс, м/час
	InstallDate   time.Time `gorm:"type:date" json:"install_date"`
	CurrentHours  uint      `gorm:"default:0" json:"current_hours"`
	MachineID     uint      `gorm:"not null" json:"machine_id"`
}

// WearPercentage возвращает процент износа компонента, ограниченный 100
func (c *Component) WearPercentage() int {
	if c.LifetimeHours == 0 {
		return 0
	}
	wear := int(float64(c.CurrentHours) / float64(c.LifetimeHours) * 100)
	if wear > 100 {
		return 100
	}
	return wear
}

// Типы обслуживания
const (
	MaintenanceService = "service" // техническое обслуживание
	MaintenanceRepair  = "repair"  // ремонт
	MaintenanceFailure = "failure" // поломка
)

// Maintenance - запись истории обслуживания машины
type Maintenance struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	MachineID          uint        `gorm:"not null" json:"machine_id"`
	Type               string      `gorm:"size:20;not null" json:"type"` // service, repair, failure
	StartDate          time.Time   `gorm:"not null" json:"start_date"`
	EndDate            *time.Time  `json:"end_date"` // nil — обслуживание не завершено
	Description        string      `gorm:"type:text" json:"description"`
	ServiceCompanyID   *uint       `json:"service_company_id"`
	ServiceCompany     *User       `gorm:"foreignKey:ServiceCompanyID" json:"service_company,omitempty"`
	ReplacedComponents []Component `gorm:"many2many:maintenance_replaced_components" json:"replaced_components,omitempty"`
}

// TechnicalService - запись о проведённом ТО.
// Естественный ключ для upsert: (машина, дата проведения ТО).
type TechnicalService struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	MachineID      uint       `gorm:"not null;uniqueIndex:idx_service_machine_date" json:"machine_id"`
	Machine        *Machine   `gorm:"foreignKey:MachineID" json:"machine,omitempty"`
	ServiceTypeID  *uint      `json:"service_type_id"` // Вид ТО
	ServiceType    *Reference `gorm:"foreignKey:ServiceTypeID;constraint:OnDelete:RESTRICT" json:"service_type,omitempty"`
	ServiceDate    time.Time  `gorm:"type:date;not null;uniqueIndex:idx_service_machine_date" json:"service_date"`
	OperatingHours uint       `json:"operating_hours"` // Наработка, м/час

	WorkOrderNumber string     `gorm:"size:50" json:"work_order_number"` // № заказ-наряда
	WorkOrderDate   *time.Time `gorm:"type:date" json:"work_order_date"`

	ServiceOrganizationID   *uint      `json:"service_organization_id"` // запись справочника организаций
	ServiceOrganization     *Reference `gorm:"foreignKey:ServiceOrganizationID;constraint:OnDelete:RESTRICT" json:"service_organization,omitempty"`
	ServiceOrganizationName string     `gorm:"size:200" json:"service_organization_name"` // текст, если организации нет в справочнике

	ServiceCompanyID *uint `json:"service_company_id"`
	ServiceCompany   *User `gorm:"foreignKey:ServiceCompanyID" json:"service_company,omitempty"`
}

// Reclamation - рекламация (отказ и восстановление).
// Естественный ключ для upsert: (машина, дата отказа).
type Reclamation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	MachineID      uint      `gorm:"not null;uniqueIndex:idx_reclamation_machine_date" json:"machine_id"`
	Machine        *Machine  `gorm:"foreignKey:MachineID" json:"machine,omitempty"`
	FailureDate    time.Time `gorm:"type:date;not null;uniqueIndex:idx_reclamation_machine_date" json:"failure_date"`
	OperatingHours uint      `json:"operating_hours"` // Наработка, м/час

	FailureNodeID      *uint      `json:"failure_node_id"` // Узел отказа
	FailureNode        *Reference `gorm:"foreignKey:FailureNodeID;constraint:OnDelete:RESTRICT" json:"failure_node,omitempty"`
	FailureDescription string     `gorm:"type:text" json:"failure_description"`
	RecoveryMethodID   *uint      `json:"recovery_method_id"` // Способ восстановления
	RecoveryMethod     *Reference `gorm:"foreignKey:RecoveryMethodID;constraint:OnDelete:RESTRICT" json:"recovery_method,omitempty"`
	SparePartsUsed     string     `gorm:"type:text" json:"spare_parts_used"`
	RecoveryDate       *time.Time `gorm:"type:date" json:"recovery_date"`

	ServiceCompanyID *uint `json:"service_company_id"`
	ServiceCompany   *User `gorm:"foreignKey:ServiceCompanyID" json:"service_company,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Downtime возвращает время простоя техники в днях,
// nil — если дата восстановления не заполнена
func (r *Reclamation) Downtime() *int {
	if r.RecoveryDate == nil {
		return nil
	}
	days := int(r.RecoveryDate.Sub(r.FailureDate).Hours() / 24)
	return &days
}
