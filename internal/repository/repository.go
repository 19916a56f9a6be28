package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/silant-monitoring-api/internal/config"
	"github.com/user/silant-monitoring-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository - интерфейс для работы с БД
type Repository struct {
	db *gorm.DB
}

// NewPostgresDB создаёт подключение к PostgreSQL
func NewPostgresDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate выполняет автомиграцию моделей
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Reference{},
		&models.Machine{},
		&models.Component{},
		&models.Maintenance{},
		&models.TechnicalService{},
		&models.Reclamation{},
	)
}

// NewRepository создаёт новый репозиторий
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction выполняет fn в одной транзакции БД.
// Используется импортом: справочник и запись, которая на него
// ссылается, никогда не фиксируются по отдельности.
func (r *Repository) Transaction(fn func(tx *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// === Справочники ===

// ResolveReference возвращает запись справочника по имени или создаёт её.
// Пустое имя (после обрезки пробелов) — не ошибка, возвращается nil.
// Совпадение имени строгое: регистронезависимый поиск применяется
// только к сервисным компаниям (см. FindServiceUserByCompany).
func (r *Repository) ResolveReference(kind models.ReferenceKind, rawName string) (*models.Reference, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return nil, nil
	}

	var ref models.Reference
	err := r.db.Where("kind = ? AND name = ?", kind, name).First(&ref).Error
	if err == nil {
		return &ref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ref = models.Reference{Kind: kind, Name: name}
	if err := r.db.Create(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

// ListReferences возвращает записи справочника одного вида
func (r *Repository) ListReferences(kind models.ReferenceKind) ([]models.Reference, error) {
	var refs []models.Reference
	if err := r.db.Where("kind = ?", kind).Order("name").Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// GetReferenceByID возвращает запись справочника по ID
func (r *Repository) GetReferenceByID(id uint) (*models.Reference, error) {
	var ref models.Reference
	if err := r.db.First(&ref, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// CreateReference создаёт запись справочника
func (r *Repository) CreateReference(ref *models.Reference) error {
	return r.db.Create(ref).Error
}

// UpdateReference обновляет запись справочника
func (r *Repository) UpdateReference(ref *models.Reference) error {
	return r.db.Save(ref).Error
}

// ErrReferenceInUse - попытка удалить запись справочника, на которую есть ссылки
var ErrReferenceInUse = errors.New("запись справочника используется и не может быть удалена")

// DeleteReference удаляет запись справочника.
// Запись, на которую ссылаются машины, ТО или рекламации, не удаляется.
func (r *Repository) DeleteReference(id uint) error {
	referencing := []struct {
		model  interface{}
		column string
	}{
		{&models.Machine{}, "machine_model_id"},
		{&models.Machine{}, "engine_model_id"},
		{&models.Machine{}, "transmission_model_id"},
		{&models.Machine{}, "drive_axle_model_id"},
		{&models.Machine{}, "steering_axle_model_id"},
		{&models.TechnicalService{}, "service_type_id"},
		{&models.TechnicalService{}, "service_organization_id"},
		{&models.Reclamation{}, "failure_node_id"},
		{&models.Reclamation{}, "recovery_method_id"},
	}
	for _, ref := range referencing {
		var count int64
		if err := r.db.Model(ref.model).Where(ref.column+" = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrReferenceInUse
		}
	}
	return r.db.Delete(&models.Reference{}, id).Error
}

// === Машины ===

// machineUpdateColumns - поля, перезаписываемые при повторном импорте
var machineUpdateColumns = []string{
	"machine_model_id", "engine_model_id", "transmission_model_id",
	"drive_axle_model_id", "steering_axle_model_id",
	"engine_serial", "transmission_serial", "drive_axle_serial", "steering_axle_serial",
	"shipment_date", "consignee", "delivery_address", "equipment",
	"client_id", "service_company_id", "updated_at",
}

// UpsertMachine создаёт или обновляет машину по заводскому номеру.
// Все остальные поля перезаписываются безусловно.
func (r *Repository) UpsertMachine(machine *models.Machine) error {
	machine.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns(machineUpdateColumns),
	}).Create(machine).Error
}

// GetMachineBySerial возвращает машину по заводскому номеру
func (r *Repository) GetMachineBySerial(serial string) (*models.Machine, error) {
	var machine models.Machine
	if err := r.db.Where("serial_number = ?", serial).First(&machine).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &machine, nil
}

// GetMachineBySerialFull возвращает машину по заводскому номеру
// со справочниками моделей (для публичной карточки)
func (r *Repository) GetMachineBySerialFull(serial string) (*models.Machine, error) {
	var machine models.Machine
	err := r.machinePreloads().Where("serial_number = ?", serial).First(&machine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &machine, nil
}

// GetMachineByID возвращает машину со связанными данными
func (r *Repository) GetMachineByID(id uint) (*models.Machine, error) {
	var machine models.Machine
	err := r.machinePreloads().
		Preload("Components").
		Preload("MaintenanceHistory").
		First(&machine, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &machine, nil
}

func (r *Repository) machinePreloads() *gorm.DB {
	return r.db.
		Preload("MachineModel").
		Preload("EngineModel").
		Preload("TransmissionModel").
		Preload("DriveAxleModel").
		Preload("SteeringAxleModel").
		Preload("Client").
		Preload("ServiceCompany")
}

// AccessibleMachines возвращает машины, доступные пользователю:
// клиент видит свои, сервисная организация — закреплённые за ней,
// менеджер — все. Неизвестная роль — пустой список.
func (r *Repository) AccessibleMachines(user *models.User) ([]models.Machine, error) {
	if user == nil {
		return []models.Machine{}, nil
	}

	query := r.machinePreloads().Order("shipment_date DESC")
	switch user.Role {
	case models.RoleClient:
		query = query.Where("client_id = ?", user.ID)
	case models.RoleService:
		query = query.Where("service_company_id = ?", user.ID)
	case models.RoleManager:
		// без фильтра
	default:
		return []models.Machine{}, nil
	}

	var machines []models.Machine
	if err := query.Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

// UpdateMachine обновляет машину
func (r *Repository) UpdateMachine(machine *models.Machine) error {
	return r.db.Save(machine).Error
}

// DeleteMachine удаляет машину вместе с компонентами, ТО и рекламациями
func (r *Repository) DeleteMachine(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("machine_id = ?", id).Delete(&models.Component{}).Error; err != nil {
			return err
		}
		if err := tx.Where("machine_id = ?", id).Delete(&models.Maintenance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("machine_id = ?", id).Delete(&models.TechnicalService{}).Error; err != nil {
			return err
		}
		if err := tx.Where("machine_id = ?", id).Delete(&models.Reclamation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Machine{}, id).Error
	})
}

// === ТО ===

// UpsertTechnicalService создаёт или обновляет ТО
// по естественному ключу (машина, дата проведения)
func (r *Repository) UpsertTechnicalService(ts *models.TechnicalService) error {
	var existing models.TechnicalService
	err := r.db.Where("machine_id = ? AND service_date = ?", ts.MachineID, ts.ServiceDate).
		First(&existing).Error
	if err == nil {
		ts.ID = existing.ID
		return r.db.Save(ts).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(ts).Error
}

// GetTechnicalServiceByID возвращает ТО по ID
func (r *Repository) GetTechnicalServiceByID(id uint) (*models.TechnicalService, error) {
	var ts models.TechnicalService
	err := r.db.Preload("Machine").Preload("ServiceType").
		Preload("ServiceOrganization").Preload("ServiceCompany").
		First(&ts, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ts, nil
}

// VisibleTechnicalServices возвращает ТО, видимые пользователю
func (r *Repository) VisibleTechnicalServices(user *models.User) ([]models.TechnicalService, error) {
	if user == nil {
		return []models.TechnicalService{}, nil
	}

	query := r.db.Preload("Machine").Preload("ServiceType").
		Preload("ServiceOrganization").Preload("ServiceCompany").
		Order("service_date DESC")
	switch user.Role {
	case models.RoleClient:
		query = query.Joins("JOIN machines ON machines.id = technical_services.machine_id").
			Where("machines.client_id = ?", user.ID)
	case models.RoleService:
		query = query.Where("technical_services.service_company_id = ?", user.ID)
	case models.RoleManager:
		// без фильтра
	default:
		return []models.TechnicalService{}, nil
	}

	var services []models.TechnicalService
	if err := query.Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

// UpdateTechnicalService обновляет ТО
func (r *Repository) UpdateTechnicalService(ts *models.TechnicalService) error {
	return r.db.Save(ts).Error
}

// DeleteTechnicalService удаляет ТО
func (r *Repository) DeleteTechnicalService(id uint) error {
	return r.db.Delete(&models.TechnicalService{}, id).Error
}

// === Рекламации ===

// UpsertReclamation создаёт или обновляет рекламацию
// по естественному ключу (машина, дата отказа)
func (r *Repository) UpsertReclamation(rec *models.Reclamation) error {
	var existing models.Reclamation
	err := r.db.Where("machine_id = ? AND failure_date = ?", rec.MachineID, rec.FailureDate).
		First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return r.db.Save(rec).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(rec).Error
}

// GetReclamationByID возвращает рекламацию по ID
func (r *Repository) GetReclamationByID(id uint) (*models.Reclamation, error) {
	var rec models.Reclamation
	err := r.db.Preload("Machine").Preload("FailureNode").
		Preload("RecoveryMethod").Preload("ServiceCompany").
		First(&rec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// VisibleReclamations возвращает рекламации, видимые пользователю
func (r *Repository) VisibleReclamations(user *models.User) ([]models.Reclamation, error) {
	if user == nil {
		return []models.Reclamation{}, nil
	}

	query := r.db.Preload("Machine").Preload("FailureNode").
		Preload("RecoveryMethod").Preload("ServiceCompany").
		Order("failure_date DESC")
	switch user.Role {
	case models.RoleClient:
		query = query.Joins("JOIN machines ON machines.id = reclamations.machine_id").
			Where("machines.client_id = ?", user.ID)
	case models.RoleService:
		query = query.Where("reclamations.service_company_id = ?", user.ID)
	case models.RoleManager:
		// без фильтра
	default:
		return []models.Reclamation{}, nil
	}

	var recs []models.Reclamation
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateReclamation обновляет рекламацию
func (r *Repository) UpdateReclamation(rec *models.Reclamation) error {
	return r.db.Save(rec).Error
}

// DeleteReclamation удаляет рекламацию
func (r *Repository) DeleteReclamation(id uint) error {
	return r.db.Delete(&models.Reclamation{}, id).Error
}

// === Компоненты ===

// GetComponentsByMachine возвращает компоненты машины
func (r *Repository) GetComponentsByMachine(machineID uint) ([]models.Component, error) {
	var components []models.Component
	if err := r.db.Where("machine_id = ?", machineID).Order("name").Find(&components).Error; err != nil {
		return nil, err
	}
	return components, nil
}

// GetComponentByID возвращает компонент по ID
func (r *Repository) GetComponentByID(id uint) (*models.Component, error) {
	var comp models.Component
	if err := r.db.First(&comp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comp, nil
}

// CreateComponent создаёт компонент
func (r *Repository) CreateComponent(comp *models.Component) error {
	return r.db.Create(comp).Error
}

// UpdateComponent обновляет компонент
func (r *Repository) UpdateComponent(comp *models.Component) error {
	return r.db.Save(comp).Error
}

// DeleteComponent удаляет компонент
func (r *Repository) DeleteComponent(id uint) error {
	return r.db.Delete(&models.Component{}, id).Error
}

// === История обслуживания ===

// GetMaintenanceByMachine возвращает историю обслуживания машины
func (r *Repository) GetMaintenanceByMachine(machineID uint) ([]models.Maintenance, error) {
	var history []models.Maintenance
	err := r.db.Preload("ServiceCompany").Preload("ReplacedComponents").
		Where("machine_id = ?", machineID).Order("start_date DESC").Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// GetMaintenanceByID возвращает запись обслуживания по ID
func (r *Repository) GetMaintenanceByID(id uint) (*models.Maintenance, error) {
	var mnt models.Maintenance
	err := r.db.Preload("ServiceCompany").Preload("ReplacedComponents").First(&mnt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mnt, nil
}

// CreateMaintenance создаёт запись обслуживания
func (r *Repository) CreateMaintenance(mnt *models.Maintenance) error {
	return r.db.Create(mnt).Error
}

// UpdateMaintenance обновляет запись обслуживания
func (r *Repository) UpdateMaintenance(mnt *models.Maintenance) error {
	return r.db.Save(mnt).Error
}

// DeleteMaintenance удаляет запись обслуживания
func (r *Repository) DeleteMaintenance(id uint) error {
	return r.db.Delete(&models.Maintenance{}, id).Error
}

// === Сводка ===

// FleetStatus - сводные показатели автопарка в рамках видимости пользователя
type FleetStatus struct {
	Machines           int64 `json:"machines"`
	OpenReclamations   int64 `json:"open_reclamations"`
	InService          int64 `json:"in_service"`
	RequireMaintenance int64 `json:"require_maintenance"`
	TechnicalServices  int64 `json:"technical_services"`
	ReclamationsTotal  int64 `json:"reclamations_total"`
}

// GetFleetStatus возвращает сводку по машинам, доступным пользователю
func (r *Repository) GetFleetStatus(user *models.User) (*FleetStatus, error) {
	machines, err := r.AccessibleMachines(user)
	if err != nil {
		return nil, err
	}

	status := &FleetStatus{Machines: int64(len(machines))}
	for _, m := range machines {
		full, err := r.GetMachineByID(m.ID)
		if err != nil {
			return nil, err
		}
		if full == nil {
			continue
		}
		if full.InService() {
			status.InService++
		}
		if full.RequiresMaintenance() {
			status.RequireMaintenance++
		}
	}

	services, err := r.VisibleTechnicalServices(user)
	if err != nil {
		return nil, err
	}
	status.TechnicalServices = int64(len(services))

	recs, err := r.VisibleReclamations(user)
	if err != nil {
		return nil, err
	}
	status.ReclamationsTotal = int64(len(recs))
	for _, rec := range recs {
		if rec.RecoveryDate == nil {
			status.OpenReclamations++
		}
	}

	return status, nil
}
