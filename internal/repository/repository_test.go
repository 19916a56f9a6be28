package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/user/silant-monitoring-api/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewRepository(db)
}

func seedUsers(t *testing.T, repo *Repository) (client, service *models.User) {
	t.Helper()
	client = &models.User{Username: "ip-petrov", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(client))
	company := "Promtech Service"
	service = &models.User{Username: "promtech", Role: models.RoleService, Company: &company}
	require.NoError(t, repo.CreateUser(service))
	return client, service
}

func testMachine(serial string, clientID uint, serviceCompanyID *uint) *models.Machine {
	return &models.Machine{
		SerialNumber:     serial,
		ClientID:         clientID,
		ServiceCompanyID: serviceCompanyID,
		Consignee:        "ИП Петров",
		ShipmentDate:     time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolveReference(t *testing.T) {
	repo := newTestRepo(t)

	ref, err := repo.ResolveReference(models.KindMachineModel, "ПД1,5")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "ПД1,5", ref.Name)

	// повторный запрос возвращает ту же запись, а не дубликат
	again, err := repo.ResolveReference(models.KindMachineModel, "  ПД1,5  ")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, ref.ID, again.ID)

	// одинаковые имена в разных справочниках не конфликтуют
	other, err := repo.ResolveReference(models.KindEngineModel, "ПД1,5")
	require.NoError(t, err)
	assert.NotEqual(t, ref.ID, other.ID)

	// пустое значение не создаёт записи
	blank, err := repo.ResolveReference(models.KindMachineModel, "   ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	list, err := repo.ListReferences(models.KindMachineModel)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpsertMachine(t *testing.T) {
	repo := newTestRepo(t)
	client, service := seedUsers(t, repo)

	machine := testMachine("0017", client.ID, &service.ID)
	machine.SupplyContract = "Д-2023/17"
	machine.CurrentHours = 120
	require.NoError(t, repo.UpsertMachine(machine))

	// повторный импорт с тем же заводским номером обновляет карточку,
	// но сохраняет наработку и договор, заполненные вручную
	update := testMachine("0017", client.ID, &service.ID)
	update.Consignee = "ООО Стройпарк"
	require.NoError(t, repo.UpsertMachine(update))

	stored, err := repo.GetMachineBySerial("0017")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, machine.ID, stored.ID)
	assert.Equal(t, "ООО Стройпарк", stored.Consignee)
	assert.Equal(t, uint(120), stored.CurrentHours)
	assert.Equal(t, "Д-2023/17", stored.SupplyContract)

	var count int64
	require.NoError(t, repo.db.Model(&models.Machine{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetMachineBySerialNotFound(t *testing.T) {
	repo := newTestRepo(t)
	machine, err := repo.GetMachineBySerial("no-such")
	require.NoError(t, err)
	assert.Nil(t, machine)
}

func TestAccessibleMachines(t *testing.T) {
	repo := newTestRepo(t)
	client, service := seedUsers(t, repo)
	other := &models.User{Username: "zao-vektor", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(other))

	require.NoError(t, repo.UpsertMachine(testMachine("0001", client.ID, &service.ID)))
	require.NoError(t, repo.UpsertMachine(testMachine("0002", client.ID, nil)))
	require.NoError(t, repo.UpsertMachine(testMachine("0003", other.ID, nil)))

	clientMachines, err := repo.AccessibleMachines(client)
	require.NoError(t, err)
	assert.Len(t, clientMachines, 2)

	serviceMachines, err := repo.AccessibleMachines(service)
	require.NoError(t, err)
	require.Len(t, serviceMachines, 1)
	assert.Equal(t, "0001", serviceMachines[0].SerialNumber)

	managerMachines, err := repo.AccessibleMachines(&models.User{ID: 99, Role: models.RoleManager})
	require.NoError(t, err)
	assert.Len(t, managerMachines, 3)

	none, err := repo.AccessibleMachines(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertTechnicalService(t *testing.T) {
	repo := newTestRepo(t)
	client, service := seedUsers(t, repo)
	machine := testMachine("0005", client.ID, &service.ID)
	require.NoError(t, repo.UpsertMachine(machine))

	date := time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC)
	ts := &models.TechnicalService{
		MachineID:      machine.ID,
		ServiceDate:    date,
		OperatingHours: 55,
	}
	require.NoError(t, repo.UpsertTechnicalService(ts))

	// повторный импорт той же пары (машина, дата) обновляет запись
	next := &models.TechnicalService{
		MachineID:      machine.ID,
		ServiceDate:    date,
		OperatingHours: 60,
	}
	require.NoError(t, repo.UpsertTechnicalService(next))
	assert.Equal(t, ts.ID, next.ID)

	var count int64
	require.NoError(t, repo.db.Model(&models.TechnicalService{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	stored, err := repo.GetTechnicalServiceByID(ts.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, uint(60), stored.OperatingHours)

	// другая дата создаёт новую запись
	another := &models.TechnicalService{
		MachineID:   machine.ID,
		ServiceDate: date.AddDate(0, 1, 0),
	}
	require.NoError(t, repo.UpsertTechnicalService(another))
	assert.NotEqual(t, ts.ID, another.ID)
}

func TestUpsertReclamationKeepsCreatedAt(t *testing.T) {
	repo := newTestRepo(t)
	client, service := seedUsers(t, repo)
	machine := testMachine("0006", client.ID, &service.ID)
	require.NoError(t, repo.UpsertMachine(machine))

	failure := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := &models.Reclamation{
		MachineID:          machine.ID,
		FailureDate:        failure,
		FailureDescription: "Течь гидравлики",
	}
	require.NoError(t, repo.UpsertReclamation(rec))
	created := rec.CreatedAt

	update := &models.Reclamation{
		MachineID:          machine.ID,
		FailureDate:        failure,
		FailureDescription: "Течь гидравлики, заменён шланг",
	}
	require.NoError(t, repo.UpsertReclamation(update))
	assert.Equal(t, rec.ID, update.ID)
	assert.WithinDuration(t, created, update.CreatedAt, time.Second)

	var count int64
	require.NoError(t, repo.db.Model(&models.Reclamation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteReferenceInUse(t *testing.T) {
	repo := newTestRepo(t)
	client, _ := seedUsers(t, repo)

	ref, err := repo.ResolveReference(models.KindMachineModel, "ПД1,5")
	require.NoError(t, err)

	machine := testMachine("0009", client.ID, nil)
	machine.MachineModelID = &ref.ID
	require.NoError(t, repo.UpsertMachine(machine))

	err = repo.DeleteReference(ref.ID)
	assert.ErrorIs(t, err, ErrReferenceInUse)

	// после удаления машины запись справочника освобождается
	require.NoError(t, repo.DeleteMachine(machine.ID))
	require.NoError(t, repo.DeleteReference(ref.ID))
}

func TestUpdateUserRejectsRename(t *testing.T) {
	repo := newTestRepo(t)
	client, _ := seedUsers(t, repo)

	client.Username = "renamed"
	err := repo.UpdateUser(client)
	assert.ErrorIs(t, err, ErrUsernameImmutable)

	stored, getErr := repo.GetUserByID(client.ID)
	require.NoError(t, getErr)
	assert.Equal(t, "ip-petrov", stored.Username)
}

func TestGetOrCreateServiceCompany(t *testing.T) {
	repo := newTestRepo(t)
	_, service := seedUsers(t, repo)

	// совпадение по названию компании без учёта регистра
	found, err := repo.GetOrCreateServiceCompany("PROMTECH SERVICE")
	require.NoError(t, err)
	assert.Equal(t, service.ID, found.ID)

	// совпадение по логину
	byUsername, err := repo.GetOrCreateServiceCompany("promtech")
	require.NoError(t, err)
	assert.Equal(t, service.ID, byUsername.ID)

	// незнакомое название создаёт новую учётную запись с ролью service
	created, err := repo.GetOrCreateServiceCompany("ООО Ремсервис")
	require.NoError(t, err)
	assert.NotEqual(t, service.ID, created.ID)
	assert.Equal(t, models.RoleService, created.Role)
	require.NotNil(t, created.Company)
	assert.Equal(t, "ООО Ремсервис", *created.Company)
}

func TestGetFleetStatus(t *testing.T) {
	repo := newTestRepo(t)
	client, service := seedUsers(t, repo)

	healthy := testMachine("0021", client.ID, &service.ID)
	require.NoError(t, repo.UpsertMachine(healthy))

	worn := testMachine("0022", client.ID, &service.ID)
	require.NoError(t, repo.UpsertMachine(worn))
	require.NoError(t, repo.CreateComponent(&models.Component{
		MachineID:     worn.ID,
		Name:          "Гидронасос",
		LifetimeHours: 1000,
		CurrentHours:  900,
	}))
	require.NoError(t, repo.CreateMaintenance(&models.Maintenance{
		MachineID: worn.ID,
		Type:      models.MaintenanceRepair,
		StartDate: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
	}))

	status, err := repo.GetFleetStatus(&models.User{ID: 99, Role: models.RoleManager})
	require.NoError(t, err)
	assert.EqualValues(t, 2, status.Machines)
	assert.EqualValues(t, 1, status.InService)
	assert.EqualValues(t, 1, status.RequireMaintenance)

	// клиент другой машины не видит в сводке чужой парк
	other := &models.User{Username: "zao-vektor", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(other))
	empty, err := repo.GetFleetStatus(other)
	require.NoError(t, err)
	assert.EqualValues(t, 0, empty.Machines)
}
