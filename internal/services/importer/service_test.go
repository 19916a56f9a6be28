package importer

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	repo := repository.NewRepository(db)
	return NewService(repo), repo
}

var machineHeaders = []interface{}{
	"Модель техники", "Зав. № машины",
	"Модель двигателя", "Зав. № двигателя",
	"Модель трансмиссии (производитель, артикул)", "Зав. № трансмиссии",
	"Модель ведущего моста", "Зав. № ведущего моста",
	"Модель управляемого моста", "Зав. № управляемого моста",
	"Покупатель", "Сервисная компания", "Дата отгрузки с завода",
	"Грузополучатель (конечный потребитель)", "Адрес поставки (эксплуатации)",
	"Комплектация (доп. опции)",
}

// machineRow собирает строку листа машин в порядке machineHeaders
func machineRow(serial, buyer, serviceCompany string) []interface{} {
	return []interface{}{
		"ПД1,5", serial,
		"Кубота", "Д-" + serial,
		"10VA", "Т-" + serial,
		"ВМ-20", "ВМ-" + serial,
		"УМ-10", "УМ-" + serial,
		buyer, serviceCompany, "2023-01-15",
		"ИП Трудников", "п. Знаменский",
		"Стандарт",
	}
}

// newWorkbook строит книгу с тремя листами в формате выгрузки
func newWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()

	// лист машин: две титульные строки, заголовки на третьей
	machines := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(machines, "A1", "Выгрузка по машинам"))
	require.NoError(t, f.SetSheetRow(machines, "A3", &machineHeaders))

	_, err := f.NewSheet("ТО output")
	require.NoError(t, err)
	serviceHeaders := []interface{}{
		"Зав. № машины", "Вид ТО", "Дата проведения ТО", "Наработка, м/час",
		"№ заказ-наряда", "Дата заказ-наряда", "Организация, проводившая ТО",
	}
	require.NoError(t, f.SetSheetRow("ТО output", "A1", &serviceHeaders))

	_, err = f.NewSheet("рекламация output")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("рекламация output", "A1", "Рекламации"))
	reclamationHeaders := []interface{}{
		"Зав. № машины", "Дата отказа", "Наработка, м/час",
		"Узел отказа", "Описание отказа", "Способ восстановления",
		"Используемые запасные части", "Дата восстановления", "Сервисная компания",
	}
	require.NoError(t, f.SetSheetRow("рекламация output", "A2", &reclamationHeaders))

	return f
}

func runImport(t *testing.T, s *Service, f *excelize.File) ([]Report, error) {
	t.Helper()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return s.ImportReader(bytes.NewReader(buf.Bytes()))
}

func TestImportWorkbook(t *testing.T) {
	s, repo := newTestService(t)

	f := newWorkbook(t)
	machines := f.GetSheetName(0)
	row := machineRow("0017", "ip-trudnikov", "Promtech Service")
	require.NoError(t, f.SetSheetRow(machines, "A4", &row))

	tsRow := []interface{}{
		"0017", "ТО-1 (100 м/час)", "2023-04-10", "105",
		"2023-17КЕ", "2023-04-09", "",
	}
	require.NoError(t, f.SetSheetRow("ТО output", "A2", &tsRow))

	recRow := []interface{}{
		"0017", "2023-06-01", "230",
		"Гидравлика", "Течь из-под уплотнения", "Замена узла",
		"Уплотнение", "2023-06-06", "",
	}
	require.NoError(t, f.SetSheetRow("рекламация output", "A3", &recRow))

	reports, err := runImport(t, s, f)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for _, report := range reports {
		assert.Equal(t, 1, report.Processed, report.Sheet)
		assert.Equal(t, 0, report.Skipped, report.Sheet)
		assert.Empty(t, report.Warnings, report.Sheet)
	}

	machine, err := repo.GetMachineBySerialFull("0017")
	require.NoError(t, err)
	require.NotNil(t, machine)
	assert.Equal(t, "Д-0017", machine.EngineSerial)
	require.NotNil(t, machine.MachineModel)
	assert.Equal(t, "ПД1,5", machine.MachineModel.Name)
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), machine.ShipmentDate)

	// покупатель и сервисная компания заведены автоматически
	client, err := repo.GetUserByUsername("ip-trudnikov")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, models.RoleClient, client.Role)
	assert.Equal(t, client.ID, machine.ClientID)

	serviceUser, err := repo.FindServiceUserByCompany("promtech service")
	require.NoError(t, err)
	require.NotNil(t, serviceUser)
	require.NotNil(t, machine.ServiceCompanyID)
	assert.Equal(t, serviceUser.ID, *machine.ServiceCompanyID)

	// ТО без организации наследует сервисную компанию машины
	services, err := repo.VisibleTechnicalServices(serviceUser)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, machine.ID, services[0].MachineID)
	assert.Equal(t, uint(105), services[0].OperatingHours)
	require.NotNil(t, services[0].ServiceType)
	assert.Equal(t, "ТО-1 (100 м/час)", services[0].ServiceType.Name)

	recs, err := repo.VisibleReclamations(serviceUser)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].RecoveryDate)
	downtime := recs[0].Downtime()
	require.NotNil(t, downtime)
	assert.Equal(t, 5, *downtime)
}

func TestImportIdempotent(t *testing.T) {
	s, repo := newTestService(t)

	f := newWorkbook(t)
	machines := f.GetSheetName(0)
	row := machineRow("0021", "zao-vektor", "")
	require.NoError(t, f.SetSheetRow(machines, "A4", &row))
	tsRow := []interface{}{"0021", "ТО-0", "2023-02-01", "10", "", "", ""}
	require.NoError(t, f.SetSheetRow("ТО output", "A2", &tsRow))
	recRow := []interface{}{"0021", "2023-03-01", "40", "", "", "", "", "", ""}
	require.NoError(t, f.SetSheetRow("рекламация output", "A3", &recRow))

	_, err := runImport(t, s, f)
	require.NoError(t, err)
	_, err = runImport(t, s, f)
	require.NoError(t, err)

	machines2, err := repo.AccessibleMachines(&models.User{ID: 1, Role: models.RoleManager})
	require.NoError(t, err)
	assert.Len(t, machines2, 1)

	services, err := repo.VisibleTechnicalServices(&models.User{ID: 1, Role: models.RoleManager})
	require.NoError(t, err)
	assert.Len(t, services, 1)

	recs, err := repo.VisibleReclamations(&models.User{ID: 1, Role: models.RoleManager})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestImportSkipsUnknownSerial(t *testing.T) {
	s, _ := newTestService(t)

	f := newWorkbook(t)
	machines := f.GetSheetName(0)
	row := machineRow("0030", "ip-sidorov", "")
	require.NoError(t, f.SetSheetRow(machines, "A4", &row))

	known := []interface{}{"0030", "ТО-1", "2023-05-01", "100", "", "", ""}
	unknown := []interface{}{"9999", "ТО-1", "2023-05-02", "200", "", "", ""}
	require.NoError(t, f.SetSheetRow("ТО output", "A2", &known))
	require.NoError(t, f.SetSheetRow("ТО output", "A3", &unknown))

	reports, err := runImport(t, s, f)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	tsReport := reports[1]
	assert.Equal(t, 1, tsReport.Processed)
	assert.Equal(t, 1, tsReport.Skipped)
	require.Len(t, tsReport.Warnings, 1)
	assert.Contains(t, tsReport.Warnings[0], "Машина с номером 9999 не найдена")
}

func TestImportSkipsRowWithoutBuyer(t *testing.T) {
	s, repo := newTestService(t)

	f := newWorkbook(t)
	machines := f.GetSheetName(0)
	good := machineRow("0041", "ip-petrov", "")
	bad := machineRow("0042", "", "")
	require.NoError(t, f.SetSheetRow(machines, "A4", &good))
	require.NoError(t, f.SetSheetRow(machines, "A5", &bad))

	reports, err := runImport(t, s, f)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, 1, reports[0].Processed)
	assert.Equal(t, 1, reports[0].Skipped)
	require.Len(t, reports[0].Warnings, 1)
	assert.Contains(t, reports[0].Warnings[0], "0042")

	missing, err := repo.GetMachineBySerial("0042")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestImportMissingRequiredColumn(t *testing.T) {
	s, repo := newTestService(t)

	f := excelize.NewFile()
	machines := f.GetSheetName(0)
	// заголовки без колонки покупателя
	headers := make([]interface{}, 0, len(machineHeaders)-1)
	for _, h := range machineHeaders {
		if h == "Покупатель" {
			continue
		}
		headers = append(headers, h)
	}
	require.NoError(t, f.SetSheetRow(machines, "A3", &headers))

	_, err := runImport(t, s, f)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Headers, "Покупатель")

	// ни одна строка не обработана
	all, err := repo.AccessibleMachines(&models.User{ID: 1, Role: models.RoleManager})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportServiceOrganizationResolution(t *testing.T) {
	s, repo := newTestService(t)

	f := newWorkbook(t)
	machines := f.GetSheetName(0)
	row := machineRow("0050", "ip-orlov", "Promtech Service")
	require.NoError(t, f.SetSheetRow(machines, "A4", &row))

	// организация совпадает с компанией сервисного пользователя (другим регистром)
	matched := []interface{}{"0050", "ТО-1", "2023-04-01", "100", "", "", "PROMTECH SERVICE"}
	// незнакомая организация остаётся свободным текстом
	freeText := []interface{}{"0050", "ТО-2", "2023-05-01", "200", "", "", "ИП Самообслуживание"}
	// пустая колонка наследует сервисную компанию машины
	inherited := []interface{}{"0050", "ТО-3", "2023-06-01", "300", "", "", ""}
	require.NoError(t, f.SetSheetRow("ТО output", "A2", &matched))
	require.NoError(t, f.SetSheetRow("ТО output", "A3", &freeText))
	require.NoError(t, f.SetSheetRow("ТО output", "A4", &inherited))

	reports, err := runImport(t, s, f)
	require.NoError(t, err)
	assert.Equal(t, 3, reports[1].Processed)

	serviceUser, err := repo.FindServiceUserByCompany("Promtech Service")
	require.NoError(t, err)
	require.NotNil(t, serviceUser)

	services, err := repo.VisibleTechnicalServices(&models.User{ID: 999, Role: models.RoleManager})
	require.NoError(t, err)
	require.Len(t, services, 3)

	byDate := map[string]models.TechnicalService{}
	for _, ts := range services {
		byDate[ts.ServiceDate.Format("2006-01-02")] = ts
	}

	m := byDate["2023-04-01"]
	require.NotNil(t, m.ServiceCompanyID)
	assert.Equal(t, serviceUser.ID, *m.ServiceCompanyID)
	assert.Empty(t, m.ServiceOrganizationName)
	require.NotNil(t, m.ServiceOrganization)

	ft := byDate["2023-05-01"]
	assert.Equal(t, "ИП Самообслуживание", ft.ServiceOrganizationName)
	require.NotNil(t, ft.ServiceCompanyID)
	assert.Equal(t, serviceUser.ID, *ft.ServiceCompanyID, "компания машины остаётся по умолчанию")

	inh := byDate["2023-06-01"]
	require.NotNil(t, inh.ServiceCompanyID)
	assert.Equal(t, serviceUser.ID, *inh.ServiceCompanyID)
	assert.Nil(t, inh.ServiceOrganizationID)
}

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC)
	for _, value := range []string{"2023-04-10", "10.04.2023", "04-10-23"} {
		got := parseDate(value)
		if assert.NotNil(t, got, value) {
			assert.Equal(t, want, *got, value)
		}
	}

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("не дата"))

	// серийная дата Excel
	serial := parseDate(fmt.Sprintf("%d", 45026))
	require.NotNil(t, serial)
	assert.Equal(t, want, *serial)
}

func TestHours(t *testing.T) {
	assert.Equal(t, uint(0), hours(""))
	assert.Equal(t, uint(0), hours("нет данных"))
	assert.Equal(t, uint(105), hours("105"))
	assert.Equal(t, uint(105), hours("105,6"))
}
