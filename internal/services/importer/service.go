// Package importer реализует загрузку данных об автопарке из Excel-книги.
//
// Книга содержит три листа: машины, ТО и рекламации. Проходы выполняются
// строго в этом порядке — ТО и рекламации ссылаются на машины,
// созданные первым проходом. Отсутствие обязательной колонки прерывает
// проход по листу целиком; строка с неизвестным заводским номером
// пропускается с предупреждением, остальные строки обрабатываются.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/repository"
	"github.com/xuri/excelize/v2"
)

// Service - служба импорта данных из Excel
type Service struct {
	repo *repository.Repository
}

// NewService создаёт новую службу импорта
func NewService(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// Report - итог прохода по одному листу
type Report struct {
	Sheet     string   `json:"sheet"`
	Processed int      `json:"processed"` // строк записано (создано или обновлено)
	Skipped   int      `json:"skipped"`   // строк пропущено
	Warnings  []string `json:"warnings"`
}

// ImportFile импортирует книгу по пути на диске
func (s *Service) ImportFile(path string) ([]Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл %s: %w", path, err)
	}
	defer f.Close()
	return s.importWorkbook(f)
}

// ImportReader импортирует книгу из потока (загрузка через HTTP)
func (s *Service) ImportReader(r io.Reader) ([]Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать книгу: %w", err)
	}
	defer f.Close()
	return s.importWorkbook(f)
}

// importWorkbook выполняет три прохода в фиксированном порядке.
// Ошибка схемы прерывает работу; уже завершённые проходы не откатываются.
func (s *Service) importWorkbook(f *excelize.File) ([]Report, error) {
	var reports []Report

	machinesReport, err := s.importMachines(f)
	if machinesReport != nil {
		reports = append(reports, *machinesReport)
	}
	if err != nil {
		return reports, err
	}

	servicesReport, err := s.importTechnicalServices(f)
	if servicesReport != nil {
		reports = append(reports, *servicesReport)
	}
	if err != nil {
		return reports, err
	}

	reclamationsReport, err := s.importReclamations(f)
	if reclamationsReport != nil {
		reports = append(reports, *reclamationsReport)
	}
	return reports, err
}

// sheetRows возвращает строки листа и индексы колонок по схеме
func sheetRows(f *excelize.File, schema *sheetSchema) (string, [][]string, map[string]int, error) {
	sheetName := schema.name
	if sheetName == "" {
		sheetName = f.GetSheetName(schema.index)
		if sheetName == "" {
			return "", nil, nil, fmt.Errorf("в книге нет листа с индексом %d", schema.index)
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return "", nil, nil, fmt.Errorf("лист %q не найден: %w", sheetName, err)
	}
	if len(rows) <= schema.headerRow {
		return "", nil, nil, &SchemaError{Sheet: sheetName, Headers: []string{"<строка заголовков>"}}
	}

	cols, err := schema.resolve(sheetName, rows[schema.headerRow])
	if err != nil {
		return "", nil, nil, err
	}
	return sheetName, rows[schema.headerRow+1:], cols, nil
}

// importMachines - проход 1: машины, upsert по заводскому номеру
func (s *Service) importMachines(f *excelize.File) (*Report, error) {
	sheetName, rows, cols, err := sheetRows(f, &machineSchema)
	if err != nil {
		return nil, err
	}
	report := &Report{Sheet: sheetName}

	for _, row := range rows {
		if emptyRow(row) {
			continue
		}

		serial := cell(row, cols["serial_number"])
		buyer := cell(row, cols["buyer"])
		if serial == "" {
			report.warn("пропущена строка без заводского номера машины")
			continue
		}
		if buyer == "" {
			report.warn(fmt.Sprintf("для машины %s не указан покупатель", serial))
			continue
		}

		err := s.repo.Transaction(func(tx *repository.Repository) error {
			machineModel, err := tx.ResolveReference(models.KindMachineModel, cell(row, cols["machine_model"]))
			if err != nil {
				return err
			}
			engineModel, err := tx.ResolveReference(models.KindEngineModel, cell(row, cols["engine_model"]))
			if err != nil {
				return err
			}
			transmissionModel, err := tx.ResolveReference(models.KindTransmissionModel, cell(row, cols["transmission_model"]))
			if err != nil {
				return err
			}
			driveAxleModel, err := tx.ResolveReference(models.KindDriveAxleModel, cell(row, cols["drive_axle_model"]))
			if err != nil {
				return err
			}
			steeringAxleModel, err := tx.ResolveReference(models.KindSteeringAxleModel, cell(row, cols["steering_axle_model"]))
			if err != nil {
				return err
			}

			client, err := tx.GetOrCreateClient(buyer)
			if err != nil {
				return err
			}
			serviceCompany, err := tx.GetOrCreateServiceCompany(cell(row, cols["service_company"]))
			if err != nil {
				return err
			}

			machine := models.Machine{
				SerialNumber:        serial,
				MachineModelID:      refID(machineModel),
				EngineModelID:       refID(engineModel),
				TransmissionModelID: refID(transmissionModel),
				DriveAxleModelID:    refID(driveAxleModel),
				SteeringAxleModelID: refID(steeringAxleModel),
				EngineSerial:        cell(row, cols["engine_serial"]),
				TransmissionSerial:  cell(row, cols["transmission_serial"]),
				DriveAxleSerial:     cell(row, cols["drive_axle_serial"]),
				SteeringAxleSerial:  cell(row, cols["steering_axle_serial"]),
				ShipmentDate:        dateOrZero(cell(row, cols["shipment_date"])),
				Consignee:           cell(row, cols["consignee"]),
				DeliveryAddress:     cell(row, cols["delivery_address"]),
				Equipment:           cell(row, cols["equipment"]),
				ClientID:            client.ID,
			}
			if serviceCompany != nil {
				machine.ServiceCompanyID = &serviceCompany.ID
			}
			return tx.UpsertMachine(&machine)
		})
		if err != nil {
			report.warn(fmt.Sprintf("машина %s: %v", serial, err))
			continue
		}
		report.Processed++
	}
	return report, nil
}

// importTechnicalServices - проход 2: ТО, upsert по (машина, дата проведения)
func (s *Service) importTechnicalServices(f *excelize.File) (*Report, error) {
	sheetName, rows, cols, err := sheetRows(f, &serviceSchema)
	if err != nil {
		return nil, err
	}
	report := &Report{Sheet: sheetName}

	for _, row := range rows {
		if emptyRow(row) {
			continue
		}

		serial := cell(row, cols["serial_number"])
		machine, err := s.repo.GetMachineBySerial(serial)
		if err != nil {
			return report, err
		}
		if machine == nil {
			report.warn(fmt.Sprintf("Машина с номером %s не найдена", serial))
			continue
		}

		err = s.repo.Transaction(func(tx *repository.Repository) error {
			serviceType, err := tx.ResolveReference(models.KindServiceType, cell(row, cols["service_type"]))
			if err != nil {
				return err
			}

			// Трёхвариантное определение организации, проводившей ТО:
			// пусто — сервисная компания машины; совпадает с компанией
			// сервисного пользователя — этот пользователь плюс запись
			// справочника; иначе — свободный текст плюс запись справочника.
			orgText := cell(row, cols["service_organization"])
			var orgRef *models.Reference
			orgName := ""
			companyID := machine.ServiceCompanyID
			if orgText != "" {
				serviceUser, err := tx.FindServiceUserByCompany(orgText)
				if err != nil {
					return err
				}
				orgRef, err = tx.ResolveReference(models.KindServiceOrganization, orgText)
				if err != nil {
					return err
				}
				if serviceUser != nil {
					companyID = &serviceUser.ID
				} else {
					orgName = orgText
				}
			}

			ts := models.TechnicalService{
				MachineID:               machine.ID,
				ServiceTypeID:           refID(serviceType),
				ServiceDate:             dateOrZero(cell(row, cols["service_date"])),
				OperatingHours:          hours(cell(row, cols["operating_hours"])),
				WorkOrderNumber:         cell(row, cols["work_order_number"]),
				WorkOrderDate:           parseDate(cell(row, cols["work_order_date"])),
				ServiceOrganizationID:   refID(orgRef),
				ServiceOrganizationName: orgName,
				ServiceCompanyID:        companyID,
			}
			return tx.UpsertTechnicalService(&ts)
		})
		if err != nil {
			report.warn(fmt.Sprintf("ТО для машины %s: %v", serial, err))
			continue
		}
		report.Processed++
	}
	return report, nil
}

// importReclamations - проход 3: рекламации, upsert по (машина, дата отказа)
func (s *Service) importReclamations(f *excelize.File) (*Report, error) {
	sheetName, rows, cols, err := sheetRows(f, &reclamationSchema)
	if err != nil {
		return nil, err
	}
	report := &Report{Sheet: sheetName}

	for _, row := range rows {
		if emptyRow(row) {
			continue
		}

		serial := cell(row, cols["serial_number"])
		machine, err := s.repo.GetMachineBySerial(serial)
		if err != nil {
			return report, err
		}
		if machine == nil {
			report.warn(fmt.Sprintf("Машина с номером %s не найдена для рекламации", serial))
			continue
		}

		err = s.repo.Transaction(func(tx *repository.Repository) error {
			failureNode, err := tx.ResolveReference(models.KindFailureNode, cell(row, cols["failure_node"]))
			if err != nil {
				return err
			}
			recoveryMethod, err := tx.ResolveReference(models.KindRecoveryMethod, cell(row, cols["recovery_method"]))
			if err != nil {
				return err
			}

			// Сервисная компания из колонки; если не нашлась —
			// сервисная компания машины
			companyID := machine.ServiceCompanyID
			if text := cell(row, cols["service_company"]); text != "" {
				serviceUser, err := tx.FindServiceUserByCompany(text)
				if err != nil {
					return err
				}
				if serviceUser != nil {
					companyID = &serviceUser.ID
				}
			}

			rec := models.Reclamation{
				MachineID:          machine.ID,
				FailureDate:        dateOrZero(cell(row, cols["failure_date"])),
				OperatingHours:     hours(cell(row, cols["operating_hours"])),
				FailureNodeID:      refID(failureNode),
				FailureDescription: cell(row, cols["failure_description"]),
				RecoveryMethodID:   refID(recoveryMethod),
				SparePartsUsed:     cell(row, cols["spare_parts"]),
				RecoveryDate:       parseDate(cell(row, cols["recovery_date"])),
				ServiceCompanyID:   companyID,
			}
			return tx.UpsertReclamation(&rec)
		})
		if err != nil {
			report.warn(fmt.Sprintf("рекламация для машины %s: %v", serial, err))
			continue
		}
		report.Processed++
	}
	return report, nil
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	r.Skipped++
}

// cell возвращает значение ячейки с обрезанными пробелами;
// отсутствующая колонка или короткая строка — пустая строка
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func refID(ref *models.Reference) *uint {
	if ref == nil {
		return nil
	}
	return &ref.ID
}

// dateLayouts - форматы дат, встречающиеся в выгрузках
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"01-02-06",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04",
}

// parseDate разбирает дату из ячейки; пустая или нераспознанная
// ячейка — nil. Числовые значения трактуются как серийные даты Excel.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func dateOrZero(value string) time.Time {
	if d := parseDate(value); d != nil {
		return *d
	}
	return time.Time{}
}

// hours разбирает наработку; пустая ячейка — 0
func hours(value string) uint {
	if value == "" {
		return 0
	}
	if n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64); err == nil && n > 0 {
		return uint(n)
	}
	return 0
}
