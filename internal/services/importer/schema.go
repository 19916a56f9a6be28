package importer

import (
	"fmt"
	"strings"
)

// column - описание колонки листа: ключ, допустимые варианты
// заголовка и признак обязательности
type column struct {
	key      string
	headers  []string
	required bool
}

// sheetSchema - схема листа: где лист находится в книге, на какой
// строке заголовки и как сопоставляются колонки
type sheetSchema struct {
	name       string // имя листа; пустое — берётся лист по индексу
	index      int
	headerRow  int  // номер строки с заголовками (строки выше — титульные)
	exactMatch bool // true — заголовок сравнивается строго (после обрезки пробелов)
	columns    []column
}

// SchemaError - отсутствует обязательная колонка листа.
// Фатальна для всего прохода по листу: ни одна строка не обрабатывается.
type SchemaError struct {
	Sheet   string
	Headers []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("лист %q: не найдена обязательная колонка: %v", e.Sheet, e.Headers)
}

// resolve сопоставляет заголовки листа с колонками схемы.
// Возвращает индексы колонок по ключу; отсутствующие необязательные
// колонки получают индекс -1.
func (s *sheetSchema) resolve(sheetName string, headers []string) (map[string]int, error) {
	cols := make(map[string]int, len(s.columns))
	for _, col := range s.columns {
		cols[col.key] = -1
		for _, want := range col.headers {
			for i, have := range headers {
				if s.matches(want, have) {
					cols[col.key] = i
					break
				}
			}
			if cols[col.key] >= 0 {
				break
			}
		}
		if cols[col.key] < 0 && col.required {
			return nil, &SchemaError{Sheet: sheetName, Headers: col.headers}
		}
	}
	return cols, nil
}

func (s *sheetSchema) matches(want, have string) bool {
	want = strings.TrimSpace(want)
	have = strings.TrimSpace(have)
	if s.exactMatch {
		return want == have
	}
	return strings.EqualFold(want, have)
}

// Схема листа машин: первый лист книги, заголовки на третьей строке
// (выше — титульные и объединённые ячейки), названия колонок фиксированные.
var machineSchema = sheetSchema{
	index:      0,
	headerRow:  2,
	exactMatch: true,
	columns: []column{
		{key: "serial_number", headers: []string{"Зав. № машины"}, required: true},
		{key: "machine_model", headers: []string{"Модель техники"}},
		{key: "engine_model", headers: []string{"Модель двигателя"}},
		{key: "engine_serial", headers: []string{"Зав. № двигателя"}, required: true},
		{key: "transmission_model", headers: []string{"Модель трансмиссии (производитель, артикул)"}},
		{key: "transmission_serial", headers: []string{"Зав. № трансмиссии"}, required: true},
		{key: "drive_axle_model", headers: []string{"Модель ведущего моста"}},
		{key: "drive_axle_serial", headers: []string{"Зав. № ведущего моста"}, required: true},
		{key: "steering_axle_model", headers: []string{"Модель управляемого моста"}},
		{key: "steering_axle_serial", headers: []string{"Зав. № управляемого моста"}, required: true},
		{key: "buyer", headers: []string{"Покупатель"}, required: true},
		{key: "service_company", headers: []string{"Сервисная компания"}},
		{key: "shipment_date", headers: []string{"Дата отгрузки с завода"}, required: true},
		{key: "consignee", headers: []string{"Грузополучатель (конечный потребитель)"}},
		{key: "delivery_address", headers: []string{"Адрес поставки (эксплуатации)"}},
		{key: "equipment", headers: []string{"Комплектация (доп. опции)"}},
	},
}

// Схема листа ТО: заголовки в первой строке, сопоставление без учёта регистра
var serviceSchema = sheetSchema{
	name:      "ТО output",
	headerRow: 0,
	columns: []column{
		{key: "serial_number", headers: []string{"Зав. № машины"}, required: true},
		{key: "service_type", headers: []string{"Вид ТО"}, required: true},
		{key: "service_date", headers: []string{"Дата проведения ТО"}, required: true},
		{key: "operating_hours", headers: []string{"Наработка, м/час", "Наработка м/час"}, required: true},
		{key: "work_order_number", headers: []string{"№ заказ-наряда", "Номер заказ-наряда"}},
		{key: "work_order_date", headers: []string{"Дата заказ-наряда"}},
		{key: "service_organization", headers: []string{"Организация, проводившая ТО"}},
	},
}

// Схема листа рекламаций: заголовки во второй строке
var reclamationSchema = sheetSchema{
	name:      "рекламация output",
	headerRow: 1,
	columns: []column{
		{key: "serial_number", headers: []string{"Зав. № машины"}, required: true},
		{key: "failure_date", headers: []string{"Дата отказа"}, required: true},
		{key: "operating_hours", headers: []string{"Наработка, м/час", "Наработка м/час"}, required: true},
		{key: "failure_node", headers: []string{"Узел отказа"}},
		{key: "failure_description", headers: []string{"Описание отказа"}},
		{key: "recovery_method", headers: []string{"Способ восстановления"}},
		{key: "spare_parts", headers: []string{"Используемые запасные части"}},
		{key: "recovery_date", headers: []string{"Дата восстановления"}},
		{key: "service_company", headers: []string{"Сервисная компания"}},
	},
}
