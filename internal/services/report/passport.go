// Package report генерирует PDF-документы по данным о машинах.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/user/silant-monitoring-api/internal/models"
)

// Generator - генератор PDF-паспортов машин
type Generator struct {
	fontsDir string
}

// NewGenerator создаёт новый генератор.
// fontsDir — каталог с TTF-шрифтами с поддержкой кириллицы.
func NewGenerator(fontsDir string) *Generator {
	if fontsDir == "" {
		fontsDir = "./fonts"
	}
	return &Generator{fontsDir: fontsDir}
}

// GenerateMachinePassport генерирует паспорт машины:
// карточка с характеристиками, компонентами и сводкой истории
func (g *Generator) GenerateMachinePassport(machine *models.Machine) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// Шрифты с поддержкой кириллицы
	pdf.AddUTF8Font("Arial", "", filepath.Join(g.fontsDir, "Arial.ttf"))
	pdf.AddUTF8Font("Arial", "B", filepath.Join(g.fontsDir, "Arial Bold.ttf"))

	// Заголовок
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(180, 8, fmt.Sprintf("Паспорт машины %s", machine.SerialNumber), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(180, 5, fmt.Sprintf("Сформирован %s", time.Now().Format("02.01.2006")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	refName := func(ref *models.Reference) string {
		if ref == nil {
			return "—"
		}
		return ref.Name
	}
	userName := func(u *models.User) string {
		if u == nil {
			return "—"
		}
		if u.Company != nil && *u.Company != "" {
			return *u.Company
		}
		return u.Username
	}

	g.drawSection(pdf, "Комплектация")
	g.drawRow(pdf, "Модель техники", refName(machine.MachineModel))
	g.drawRow(pdf, "Модель двигателя", refName(machine.EngineModel))
	g.drawRow(pdf, "Зав. № двигателя", machine.EngineSerial)
	g.drawRow(pdf, "Модель трансмиссии", refName(machine.TransmissionModel))
	g.drawRow(pdf, "Зав. № трансмиссии", machine.TransmissionSerial)
	g.drawRow(pdf, "Модель ведущего моста", refName(machine.DriveAxleModel))
	g.drawRow(pdf, "Зав. № ведущего моста", machine.DriveAxleSerial)
	g.drawRow(pdf, "Модель управляемого моста", refName(machine.SteeringAxleModel))
	g.drawRow(pdf, "Зав. № управляемого моста", machine.SteeringAxleSerial)
	g.drawRow(pdf, "Доп. опции", machine.Equipment)
	pdf.Ln(3)

	g.drawSection(pdf, "Поставка и эксплуатация")
	g.drawRow(pdf, "Дата отгрузки с завода", machine.ShipmentDate.Format("02.01.2006"))
	g.drawRow(pdf, "Договор поставки", machine.SupplyContract)
	g.drawRow(pdf, "Грузополучатель", machine.Consignee)
	g.drawRow(pdf, "Адрес эксплуатации", machine.DeliveryAddress)
	g.drawRow(pdf, "Клиент", userName(machine.Client))
	g.drawRow(pdf, "Сервисная компания", userName(machine.ServiceCompany))
	g.drawRow(pdf, "Наработка, м/час", fmt.Sprintf("%d", machine.CurrentHours))
	pdf.Ln(3)

	if len(machine.Components) > 0 {
		g.drawSection(pdf, "Компоненты")
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(60, 6, "Наименование", "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, "Артикул", "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, "Дата установки", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Износ, %", "1", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for _, comp := range machine.Components {
			pdf.CellFormat(60, 6, comp.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, comp.PartNumber, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, comp.InstallDate.Format("02.01.2006"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%d", comp.WearPercentage()), "1", 1, "C", false, 0, "")
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawSection — заголовок раздела паспорта
func (g *Generator) drawSection(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(180, 7, title, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

// drawRow — строка «поле: значение»
func (g *Generator) drawRow(pdf *fpdf.Fpdf, label, value string) {
	if value == "" {
		value = "—"
	}
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(70, 5.5, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(110, 5.5, value, "", "L", false)
}
