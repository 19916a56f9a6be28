package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/policy"
)

// ExportMachinesExcel выгружает каталог доступных пользователю машин в Excel
func (h *Handler) ExportMachinesExcel(c *gin.Context) {
	machines, err := h.repo.AccessibleMachines(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Машины"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{
		"Модель техники", "Зав. № машины",
		"Модель двигателя", "Зав. № двигателя",
		"Модель трансмиссии", "Зав. № трансмиссии",
		"Модель ведущего моста", "Зав. № ведущего моста",
		"Модель управляемого моста", "Зав. № управляемого моста",
		"Договор поставки №, дата", "Дата отгрузки с завода",
		"Грузополучатель (конечный потребитель)", "Адрес поставки (эксплуатации)",
		"Комплектация (доп. опции)", "Покупатель", "Сервисная компания",
		"Наработка, м/час",
	}
	for i, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	refName := func(ref *models.Reference) string {
		if ref == nil {
			return ""
		}
		return ref.Name
	}
	userName := func(u *models.User) string {
		if u == nil {
			return ""
		}
		if u.Company != nil && *u.Company != "" {
			return *u.Company
		}
		return u.Username
	}

	for row, m := range machines {
		values := []interface{}{
			refName(m.MachineModel), m.SerialNumber,
			refName(m.EngineModel), m.EngineSerial,
			refName(m.TransmissionModel), m.TransmissionSerial,
			refName(m.DriveAxleModel), m.DriveAxleSerial,
			refName(m.SteeringAxleModel), m.SteeringAxleSerial,
			m.SupplyContract, m.ShipmentDate.Format("02.01.2006"),
			m.Consignee, m.DeliveryAddress,
			m.Equipment, userName(m.Client), userName(m.ServiceCompany),
			m.CurrentHours,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка формирования файла: " + err.Error()})
		return
	}

	filename := fmt.Sprintf("machines_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// GetMachinePassportPDF генерирует PDF-паспорт машины
func (h *Handler) GetMachinePassportPDF(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	machine, err := h.repo.GetMachineByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if machine == nil || !policy.MachineVisible(currentUser(c), machine) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Машина не найдена"})
		return
	}

	pdfBytes, err := h.reports.GenerateMachinePassport(machine)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка генерации PDF: " + err.Error()})
		return
	}

	filename := fmt.Sprintf("passport_%s.pdf", machine.SerialNumber)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
