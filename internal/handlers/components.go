package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/policy"
)

// machineForEdit загружает машину и проверяет, что она видна пользователю
func (h *Handler) machineForEdit(c *gin.Context, machineID uint) *models.Machine {
	machine, err := h.repo.GetMachineByID(machineID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	if machine == nil || !policy.MachineVisible(currentUser(c), machine) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Машина не найдена"})
		return nil
	}
	return machine
}

// === Компоненты ===

// GetComponents возвращает компоненты машины с процентом износа
func (h *Handler) GetComponents(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if h.machineForEdit(c, id) == nil {
		return
	}

	components, err := h.repo.GetComponentsByMachine(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type componentWithWear struct {
		models.Component
		WearPercentage int `json:"wear_percentage"`
	}
	result := make([]componentWithWear, 0, len(components))
	for i := range components {
		result = append(result, componentWithWear{
			Component:      components[i],
			WearPercentage: components[i].WearPercentage(),
		})
	}

	c.JSON(http.StatusOK, result)
}

// CreateComponent создаёт компонент машины
func (h *Handler) CreateComponent(c *gin.Context) {
	var comp models.Component
	if err := c.ShouldBindJSON(&comp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine := h.machineForEdit(c, comp.MachineID)
	if machine == nil {
		return
	}
	if !policy.ComponentEditable(currentUser(c), machine) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на изменение компонентов этой машины"})
		return
	}

	if err := h.repo.CreateComponent(&comp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, comp)
}

// UpdateComponent обновляет компонент
func (h *Handler) UpdateComponent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	comp, err := h.repo.GetComponentByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if comp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Компонент не найден"})
		return
	}

	machine := h.machineForEdit(c, comp.MachineID)
	if machine == nil {
		return
	}
	if !policy.ComponentEditable(currentUser(c), machine) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на изменение компонентов этой машины"})
		return
	}

	var req models.Component
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = comp.ID
	req.MachineID = comp.MachineID

	if err := h.repo.UpdateComponent(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, req)
}

// DeleteComponent удаляет компонент
func (h *Handler) DeleteComponent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	comp, err := h.repo.GetComponentByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if comp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Компонент не найден"})
		return
	}

	machine := h.machineForEdit(c, comp.MachineID)
	if machine == nil {
		return
	}
	if !policy.ComponentEditable(currentUser(c), machine) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на изменение компонентов этой машины"})
		return
	}

	if err := h.repo.DeleteComponent(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Компонент удалён"})
}

// === История обслуживания ===

// GetMaintenanceHistory возвращает историю обслуживания машины
func (h *Handler) GetMaintenanceHistory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if h.machineForEdit(c, id) == nil {
		return
	}

	history, err := h.repo.GetMaintenanceByMachine(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, history)
}

// CreateMaintenance создаёт запись обслуживания
func (h *Handler) CreateMaintenance(c *gin.Context) {
	var mnt models.Maintenance
	if err := c.ShouldBindJSON(&mnt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch mnt.Type {
	case models.MaintenanceService, models.MaintenanceRepair, models.MaintenanceFailure:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный тип обслуживания"})
		return
	}

	user := currentUser(c)
	machine := h.machineForEdit(c, mnt.MachineID)
	if machine == nil {
		return
	}
	if !policy.ComponentEditable(user, machine) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на изменение истории этой машины"})
		return
	}

	if mnt.ServiceCompanyID == nil && user.Role == models.RoleService {
		mnt.ServiceCompanyID = &user.ID
	}

	if err := h.repo.CreateMaintenance(&mnt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, mnt)
}

// UpdateMaintenance обновляет запись обслуживания
func (h *Handler) UpdateMaintenance(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	mnt, err := h.repo.GetMaintenanceByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if mnt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись обслуживания не найдена"})
		return
	}
	if !policy.MaintenanceEditable(currentUser(c), mnt) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на редактирование этой записи"})
		return
	}

	var req models.Maintenance
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Type {
	case models.MaintenanceService, models.MaintenanceRepair, models.MaintenanceFailure:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный тип обслуживания"})
		return
	}
	req.ID = mnt.ID
	req.MachineID = mnt.MachineID

	if err := h.repo.UpdateMaintenance(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, req)
}

// DeleteMaintenance удаляет запись обслуживания
func (h *Handler) DeleteMaintenance(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	mnt, err := h.repo.GetMaintenanceByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if mnt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись обслуживания не найдена"})
		return
	}
	if !policy.MaintenanceEditable(currentUser(c), mnt) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на редактирование этой записи"})
		return
	}

	if err := h.repo.DeleteMaintenance(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Запись обслуживания удалена"})
}
