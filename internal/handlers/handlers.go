package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/policy"
	"github.com/user/silant-monitoring-api/internal/repository"
	"github.com/user/silant-monitoring-api/internal/services/importer"
	"github.com/user/silant-monitoring-api/internal/services/report"
)

// Handler - обработчики HTTP-запросов
type Handler struct {
	repo     *repository.Repository
	importer *importer.Service
	reports  *report.Generator
}

// NewHandler создаёт новый обработчик
func NewHandler(repo *repository.Repository, imp *importer.Service, reports *report.Generator) *Handler {
	return &Handler{
		repo:     repo,
		importer: imp,
		reports:  reports,
	}
}

// currentUser восстанавливает пользователя из claims токена.
// Политике доступа достаточно ID и роли, запрос в БД не нужен.
func currentUser(c *gin.Context) *models.User {
	userID, exists := c.Get("userID")
	if !exists {
		return nil
	}
	user := &models.User{ID: userID.(uint)}
	if username, ok := c.Get("username"); ok {
		user.Username, _ = username.(string)
	}
	if role, ok := c.Get("role"); ok {
		user.Role, _ = role.(models.Role)
	}
	return user
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID"})
		return 0, false
	}
	return uint(id), true
}

// === Машины ===

// GetMachines возвращает машины, доступные пользователю
func (h *Handler) GetMachines(c *gin.Context) {
	machines, err := h.repo.AccessibleMachines(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, machines)
}

// GetMachine возвращает машину с компонентами и историей обслуживания.
// Машина вне области видимости пользователя не раскрывается (404).
func (h *Handler) GetMachine(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{
		"machine":              machine,
		"requires_maintenance": machine.RequiresMaintenance(),
		"in_service":           machine.InService(),
	})
}

// CreateMachine создаёт машину (только менеджер, проверяется маршрутом;
// политика перепроверяется здесь — скрыть запись недостаточно)
func (h *Handler) CreateMachine(c *gin.Context) {
	if !policy.MachineEditable(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Машины редактирует только менеджер"})
		return
	}

	var machine models.Machine
	if err := c.ShouldBindJSON(&machine); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if machine.SerialNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Требуется заводской номер"})
		return
	}

	if err := h.repo.UpsertMachine(&machine); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, machine)
}

// UpdateMachine обновляет машину
func (h *Handler) UpdateMachine(c *gin.Context) {
	if !policy.MachineEditable(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Машины редактирует только менеджер"})
		return
	}

	id, ok := paramID(c)
	if !ok {
		return
	}
	machine, err := h.repo.GetMachineByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if machine == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Машина не найдена"})
		return
	}

	var req models.Machine
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = machine.ID
	req.CreatedAt = machine.CreatedAt

	if err := h.repo.UpdateMachine(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, req)
}

// DeleteMachine удаляет машину вместе со связанными записями
func (h *Handler) DeleteMachine(c *gin.Context) {
	if !policy.MachineEditable(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Машины редактирует только менеджер"})
		return
	}

	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteMachine(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Машина удалена"})
}

// GetPublicMachine возвращает основную информацию о машине
// по заводскому номеру без авторизации (поиск для гостей)
func (h *Handler) GetPublicMachine(c *gin.Context) {
	serial := c.Param("serial")

	machine, err := h.repo.GetMachineBySerialFull(serial)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if machine == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Машина не найдена"})
		return
	}

	c.JSON(http.StatusOK, machine.BasicInfo())
}

// === Сводка ===

// GetDashboard возвращает сводку по автопарку в рамках видимости пользователя
func (h *Handler) GetDashboard(c *gin.Context) {
	status, err := h.repo.GetFleetStatus(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
