package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/policy"
)

// === ТО ===

// GetTechnicalServices возвращает ТО, видимые пользователю
func (h *Handler) GetTechnicalServices(c *gin.Context) {
	services, err := h.repo.VisibleTechnicalServices(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, services)
}

// CreateTechnicalService создаёт запись о ТО.
// Записи ТО заводят сервисные организации и менеджер,
// и только для машины в области видимости автора.
func (h *Handler) CreateTechnicalService(c *gin.Context) {
	user := currentUser(c)
	if user == nil || (user.Role != models.RoleService && user.Role != models.RoleManager) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Записи ТО создают сервисные организации и менеджер"})
		return
	}

	var ts models.TechnicalService
	if err := c.ShouldBindJSON(&ts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine, err := h.repo.GetMachineByID(ts.MachineID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if machine == nil || !policy.MachineVisible(user, machine) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Машина не найдена"})
		return
	}

	// Сервисная организация по умолчанию — автор, если он сервисная компания
	if ts.ServiceCompanyID == nil && user.Role == models.RoleService {
		ts.ServiceCompanyID = &user.ID
	}

	if err := h.repo.UpsertTechnicalService(&ts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, ts)
}

// UpdateTechnicalService обновляет запись о ТО
func (h *Handler) UpdateTechnicalService(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	ts, err := h.repo.GetTechnicalServiceByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ТО не найдено"})
		return
	}
	if !policy.TechnicalServiceEditable(currentUser(c), ts) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на редактирование этого ТО"})
		return
	}

	var req models.TechnicalService
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = ts.ID
	req.MachineID = ts.MachineID

	if err := h.repo.UpdateTechnicalService(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, req)
}

// DeleteTechnicalService удаляет запись о ТО
func (h *Handler) DeleteTechnicalService(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	ts, err := h.repo.GetTechnicalServiceByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ТО не найдено"})
		return
	}
	if !policy.TechnicalServiceEditable(currentUser(c), ts) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на редактирование этого ТО"})
		return
	}

	if err := h.repo.DeleteTechnicalService(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ТО удалено"})
}

// === Рекламации ===

// GetReclamations возвращает рекламации, видимые пользователю
func (h *Handler) GetReclamations(c *gin.Context) {
	recs, err := h.repo.VisibleReclamations(currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Простой техники считается по датам отказа и восстановления
	type reclamationWithDowntime struct {
		models.Reclamation
		Downtime *int `json:"downtime"`
	}
	result := make([]reclamationWithDowntime, 0, len(recs))
	for i := range recs {
		result = append(result, reclamationWithDowntime{
			Reclamation: recs[i],
			Downtime:    recs[i].Downtime(),
		})
	}

	c.JSON(http.StatusOK, result)
}

// CreateReclamation создаёт рекламацию.
// Рекламации заводят сервисные организации и менеджер.
func (h *Handler) CreateReclamation(c *gin.Context) {
	user := currentUser(c)
	if user == nil || (user.Role != models.RoleService && user.Role != models.RoleManager) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Рекламации создают сервисные организации и менеджер"})
		return
	}

	var rec models.Reclamation
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine, err := h.repo.GetMachineByID(rec.MachineID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if machine == nil || !policy.MachineVisible(user, machine) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Машина не найдена"})
		return
	}

	if rec.ServiceCompanyID == nil && user.Role == models.RoleService {
		rec.ServiceCompanyID = &user.ID
	}

	if err := h.repo.UpsertReclamation(&rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// UpdateReclamation обновляет рекламацию
func (h *Handler) UpdateReclamation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	rec, err := h.repo.GetReclamationByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Рекламация не найдена"})
		return
	}
	if !policy.ReclamationEditable(currentUser(c), rec) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на редактирование этой рекламации"})
		return
	}

	var req models.Reclamation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = rec.ID
	req.MachineID = rec.MachineID
	req.CreatedAt = rec.CreatedAt

	if err := h.repo.UpdateReclamation(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, req)
}

// DeleteReclamation удаляет рекламацию
func (h *Handler) DeleteReclamation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	rec, err := h.repo.GetReclamationByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Рекламация не найдена"})
		return
	}
	if !policy.ReclamationEditable(currentUser(c), rec) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Нет прав на редактирование этой рекламации"})
		return
	}

	if err := h.repo.DeleteReclamation(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Рекламация удалена"})
}
