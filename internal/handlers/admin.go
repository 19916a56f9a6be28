package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/policy"
	"github.com/user/silant-monitoring-api/internal/repository"
	"github.com/user/silant-monitoring-api/internal/services/auth"
	"github.com/user/silant-monitoring-api/internal/services/importer"
)

// === Справочники ===

// GetReferences возвращает записи справочника одного вида
func (h *Handler) GetReferences(c *gin.Context) {
	kind := models.ReferenceKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный вид справочника"})
		return
	}

	refs, err := h.repo.ListReferences(kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, refs)
}

// CreateReference создаёт запись справочника (только менеджер)
func (h *Handler) CreateReference(c *gin.Context) {
	if !policy.CanEditReferences(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Справочники редактирует только менеджер"})
		return
	}

	var ref models.Reference
	if err := c.ShouldBindJSON(&ref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ref.Kind.Valid() || ref.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Требуются вид справочника и название"})
		return
	}

	if err := h.repo.CreateReference(&ref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, ref)
}

// UpdateReference обновляет запись справочника (только менеджер)
func (h *Handler) UpdateReference(c *gin.Context) {
	if !policy.CanEditReferences(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Справочники редактирует только менеджер"})
		return
	}

	id, ok := paramID(c)
	if !ok {
		return
	}
	ref, err := h.repo.GetReferenceByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ref == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись справочника не найдена"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != "" {
		ref.Name = req.Name
	}
	ref.Description = req.Description

	if err := h.repo.UpdateReference(ref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ref)
}

// DeleteReference удаляет запись справочника.
// Используемые записи защищены от удаления.
func (h *Handler) DeleteReference(c *gin.Context) {
	if !policy.CanEditReferences(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Справочники редактирует только менеджер"})
		return
	}

	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteReference(id); err != nil {
		if errors.Is(err, repository.ErrReferenceInUse) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Запись справочника удалена"})
}

// === Пользователи ===

// GetUsers возвращает всех пользователей (только менеджер)
func (h *Handler) GetUsers(c *gin.Context) {
	users, err := h.repo.GetAllUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, users)
}

// CreateUserRequest - запрос на создание пользователя
type CreateUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
	Company  *string     `json:"company"`
	Phone    *string     `json:"phone"`
}

// CreateUser создаёт пользователя (только менеджер)
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестная роль"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка хеширования пароля"})
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		Company:      req.Company,
		Phone:        req.Phone,
	}
	if err := h.repo.CreateUser(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// UpdateUser обновляет пользователя. Логин сменить нельзя —
// попытка переименования отклоняется, запись не меняется.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	user, err := h.repo.GetUserByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
		return
	}

	var req struct {
		Username string       `json:"username"`
		Role     *models.Role `json:"role"`
		Company  *string      `json:"company"`
		Phone    *string      `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Role != nil && req.Role.Valid() {
		user.Role = *req.Role
	}
	if req.Company != nil {
		user.Company = req.Company
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}

	if err := h.repo.UpdateUser(user); err != nil {
		if errors.Is(err, repository.ErrUsernameImmutable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, user)
}

// === Импорт ===

// ImportData принимает Excel-книгу и запускает импорт
// (машины, затем ТО, затем рекламации)
func (h *Handler) ImportData(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Требуется файл в поле file"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	reports, err := h.importer.ImportReader(src)
	if err != nil {
		var schemaErr *importer.SchemaError
		if errors.As(err, &schemaErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reports": reports})
			return
		}
		log.Printf("[Импорт] Ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "reports": reports})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}
