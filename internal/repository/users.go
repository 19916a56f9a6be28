package repository

import (
	"errors"
	"strings"

	"github.com/user/silant-monitoring-api/internal/models"
	"gorm.io/gorm"
)

// ErrUsernameImmutable - попытка сменить логин существующего пользователя
var ErrUsernameImmutable = errors.New("изменение логина запрещено")

// GetUserByID возвращает пользователя по ID
func (r *Repository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername возвращает пользователя по логину
func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetAllUsers возвращает всех пользователей
func (r *Repository) GetAllUsers() ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser создаёт пользователя
func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

// UpdateUser обновляет пользователя.
// Логин неизменяем: попытка переименования отклоняется,
// запись остаётся нетронутой.
func (r *Repository) UpdateUser(user *models.User) error {
	var orig models.User
	if err := r.db.First(&orig, user.ID).Error; err != nil {
		return err
	}
	if orig.Username != user.Username {
		return ErrUsernameImmutable
	}
	return r.db.Save(user).Error
}

// GetOrCreateClient возвращает пользователя-клиента по логину,
// создавая его при отсутствии (как при импорте из Excel)
func (r *Repository) GetOrCreateClient(username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}

	user, err := r.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{Username: username, Role: models.RoleClient}
	if err := r.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindServiceUserByCompany ищет сервисную организацию по названию компании.
// Сравнение регистронезависимое: названия компаний в таблицах
// набираются операторами в разном регистре.
func (r *Repository) FindServiceUserByCompany(company string) (*models.User, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, nil
	}

	var user models.User
	err := r.db.Where("role = ? AND LOWER(company) = LOWER(?)", models.RoleService, company).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateServiceCompany возвращает сервисную организацию по названию
// компании, создавая пользователя с ролью service при отсутствии
func (r *Repository) GetOrCreateServiceCompany(name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	user, err := r.FindServiceUserByCompany(name)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	// Логин может уже существовать с другой ролью — тогда используем его
	user, err = r.GetUserByUsername(name)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	company := name
	user = &models.User{Username: name, Role: models.RoleService, Company: &company}
	if err := r.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}
