package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/repository"
	"github.com/user/silant-monitoring-api/internal/services/importer"
	"github.com/user/silant-monitoring-api/internal/services/report"
)

// asUser подставляет пользователя в контекст так же, как middleware.Auth
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set("userID", user.ID)
			c.Set("username", user.Username)
			c.Set("role", user.Role)
		}
		c.Next()
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *repository.Repository, func(user *models.User)) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	repo := repository.NewRepository(db)

	h := NewHandler(repo, importer.NewService(repo), report.NewGenerator(""))

	var current *models.User
	router := gin.New()
	router.Use(func(c *gin.Context) {
		asUser(current)(c)
	})
	router.GET("/api/machines", h.GetMachines)
	router.GET("/api/machines/:id", h.GetMachine)
	router.GET("/api/machines/:id/components", h.GetComponents)
	router.GET("/api/public/machines/:serial", h.GetPublicMachine)
	router.GET("/api/dashboard", h.GetDashboard)
	router.POST("/api/technical-services", h.CreateTechnicalService)
	router.POST("/api/maintenances", h.CreateMaintenance)
	router.PUT("/api/maintenances/:id", h.UpdateMaintenance)

	return router, repo, func(user *models.User) { current = user }
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sendJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMachineVisibilityOverHTTP(t *testing.T) {
	router, repo, login := setupRouter(t)

	client := &models.User{Username: "ip-petrov", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(client))
	stranger := &models.User{Username: "zao-vektor", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(stranger))

	machine := &models.Machine{
		SerialNumber: "0017",
		ClientID:     client.ID,
		ShipmentDate: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.UpsertMachine(machine))

	// владелец видит машину
	login(client)
	w := get(t, router, "/api/machines")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Machine
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = get(t, router, "/api/machines/1")
	assert.Equal(t, http.StatusOK, w.Code)

	// чужому клиенту машина не раскрывается даже по прямому ID
	login(stranger)
	w = get(t, router, "/api/machines")
	require.Equal(t, http.StatusOK, w.Code)
	list = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)

	w = get(t, router, "/api/machines/1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, router, "/api/machines/1/components")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicMachineLookup(t *testing.T) {
	router, repo, _ := setupRouter(t)

	client := &models.User{Username: "ip-petrov", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(client))

	ref, err := repo.ResolveReference(models.KindMachineModel, "ПД1,5")
	require.NoError(t, err)
	machine := &models.Machine{
		SerialNumber:   "0017",
		MachineModelID: &ref.ID,
		ClientID:       client.ID,
		SupplyContract: "Д-2023/17",
		Consignee:      "ИП Петров",
	}
	require.NoError(t, repo.UpsertMachine(machine))

	w := get(t, router, "/api/public/machines/0017")
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "0017", info["serial_number"])
	assert.Equal(t, "ПД1,5", info["machine_model"])
	// договор и владелец в публичной карточке не раскрываются
	assert.NotContains(t, info, "supply_contract")
	assert.NotContains(t, info, "client")

	w = get(t, router, "/api/public/machines/no-such")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTechnicalServiceRoles(t *testing.T) {
	router, repo, login := setupRouter(t)

	client := &models.User{Username: "ip-petrov", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(client))
	service := &models.User{Username: "promtech", Role: models.RoleService}
	require.NoError(t, repo.CreateUser(service))

	machine := &models.Machine{
		SerialNumber:     "0017",
		ClientID:         client.ID,
		ServiceCompanyID: &service.ID,
	}
	require.NoError(t, repo.UpsertMachine(machine))

	body := models.TechnicalService{
		MachineID:   machine.ID,
		ServiceDate: time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC),
	}

	// клиент не создаёт записи ТО даже для своей машины
	login(client)
	w := sendJSON(t, router, http.MethodPost, "/api/technical-services", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	services, err := repo.VisibleTechnicalServices(&models.User{ID: 99, Role: models.RoleManager})
	require.NoError(t, err)
	assert.Empty(t, services)

	// сервисная организация машины создаёт
	login(service)
	w = sendJSON(t, router, http.MethodPost, "/api/technical-services", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	// неавторизованный запрос отклоняется
	login(nil)
	w = sendJSON(t, router, http.MethodPost, "/api/technical-services", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateMaintenanceRejectsUnknownType(t *testing.T) {
	router, repo, login := setupRouter(t)

	client := &models.User{Username: "ip-petrov", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(client))
	manager := &models.User{Username: "chief", Role: models.RoleManager}
	require.NoError(t, repo.CreateUser(manager))

	machine := &models.Machine{SerialNumber: "0030", ClientID: client.ID}
	require.NoError(t, repo.UpsertMachine(machine))

	mnt := &models.Maintenance{
		MachineID: machine.ID,
		Type:      models.MaintenanceRepair,
		StartDate: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateMaintenance(mnt))

	login(manager)

	// неизвестный тип отклоняется и при создании, и при обновлении
	bad := models.Maintenance{MachineID: machine.ID, Type: "overhaul"}
	w := sendJSON(t, router, http.MethodPost, "/api/maintenances", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = sendJSON(t, router, http.MethodPut, "/api/maintenances/1", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, err := repo.GetMaintenanceByID(mnt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.MaintenanceRepair, stored.Type)

	// допустимый тип проходит
	ok := models.Maintenance{
		MachineID: machine.ID,
		Type:      models.MaintenanceService,
		StartDate: mnt.StartDate,
	}
	w = sendJSON(t, router, http.MethodPut, "/api/maintenances/1", ok)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboard(t *testing.T) {
	router, repo, login := setupRouter(t)

	client := &models.User{Username: "ip-petrov", Role: models.RoleClient}
	require.NoError(t, repo.CreateUser(client))
	require.NoError(t, repo.UpsertMachine(&models.Machine{
		SerialNumber: "0001",
		ClientID:     client.ID,
	}))

	login(client)
	w := get(t, router, "/api/dashboard")
	require.Equal(t, http.StatusOK, w.Code)

	var status repository.FleetStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.EqualValues(t, 1, status.Machines)
	assert.EqualValues(t, 0, status.InService)
}
