package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/common"
)

func registerAuthorizedUserRoutes() {
	webserver.ApiGET("/authorized-users", listAuthorizedUsers)
	webserver.ApiPOST("/authorized-users", createAuthorizedUser)
	webserver.ApiDELETE("/authorized-users/:id", deleteAuthorizedUser)
}

func listAuthorizedUsers(c echo.Context) error {
	var rows []domain.SysAuthorizedUser
	if err := GetDB(c).Order("created_at ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query authorized users", err.Error())
	}
	return ok(c, rows)
}

type authorizedUserPayload struct {
	Email  string `json:"email"`
	Remark string `json:"remark"`
}

func createAuthorizedUser(c echo.Context) error {
	var payload authorizedUserPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse user", err.Error())
	}
	email := common.NormalizeEmail(payload.Email)
	if email == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Email is required", nil)
	}

	var existing domain.SysAuthorizedUser
	err := GetDB(c).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return fail(c, http.StatusConflict, "DUPLICATE", "Email already authorized", email)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query authorized users", err.Error())
	}

	addedBy := ""
	if claims := webserver.CurrentClaims(c); claims != nil {
		addedBy = claims.Email
	}
	user := domain.SysAuthorizedUser{
		ID:        common.UUIDint64(),
		Email:     email,
		AddedBy:   addedBy,
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
	}
	if err := GetDB(c).Create(&user).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create authorized user", err.Error())
	}
	logOperation(c, "authuser_create", email)
	return ok(c, user)
}

// deleteAuthorizedUser revokes an email; the last entry cannot be
// removed or nobody could sign in.
func deleteAuthorizedUser(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID", nil)
	}
	var user domain.SysAuthorizedUser
	if err := GetDB(c).Where("id = ?", id).First(&user).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Authorized user not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query authorized users", err.Error())
	}

	var total int64
	if err := GetDB(c).Model(&domain.SysAuthorizedUser{}).Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query authorized users", err.Error())
	}
	if total <= 1 {
		return fail(c, http.StatusConflict, "LAST_USER", "Cannot remove the last authorized user", nil)
	}

	if err := GetDB(c).Where("id = ?", id).Delete(&domain.SysAuthorizedUser{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete authorized user", err.Error())
	}
	logOperation(c, "authuser_delete", user.Email)
	return ok(c, map[string]interface{}{"id": id})
}
