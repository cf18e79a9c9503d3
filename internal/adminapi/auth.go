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

const tokenTTL = 12 * time.Hour

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", login)
	webserver.ApiGET("/auth/me", currentOperator)
}

// login authenticates an operator. The email must be present in the
// allow-list before the password is even looked at.
func login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse credentials", nil)
	}
	email := common.NormalizeEmail(payload.Email)
	if email == "" || payload.Password == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Email and password are required", nil)
	}

	db := GetDB(c)

	var allowed int64
	db.Model(&domain.SysAuthorizedUser{}).Where("email = ?", email).Count(&allowed)
	if allowed == 0 {
		return fail(c, http.StatusForbidden, "NOT_AUTHORIZED",
			"Access denied: this email is not authorized to use the application", nil)
	}

	var opr domain.SysOpr
	if err := db.Where("email = ?", email).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	if opr.Status != common.ENABLED || !common.CheckPassword(opr.Password, payload.Password) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}

	secret := GetAppContext(c).Config().Web.Secret
	token, err := webserver.IssueToken(secret, opr.Email, opr.Level, tokenTTL)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}

	db.Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", time.Now())
	logOperation(c, "login", "operator signed in")

	return ok(c, map[string]interface{}{
		"token":    token,
		"email":    opr.Email,
		"realname": opr.Realname,
		"level":    opr.Level,
	})
}

func currentOperator(c echo.Context) error {
	claims := webserver.CurrentClaims(c)
	if claims == nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "No token", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).Where("email = ?", claims.Email).First(&opr).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Operator not found", nil)
	}
	return ok(c, opr)
}
