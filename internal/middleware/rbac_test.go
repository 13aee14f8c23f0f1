package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campuslib/library-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/resources/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	target := "/resources/none"
	if paramID != "" {
		target = "/resources/" + paramID
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u-1", Role: models.RoleLibrarian}
	w := performRBAC(t, claims, "", string(models.RoleLibrarian))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u-1", Role: models.RoleStudent}
	w := performRBAC(t, claims, "", string(models.RoleLibrarian))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACMissingClaims(t *testing.T) {
	w := performRBAC(t, nil, "", string(models.RoleLibrarian))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRBACSelfMatchesOwnID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u-1", Role: models.RoleStudent}

	w := performRBAC(t, claims, "u-1", "SELF")
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRBAC(t, claims, "u-2", "SELF")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAdmitsAnyListed(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u-1", Role: models.RoleStaff}
	w := performRBAC(t, claims, "", string(models.RoleLibrarian), string(models.RoleStaff))
	assert.Equal(t, http.StatusOK, w.Code)
}
