package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	stemcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var silentLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func newEcho(handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(silentLogger)
	e.Use(Context())
	e.Use(middleware...)
	e.GET("/test", handler)
	return e
}

func serve(e *echo.Echo, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func identity(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, map[string]string{
		"request_id": stemcontext.GetRequestID(ctx),
		"tenant_id":  stemcontext.GetTenantID(ctx),
		"user_id":    stemcontext.GetUserID(ctx),
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestContext(t *testing.T) {
	t.Run("should keep the request id", func(t *testing.T) {
		rec := serve(newEcho(identity), map[string]string{echo.HeaderXRequestID: "req-1"})
		assert.Equal(t, "req-1", decode(t, rec)["request_id"])
		assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("should generate a request id", func(t *testing.T) {
		rec := serve(newEcho(identity), nil)
		assert.NotEmpty(t, decode(t, rec)["request_id"])
	})

	t.Run("should ignore tenant headers without test auth", func(t *testing.T) {
		rec := serve(newEcho(identity), map[string]string{HeaderTenantID: "t1"})
		assert.Equal(t, "", decode(t, rec)["tenant_id"])
	})
}

func TestTestAuth(t *testing.T) {
	rec := serve(newEcho(identity, TestAuth()), map[string]string{HeaderTenantID: "t1", HeaderUserID: "u1"})
	body := decode(t, rec)
	assert.Equal(t, "t1", body["tenant_id"])
	assert.Equal(t, "u1", body["user_id"])
}

func TestAuthentication(t *testing.T) {
	verify := func(_ context.Context, raw string) (UserClaims, error) {
		switch raw {
		case "good":
			claims := UserClaims{Sub: "u1"}
			claims.RealmAccess.Roles = []string{"t1"}
			return claims, nil
		case "tenantless":
			return UserClaims{Sub: "u1"}, nil
		}
		return UserClaims{}, fmt.Errorf("bad token")
	}
	e := newEcho(identity, Authentication(silentLogger, verify))

	t.Run("should set tenant and user from the claims", func(t *testing.T) {
		rec := serve(e, map[string]string{echo.HeaderAuthorization: "Bearer good"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "t1", body["tenant_id"])
		assert.Equal(t, "u1", body["user_id"])
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing bearer", "", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"no tenant", "Bearer tenantless", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			rec := serve(e, map[string]string{echo.HeaderAuthorization: tt.header})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.name, decode(t, rec)["message"])
		})
	}
}

func TestUserClaimsTenant(t *testing.T) {
	claims := UserClaims{TenantID: "explicit"}
	claims.RealmAccess.Roles = []string{"role"}
	assert.Equal(t, "explicit", claims.Tenant())

	claims.TenantID = ""
	assert.Equal(t, "role", claims.Tenant())
}

func TestError(t *testing.T) {
	t.Run("should render http errors with meta", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return httperror.NewHTTPError(http.StatusNotFound, "mapper definition not found").AddMetaValue("id", "m1")
		})

		rec := serve(e, map[string]string{echo.HeaderXRequestID: "req-1"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decode(t, rec)
		assert.Contains(t, body["message"], "mapper definition not found")
		assert.Equal(t, "req-1", body["request_id"])
		assert.Equal(t, "m1", body["meta"].(map[string]any)["id"])
	})

	t.Run("should map mapping errors", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return errors.NewMappingFailedError("no data").AddCode(errors.CodeReadFailed)
		})

		rec := serve(e, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, errors.CodeReadFailed, decode(t, rec)["meta"].(map[string]any)["code"])
	})

	t.Run("should list failed validation fields", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			_, err := utils.Validate(struct {
				Name string `json:"name" validate:"required"`
			}{})
			return err
		})

		rec := serve(e, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "required", decode(t, rec)["meta"].(map[string]any)["name"])
	})

	t.Run("should hide unknown errors", func(t *testing.T) {
		e := newEcho(func(c echo.Context) error {
			return fmt.Errorf("connection refused")
		})

		rec := serve(e, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error", decode(t, rec)["message"])
	})
}
