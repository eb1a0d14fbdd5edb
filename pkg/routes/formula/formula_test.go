package formula

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	Register(e.Group("/api/v1/formulas"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListFormulas(t *testing.T) {
	t.Run("should list the catalogue sorted by key", func(t *testing.T) {
		rec := serve(t, "/api/v1/formulas")
		require.Equal(t, http.StatusOK, rec.Code)

		var catalog []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
		require.NotEmpty(t, catalog)
		for i := 1; i < len(catalog); i++ {
			assert.Less(t, catalog[i-1]["key"], catalog[i]["key"])
		}
	})

	t.Run("should filter by prefix", func(t *testing.T) {
		rec := serve(t, "/api/v1/formulas?q=upp")
		require.Equal(t, http.StatusOK, rec.Code)

		var catalog []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
		require.Len(t, catalog, 1)
		assert.Equal(t, "UPPER", catalog[0]["key"])
	})
}

func TestGetFormula(t *testing.T) {
	rec := serve(t, "/api/v1/formulas/lower")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"LOWER"`)

	rec = serve(t, "/api/v1/formulas/MEDIAN_OF_NOTHING")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
