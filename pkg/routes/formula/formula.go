package formula

import (
	"net/http"
	"strings"

	"github.com/Ramsey-B/clover/pkg/formula"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// ListFormulas returns the function catalogue. ?q= filters by key prefix.
func ListFormulas(c echo.Context) error {
	_, span := tracing.StartSpan(c.Request().Context(), "formula.ListFormulas")
	defer span.End()

	catalog := formula.Catalog()

	if q := strings.ToUpper(strings.TrimSpace(c.QueryParam("q"))); q != "" {
		filtered := make([]formula.Definition, 0, len(catalog))
		for _, d := range catalog {
			if strings.HasPrefix(strings.ToUpper(d.Key), q) {
				filtered = append(filtered, d)
			}
		}
		catalog = filtered
	}

	return c.JSON(http.StatusOK, catalog)
}

func GetFormula(c echo.Context) error {
	_, span := tracing.StartSpan(c.Request().Context(), "formula.GetFormula")
	defer span.End()

	fn, err := formula.GetFunction(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, fn)
}

func Register(g *echo.Group) {
	g.GET("", ListFormulas)
	g.GET("/:key", GetFormula)
}
