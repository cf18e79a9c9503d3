package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/labstack/echo/v4"

	"github.com/openmercado/mercadillo/internal/stock"
)

func newTestContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestParsePagination(t *testing.T) {
	c := qt.New(t)

	ctx, _ := newTestContext("/?page=3&perPage=50")
	page, perPage := parsePagination(ctx)
	c.Assert(page, qt.Equals, 3)
	c.Assert(perPage, qt.Equals, 50)

	ctx, _ = newTestContext("/")
	page, perPage = parsePagination(ctx)
	c.Assert(page, qt.Equals, 1)
	c.Assert(perPage, qt.Equals, 20)

	ctx, _ = newTestContext("/?page=-2&perPage=9999")
	page, perPage = parsePagination(ctx)
	c.Assert(page, qt.Equals, 1)
	c.Assert(perPage, qt.Equals, 20)
}

func TestStockErrorMapping(t *testing.T) {
	c := qt.New(t)

	ctx, rec := newTestContext("/")
	err := stockError(ctx, &stock.IneligibleError{Reason: stock.ReasonAlreadyReconciled})
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Code, qt.Equals, http.StatusConflict)
	c.Assert(rec.Body.String(), qt.Contains, "NOT_ELIGIBLE")

	ctx, rec = newTestContext("/")
	err = stockError(ctx, stock.ErrNoSales)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Code, qt.Equals, http.StatusConflict)
	c.Assert(rec.Body.String(), qt.Contains, "NO_SALES")

	ctx, rec = newTestContext("/")
	err = stockError(ctx, echo.ErrInternalServerError)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Code, qt.Equals, http.StatusInternalServerError)
}
