package domain

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestInitialStatus(t *testing.T) {
	c := qt.New(t)
	now := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

	c.Assert(InitialStatus(time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), now), qt.Equals, MercadilloFinished)
	c.Assert(InitialStatus(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), now), qt.Equals, MercadilloPlanned)
	c.Assert(InitialStatus(time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), now), qt.Equals, MercadilloPlanned)
	// events earlier the same day are still "today"
	c.Assert(InitialStatus(time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC), now), qt.Equals, MercadilloPlanned)
}

func TestIncomeLineRecalc(t *testing.T) {
	c := qt.New(t)
	line := IncomeLine{Quantity: 3, UnitPrice: 2.5, Total: 999}
	line.Recalc()
	c.Assert(line.Total, qt.Equals, 7.5)

	line.Quantity = 0
	line.Recalc()
	c.Assert(line.Total, qt.Equals, 0.0)
}

func TestExpenseSoftDelete(t *testing.T) {
	c := qt.New(t)
	e := ExpenseLine{Active: true}
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	e.SoftDelete(at)
	c.Assert(e.Active, qt.IsFalse)
	c.Assert(e.DeletedAt, qt.Not(qt.IsNil))
	c.Assert(*e.DeletedAt, qt.Equals, at)
}
