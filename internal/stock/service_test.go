package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
)

type fakeEvents struct {
	mu      sync.Mutex
	events  map[int64]*domain.Mercadillo
	markErr error
}

func (f *fakeEvents) GetByID(_ context.Context, id int64) (*domain.Mercadillo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *m
	return &clone, nil
}

func (f *fakeEvents) MarkReconciled(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if m, ok := f.events[id]; ok {
		m.StockReconciled = true
	}
	return nil
}

type fakeProducts struct {
	mu          sync.Mutex
	products    map[int64]*domain.Product
	updateErrs  map[int64]error
	updateCalls int
}

func (f *fakeProducts) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeProducts) UpdateStock(_ context.Context, id int64, newStock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if err, ok := f.updateErrs[id]; ok {
		return err
	}
	if p, ok := f.products[id]; ok {
		p.Stock = newStock
	}
	return nil
}

type fakeLines struct {
	lines []SaleLine
	err   error
}

func (f *fakeLines) ListWithProducts(_ context.Context, _ int64) ([]SaleLine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func finishedMercadillo(daysAgo int) *domain.Mercadillo {
	return &domain.Mercadillo{
		ID:     1,
		Name:   "Feria de junio",
		Date:   testNow.AddDate(0, 0, -daysAgo),
		Status: domain.MercadilloFinished,
	}
}

func TestCanReconcile(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name       string
		mercadillo *domain.Mercadillo
		want       bool
		reason     string
	}{
		{
			name: "already reconciled wins over everything else",
			mercadillo: &domain.Mercadillo{
				Status:          domain.MercadilloFinished,
				Date:            testNow,
				StockReconciled: true,
			},
			want:   false,
			reason: ReasonAlreadyReconciled,
		},
		{
			name: "planned event is rejected regardless of date",
			mercadillo: &domain.Mercadillo{
				Status: domain.MercadilloPlanned,
				Date:   testNow.AddDate(0, 0, -200),
			},
			want:   false,
			reason: ReasonNotFinished,
		},
		{
			name:       "91 days old is too old",
			mercadillo: finishedMercadillo(91),
			want:       false,
			reason:     ReasonTooOld,
		},
		{
			name:       "90 days old is still eligible",
			mercadillo: finishedMercadillo(90),
			want:       true,
		},
		{
			name:       "recent finished event is eligible",
			mercadillo: finishedMercadillo(2),
			want:       true,
		},
		{
			name: "active event is eligible",
			mercadillo: &domain.Mercadillo{
				Status: domain.MercadilloActive,
				Date:   testNow,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		c.Run(tt.name, func(c *qt.C) {
			got, reason := CanReconcile(tt.mercadillo, testNow)
			c.Assert(got, qt.Equals, tt.want)
			c.Assert(reason, qt.Equals, tt.reason)
		})
	}
}

func testService(events *fakeEvents, products *fakeProducts, lines *fakeLines) *Service {
	return NewService(events, products, lines,
		WithClock(func() time.Time { return testNow }),
		WithPreviewWorkers(2),
	)
}

func salesFixture() (*fakeEvents, *fakeProducts, *fakeLines) {
	events := &fakeEvents{events: map[int64]*domain.Mercadillo{
		1: finishedMercadillo(2),
	}}
	products := &fakeProducts{products: map[int64]*domain.Product{
		100: {ID: 100, Name: "Pulsera", Stock: 10},
		200: {ID: 200, Name: "Collar", Stock: 1},
	}}
	lines := &fakeLines{lines: []SaleLine{
		{LineID: 1, ProductID: 100, ProductName: "Pulsera", Quantity: 4, UnitPrice: 10, LineTotal: 40},
		{LineID: 2, ProductID: 100, ProductName: "Pulsera", Quantity: 1, UnitPrice: 10, LineTotal: 10},
		{LineID: 3, ProductID: 200, ProductName: "Collar", Quantity: 2, UnitPrice: 5, LineTotal: 10},
	}}
	return events, products, lines
}

func TestPreviewAggregatesAndClamps(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	svc := testService(events, products, lines)

	preview, err := svc.Preview(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(preview, qt.DeepEquals, []PreviewRow{
		{ProductID: 100, ProductName: "Pulsera", CurrentStock: 10, QuantitySold: 5, NewStock: 5},
		{ProductID: 200, ProductName: "Collar", CurrentStock: 1, QuantitySold: 2, NewStock: 0},
	})
}

func TestPreviewEmptyWhenNoSales(t *testing.T) {
	c := qt.New(t)
	events, products, _ := salesFixture()
	svc := testService(events, products, &fakeLines{})

	preview, err := svc.Preview(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(preview, qt.HasLen, 0)
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	svc := testService(events, products, lines)

	for i := 0; i < 3; i++ {
		_, err := svc.Preview(context.Background(), 1)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(products.updateCalls, qt.Equals, 0)
	c.Assert(products.products[100].Stock, qt.Equals, 10)
	c.Assert(events.events[1].StockReconciled, qt.IsFalse)
}

func TestClampNeverNegative(t *testing.T) {
	c := qt.New(t)
	events, _, _ := salesFixture()
	products := &fakeProducts{products: map[int64]*domain.Product{
		100: {ID: 100, Name: "Pulsera", Stock: 3},
	}}
	lines := &fakeLines{lines: []SaleLine{
		{LineID: 1, ProductID: 100, ProductName: "Pulsera", Quantity: 5, UnitPrice: 10},
	}}
	svc := testService(events, products, lines)

	report, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Results[0].NewStock, qt.Equals, 0)
	c.Assert(products.products[100].Stock, qt.Equals, 0)
}

func TestCommitMatchesPreview(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	svc := testService(events, products, lines)

	preview, err := svc.Preview(context.Background(), 1)
	c.Assert(err, qt.IsNil)

	report, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Results, qt.HasLen, len(preview))
	for i, row := range preview {
		c.Assert(report.Results[i].ProductID, qt.Equals, row.ProductID)
		c.Assert(report.Results[i].PriorStock, qt.Equals, row.CurrentStock)
		c.Assert(report.Results[i].QuantitySold, qt.Equals, row.QuantitySold)
		c.Assert(report.Results[i].NewStock, qt.Equals, row.NewStock)
	}
}

func TestCommitAppliesAndMarks(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	svc := testService(events, products, lines)

	report, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Updated, qt.Equals, 2)
	c.Assert(report.TotalProducts, qt.Equals, 2)
	c.Assert(report.EventMarked, qt.IsTrue)
	c.Assert(products.products[100].Stock, qt.Equals, 5)
	c.Assert(products.products[200].Stock, qt.Equals, 0)
	c.Assert(events.events[1].StockReconciled, qt.IsTrue)
}

func TestSecondCommitRejectedWithoutWrites(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	svc := testService(events, products, lines)

	_, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	calls := products.updateCalls

	_, err = svc.Commit(context.Background(), 1)
	var ineligible *IneligibleError
	c.Assert(errors.As(err, &ineligible), qt.IsTrue)
	c.Assert(ineligible.Reason, qt.Equals, ReasonAlreadyReconciled)
	c.Assert(products.updateCalls, qt.Equals, calls)
}

func TestCommitPartialFailureStillMarks(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	products.updateErrs = map[int64]error{200: errors.New("network timeout")}
	svc := testService(events, products, lines)

	report, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Updated, qt.Equals, 1)

	c.Assert(report.Results[0].OK, qt.IsTrue)
	c.Assert(report.Results[0].NewStock, qt.Equals, 5)
	c.Assert(report.Results[1].OK, qt.IsFalse)
	c.Assert(report.Results[1].Error, qt.Equals, "network timeout")

	// Partial failure never blocks the flag flip.
	c.Assert(report.EventMarked, qt.IsTrue)
	c.Assert(events.events[1].StockReconciled, qt.IsTrue)
	c.Assert(products.products[100].Stock, qt.Equals, 5)
	c.Assert(products.products[200].Stock, qt.Equals, 1)
}

func TestCommitSkipsVanishedProducts(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	lines.lines = append(lines.lines, SaleLine{
		LineID: 4, ProductID: 999, ProductName: "Producto borrado", Quantity: 3,
	})
	svc := testService(events, products, lines)

	report, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	// The vanished product is not part of the report, and the batch
	// still completed.
	c.Assert(report.Results, qt.HasLen, 2)
	c.Assert(report.EventMarked, qt.IsTrue)
}

func TestCommitNoSales(t *testing.T) {
	c := qt.New(t)
	events, products, _ := salesFixture()
	svc := testService(events, products, &fakeLines{})

	_, err := svc.Commit(context.Background(), 1)
	c.Assert(errors.Is(err, ErrNoSales), qt.IsTrue)
	c.Assert(events.events[1].StockReconciled, qt.IsFalse)
}

func TestCommitFetchErrorAbortsBeforeWrites(t *testing.T) {
	c := qt.New(t)
	events, products, _ := salesFixture()
	lines := &fakeLines{err: errors.New("connection refused")}
	svc := testService(events, products, lines)

	_, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.ErrorMatches, "connection refused")
	c.Assert(products.updateCalls, qt.Equals, 0)
	c.Assert(events.events[1].StockReconciled, qt.IsFalse)
}

func TestCommitMarkErrorReported(t *testing.T) {
	c := qt.New(t)
	events, products, lines := salesFixture()
	events.markErr = errors.New("auth rejected")
	svc := testService(events, products, lines)

	report, err := svc.Commit(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(report.EventMarked, qt.IsFalse)
	c.Assert(report.EventMarkError, qt.Equals, "auth rejected")
	// Stock updates were still applied.
	c.Assert(products.products[100].Stock, qt.Equals, 5)
}
