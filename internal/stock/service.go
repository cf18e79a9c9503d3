package stock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/pkg/metrics"
)

// MaxReconcileAgeDays is the inclusive age limit: a mercadillo dated
// exactly 90 days ago is still eligible, 91 days is not.
const MaxReconcileAgeDays = 90

// TopicReconciled is published on the event bus after every commit.
const TopicReconciled = "mercadillo.stock.reconciled"

// Ineligibility reasons returned by CanReconcile.
const (
	ReasonAlreadyReconciled = "already reconciled"
	ReasonNotFinished       = "event not finished"
	ReasonTooOld            = "event too old"
)

// ErrNoSales is returned by Commit when the mercadillo has no income lines.
var ErrNoSales = errors.New("no sales recorded for this mercadillo")

// IneligibleError reports why a mercadillo cannot be reconciled. It is
// terminal and pre-flight: no writes have happened when it is returned.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return "stock reconciliation not allowed: " + e.Reason
}

// PreviewRow is one line of the reconciliation preview: what would
// happen to a product's stock if the commit ran now.
type PreviewRow struct {
	ProductID    int64  `json:"product_id,string"`
	ProductName  string `json:"product_name"`
	CurrentStock int    `json:"current_stock"`
	QuantitySold int    `json:"quantity_sold"`
	NewStock     int    `json:"new_stock"`
}

// ItemResult is the per-product outcome of a commit.
type ItemResult struct {
	ProductID    int64  `json:"product_id,string"`
	ProductName  string `json:"product_name"`
	OK           bool   `json:"ok"`
	PriorStock   int    `json:"prior_stock"`
	QuantitySold int    `json:"quantity_sold"`
	NewStock     int    `json:"new_stock"`
	Error        string `json:"error,omitempty"`
}

// Report is the full outcome of a commit. Partial application is the
// documented contract: failed items sit next to succeeded ones, and
// EventMarked tells whether the reconciled flag write itself went
// through.
type Report struct {
	MercadilloID   int64        `json:"mercadillo_id,string"`
	MercadilloName string       `json:"mercadillo_name"`
	Results        []ItemResult `json:"results"`
	TotalProducts  int          `json:"total_products"`
	Updated        int          `json:"updated"`
	EventMarked    bool         `json:"event_marked"`
	EventMarkError string       `json:"event_mark_error,omitempty"`
	CommittedAt    time.Time    `json:"committed_at"`
}

// CanReconcile is the eligibility predicate: pure function of the
// mercadillo record and wall-clock time. It must pass before any
// commit write happens.
func CanReconcile(m *domain.Mercadillo, now time.Time) (bool, string) {
	if m.StockReconciled {
		return false, ReasonAlreadyReconciled
	}
	if m.Status == domain.MercadilloPlanned {
		return false, ReasonNotFinished
	}
	if elapsedDays(m.Date, now) > MaxReconcileAgeDays {
		return false, ReasonTooOld
	}
	return true, ""
}

// elapsedDays counts whole days between the event date and now.
func elapsedDays(date, now time.Time) int {
	return int(now.Sub(date).Hours() / 24)
}

type eventLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (e *eventLocks) get(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locks == nil {
		e.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// Service runs the stock reconciliation workflow. Stores are injected
// explicitly so tests can substitute fakes.
type Service struct {
	events   EventRepository
	products ProductRepository
	lines    IncomeLineRepository

	bus     EventBus.Bus
	reports *ReportStore
	workers int
	now     func() time.Time
	locks   eventLocks
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithBus publishes commit reports on the given event bus.
func WithBus(bus EventBus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithReportStore archives commit reports in the given store.
func WithReportStore(rs *ReportStore) Option {
	return func(s *Service) { s.reports = rs }
}

// WithPreviewWorkers bounds concurrent product lookups during Preview.
func WithPreviewWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// WithClock overrides the wall clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the reconciliation service.
func NewService(events EventRepository, products ProductRepository, lines IncomeLineRepository, opts ...Option) *Service {
	s := &Service{
		events:   events,
		products: products,
		lines:    lines,
		workers:  4,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// aggRow is quantity sold per distinct product, ordered by first
// appearance in the income lines.
type aggRow struct {
	ProductID   int64
	ProductName string
	Sold        int
}

// aggregate sums quantities per product. Two income lines referencing
// the same product collapse into one row with the summed quantity.
func aggregate(lines []SaleLine) []aggRow {
	index := make(map[int64]int, len(lines))
	rows := make([]aggRow, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			rows[i].Sold += line.Quantity
			continue
		}
		index[line.ProductID] = len(rows)
		rows = append(rows, aggRow{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Sold:        line.Quantity,
		})
	}
	return rows
}

// clampStock applies new stock = max(0, current - sold).
func clampStock(current, sold int) int {
	next := current - sold
	if next < 0 {
		return 0
	}
	return next
}

// Preview shows what Commit would do, one row per distinct product
// sold, without side effects. Products that no longer exist are left
// out. Safe to call repeatedly.
func (s *Service) Preview(ctx context.Context, mercadilloID int64) ([]PreviewRow, error) {
	lines, err := s.lines.ListWithProducts(ctx, mercadilloID)
	if err != nil {
		return nil, err
	}
	agg := aggregate(lines)
	if len(agg) == 0 {
		return []PreviewRow{}, nil
	}

	workers := s.workers
	if workers > len(agg) {
		workers = len(agg)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	slots := make([]*PreviewRow, len(agg))
	var wg sync.WaitGroup
	for i := range agg {
		i := i
		row := agg[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			product, err := s.products.GetByID(ctx, row.ProductID)
			if err != nil {
				zap.L().Warn("preview: product lookup failed",
					zap.Int64("product_id", row.ProductID),
					zap.Error(err))
				return
			}
			slots[i] = &PreviewRow{
				ProductID:    row.ProductID,
				ProductName:  product.Name,
				CurrentStock: product.Stock,
				QuantitySold: row.Sold,
				NewStock:     clampStock(product.Stock, row.Sold),
			}
		}); err != nil {
			wg.Done()
			return nil, err
		}
	}
	wg.Wait()

	preview := make([]PreviewRow, 0, len(agg))
	for _, slot := range slots {
		if slot != nil {
			preview = append(preview, *slot)
		}
	}
	return preview, nil
}

// Commit converts the recorded sales into permanent stock decrements,
// exactly once per mercadillo. Sales are re-fetched and re-aggregated;
// a stale preview is never trusted. Per-product write failures are
// collected in the report and do not stop the loop, and the reconciled
// flag is set afterwards regardless of partial failures. The only
// guard against a second run is the eligibility flag, not the
// arithmetic.
func (s *Service) Commit(ctx context.Context, mercadilloID int64) (*Report, error) {
	// Serializes double-clicks through this process only; the
	// eligibility re-check below remains the real gate.
	lock := s.locks.get(mercadilloID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	mercadillo, err := s.events.GetByID(ctx, mercadilloID)
	if err != nil {
		return nil, err
	}
	if ok, reason := CanReconcile(mercadillo, now); !ok {
		return nil, &IneligibleError{Reason: reason}
	}

	lines, err := s.lines.ListWithProducts(ctx, mercadilloID)
	if err != nil {
		return nil, err
	}
	agg := aggregate(lines)
	if len(agg) == 0 {
		return nil, ErrNoSales
	}

	zap.L().Info("stock reconciliation started",
		zap.Int64("mercadillo_id", mercadilloID),
		zap.String("mercadillo", mercadillo.Name),
		zap.Int("products", len(agg)))

	report := &Report{
		MercadilloID:   mercadilloID,
		MercadilloName: mercadillo.Name,
		TotalProducts:  len(agg),
		Results:        make([]ItemResult, 0, len(agg)),
		CommittedAt:    now,
	}

	for _, row := range agg {
		product, err := s.products.GetByID(ctx, row.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Sold product no longer exists; skip instead of aborting
			// the batch.
			zap.L().Warn("reconciliation: product vanished, skipping",
				zap.Int64("product_id", row.ProductID),
				zap.String("product", row.ProductName))
			continue
		}
		if err != nil {
			report.Results = append(report.Results, ItemResult{
				ProductID:    row.ProductID,
				ProductName:  row.ProductName,
				QuantitySold: row.Sold,
				Error:        err.Error(),
			})
			continue
		}

		newStock := clampStock(product.Stock, row.Sold)
		if err := s.products.UpdateStock(ctx, product.ID, newStock); err != nil {
			zap.L().Error("reconciliation: stock update failed",
				zap.Int64("product_id", product.ID),
				zap.String("product", product.Name),
				zap.Error(err))
			report.Results = append(report.Results, ItemResult{
				ProductID:    product.ID,
				ProductName:  product.Name,
				PriorStock:   product.Stock,
				QuantitySold: row.Sold,
				Error:        err.Error(),
			})
			continue
		}

		zap.L().Info("reconciliation: stock updated",
			zap.String("product", product.Name),
			zap.Int("prior", product.Stock),
			zap.Int("sold", row.Sold),
			zap.Int("new", newStock))
		report.Results = append(report.Results, ItemResult{
			ProductID:    product.ID,
			ProductName:  product.Name,
			OK:           true,
			PriorStock:   product.Stock,
			QuantitySold: row.Sold,
			NewStock:     newStock,
		})
		report.Updated++
	}

	// The flag flips even when some product updates failed. Documented
	// tradeoff: the operator gets the partial-failure report instead of
	// a transactional guarantee.
	if err := s.events.MarkReconciled(ctx, mercadilloID); err != nil {
		zap.L().Error("reconciliation: failed to mark mercadillo",
			zap.Int64("mercadillo_id", mercadilloID),
			zap.Error(err))
		report.EventMarkError = err.Error()
	} else {
		report.EventMarked = true
	}

	metrics.Counter(metrics.MetricStockCommit)
	if report.Updated < report.TotalProducts {
		metrics.Counter(metrics.MetricStockCommitFail)
	}

	if s.reports != nil {
		if err := s.reports.Save(report); err != nil {
			zap.L().Warn("reconciliation: report archive failed", zap.Error(err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(TopicReconciled, report)
	}

	zap.L().Info("stock reconciliation finished",
		zap.Int64("mercadillo_id", mercadilloID),
		zap.Int("updated", report.Updated),
		zap.Int("total", report.TotalProducts))
	return report, nil
}
