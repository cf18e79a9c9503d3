package stock

import (
	"path/filepath"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var reportBucket = []byte("stock_reports")

// ReportStore archives commit reports in a local bbolt file under the
// workdir, keyed by mercadillo ID. The archive is informational: losing
// it never affects reconciliation correctness.
type ReportStore struct {
	db *bolt.DB
}

// OpenReportStore opens (or creates) workdir/stock_reports.db.
func OpenReportStore(workdir string) (*ReportStore, error) {
	db, err := bolt.Open(filepath.Join(workdir, "stock_reports.db"), 0o600, &bolt.Options{
		Timeout: 3 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open report store")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(reportBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init report store")
	}
	return &ReportStore{db: db}, nil
}

// Save stores the report, replacing any earlier one for the same
// mercadillo.
func (s *ReportStore) Save(report *Report) error {
	data, err := jsoniter.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(reportBucket).Put(key(report.MercadilloID), data)
	})
}

// Get returns the archived report for a mercadillo, or nil when none
// exists.
func (s *ReportStore) Get(mercadilloID int64) (*Report, error) {
	var report *Report
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(reportBucket).Get(key(mercadilloID))
		if data == nil {
			return nil
		}
		report = new(Report)
		return jsoniter.Unmarshal(data, report)
	})
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	return report, nil
}

// Close closes the underlying bolt file.
func (s *ReportStore) Close() error {
	return s.db.Close()
}

func key(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}
