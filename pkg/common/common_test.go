package common

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestUUIDint64Unique(t *testing.T) {
	c := qt.New(t)
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		id := UUIDint64()
		c.Assert(id > 0, qt.IsTrue)
		c.Assert(seen[id], qt.IsFalse)
		seen[id] = true
	}
}

func TestPasswordHashing(t *testing.T) {
	c := qt.New(t)
	hash, err := HashPassword("mercadillo")
	c.Assert(err, qt.IsNil)
	c.Assert(hash, qt.Not(qt.Equals), "mercadillo")
	c.Assert(CheckPassword(hash, "mercadillo"), qt.IsTrue)
	c.Assert(CheckPassword(hash, "wrong"), qt.IsFalse)
}

func TestNormalizeEmail(t *testing.T) {
	c := qt.New(t)
	c.Assert(NormalizeEmail("  Ana@Example.COM "), qt.Equals, "ana@example.com")
	c.Assert(NormalizeEmail(""), qt.Equals, "")
}
