package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func newTestStore(t *testing.T) *ImageStore {
	t.Helper()
	store, err := NewImageStore(t.TempDir(), "http://127.0.0.1:1816")
	qt.Assert(t, err, qt.IsNil)
	return store
}

func TestSaveAndDelete(t *testing.T) {
	c := qt.New(t)
	store := newTestStore(t)

	url, err := store.Save("Foto Camiseta.PNG", strings.NewReader("png-bytes"))
	c.Assert(err, qt.IsNil)
	c.Assert(url, qt.Contains, "/uploads/products/")

	object := store.ObjectName(url)
	c.Assert(object, qt.Not(qt.Equals), "")
	data, err := os.ReadFile(filepath.Join(store.dir, object))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "png-bytes")

	c.Assert(store.Delete(url), qt.IsNil)
	_, err = os.Stat(filepath.Join(store.dir, object))
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	c := qt.New(t)
	store := newTestStore(t)
	_, err := store.Save("malware.exe", strings.NewReader("nope"))
	c.Assert(err, qt.ErrorMatches, `unsupported image type.*`)
}

func TestDeleteIgnoresForeignURL(t *testing.T) {
	c := qt.New(t)
	store := newTestStore(t)
	c.Assert(store.Delete("https://elsewhere.example/img.png"), qt.IsNil)
	c.Assert(store.Delete(""), qt.IsNil)
}

func TestGCKeepsReferenced(t *testing.T) {
	c := qt.New(t)
	store := newTestStore(t)

	kept, err := store.Save("keep.jpg", strings.NewReader("a"))
	c.Assert(err, qt.IsNil)
	dropped, err := store.Save("drop.jpg", strings.NewReader("b"))
	c.Assert(err, qt.IsNil)

	removed := store.GC(map[string]bool{store.ObjectName(kept): true})
	c.Assert(removed, qt.Equals, 1)

	_, err = os.Stat(filepath.Join(store.dir, store.ObjectName(kept)))
	c.Assert(err, qt.IsNil)
	_, err = os.Stat(filepath.Join(store.dir, store.ObjectName(dropped)))
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestObjectNameForeign(t *testing.T) {
	c := qt.New(t)
	store := newTestStore(t)
	c.Assert(store.ObjectName("http://x/uploads/products/a/b.png"), qt.Equals, "")
	c.Assert(store.ObjectName("http://x/other/a.png"), qt.Equals, "")
}
