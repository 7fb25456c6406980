package kvstore

import (
	"fmt"
	"path/filepath"
	"testing"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "env.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetErase(t *testing.T) {
	s := openTempStore(t)
	name := []byte("main")
	if err := s.CreateSubDB(name); err != nil {
		t.Fatalf("CreateSubDB: %v", err)
	}

	wtx, err := s.BeginWrite(name)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := wtx.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, err := s.BeginRead(name)
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Discard()
	v, err := rtx.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("got %q want v1", v)
	}

	wtx2, err := s.BeginWrite(name)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := wtx2.Erase([]byte("k1")); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if err := wtx2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx2, err := s.BeginRead(name)
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx2.Discard()
	if _, err := rtx2.Get([]byte("k1")); err != ErrNotFound {
		t.Fatalf("got err %v want ErrNotFound", err)
	}
}

// TestInsertionOrderIteration covers S3: 50 (k,v) pairs round-trip through
// close/reopen in insertion order.
func TestInsertionOrderIteration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.db")
	name := []byte("main")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CreateSubDB(name); err != nil {
		t.Fatalf("CreateSubDB: %v", err)
	}

	wtx, err := s.BeginWrite(name)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	const n = 50
	for i := 0; i < n; i++ {
		k := []byte(fmt.Sprintf("k%03d", i))
		v := []byte(fmt.Sprintf("v%03d", i))
		if err := wtx.Put(k, v); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	rtx, err := s2.BeginRead(name)
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Discard()

	it := rtx.IteratorFrom([]byte("k"))
	i := 0
	for it.Next() {
		wantK := fmt.Sprintf("k%03d", i)
		wantV := fmt.Sprintf("v%03d", i)
		if string(it.Key()) != wantK || string(it.Value()) != wantV {
			t.Fatalf("entry %d: got (%s,%s) want (%s,%s)", i, it.Key(), it.Value(), wantK, wantV)
		}
		i++
	}
	if i != n {
		t.Fatalf("got %d entries want %d", i, n)
	}
}

func TestNestedWriteTransaction(t *testing.T) {
	s := openTempStore(t)
	name := []byte("main")
	if err := s.CreateSubDB(name); err != nil {
		t.Fatalf("CreateSubDB: %v", err)
	}

	outer, err := s.BeginWrite(name)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := outer.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	inner, err := outer.Begin()
	if err != nil {
		t.Fatalf("nested Begin: %v", err)
	}
	if err := inner.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Inner sees outer's uncommitted write.
	if v, err := inner.Get([]byte("a")); err != nil || string(v) != "1" {
		t.Fatalf("inner should see outer write: %v %v", v, err)
	}
	if err := inner.Commit(); err != nil {
		t.Fatalf("inner Commit: %v", err)
	}
	if err := outer.Commit(); err != nil {
		t.Fatalf("outer Commit: %v", err)
	}

	rtx, err := s.BeginRead(name)
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Discard()
	for _, kv := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}} {
		got, err := rtx.Get([]byte(kv.k))
		if err != nil || string(got) != kv.v {
			t.Fatalf("key %s: got %v %v want %s", kv.k, got, err, kv.v)
		}
	}
}

func TestNestedRollbackAbortsOuter(t *testing.T) {
	s := openTempStore(t)
	name := []byte("main")
	if err := s.CreateSubDB(name); err != nil {
		t.Fatalf("CreateSubDB: %v", err)
	}

	outer, err := s.BeginWrite(name)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := outer.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	inner, err := outer.Begin()
	if err != nil {
		t.Fatalf("nested Begin: %v", err)
	}
	if err := inner.Rollback(); err != nil {
		t.Fatalf("inner Rollback: %v", err)
	}
	// Outer commit must now abort the whole transaction.
	if err := outer.Commit(); err != nil {
		t.Fatalf("outer Commit: %v", err)
	}

	rtx, err := s.BeginRead(name)
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Discard()
	if _, err := rtx.Get([]byte("a")); err != ErrNotFound {
		t.Fatalf("expected abort to drop write, got err=%v", err)
	}
}
