package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

// conformance runs the Store contract against any backend.
func conformance(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = (_, %v, %v), want absent without error", ok, err)
	}

	if err := st.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := st.Get(ctx, "token")
	if err != nil || !ok || v != "abc" {
		t.Fatalf("Get = (%q, %v, %v), want (abc, true, nil)", v, ok, err)
	}

	if err := st.Set(ctx, "token", "def"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if v, _, _ := st.Get(ctx, "token"); v != "def" {
		t.Fatalf("Get after overwrite = %q, want def", v)
	}

	if err := st.Remove(ctx, "token"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "token"); ok {
		t.Fatal("key survived Remove")
	}

	// Removing an absent key is not an error.
	if err := st.Remove(ctx, "token"); err != nil {
		t.Fatalf("Remove(absent) = %v, want nil", err)
	}
}

func TestMemoryConformance(t *testing.T) {
	conformance(t, NewMemory())
}

func TestMemoryConcurrentAccess(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n)
			for j := 0; j < 100; j++ {
				_ = st.Set(ctx, key, "v")
				_, _, _ = st.Get(ctx, key)
				_ = st.Remove(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}

func TestFileConformance(t *testing.T) {
	st, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	conformance(t, st)
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	if err := st.Set(ctx, "user", `{"id":"u1"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := NewFile(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	v, ok, err := reopened.Get(ctx, "user")
	if err != nil || !ok || v != `{"id":"u1"}` {
		t.Fatalf("Get after reopen = (%q, %v, %v)", v, ok, err)
	}
}

func TestFileEncodesHostileKeys(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	ctx := context.Background()

	key := "../escape/attempt"
	if err := st.Set(ctx, key, "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok, _ := st.Get(ctx, key); !ok || v != "v" {
		t.Fatalf("round trip failed: (%q, %v)", v, ok)
	}

	// Nothing may land outside the store directory.
	outside, _ := filepath.Glob(filepath.Join(filepath.Dir(dir), "escape", "*"))
	if len(outside) != 0 {
		t.Fatalf("key escaped the store directory: %v", outside)
	}
}

func TestFileCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "session")
	st, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	if err := st.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestErrUnavailableWrapping(t *testing.T) {
	// A store rooted at an unwritable path reports ErrUnavailable so callers
	// can distinguish backend failure from absence.
	st := &File{dir: filepath.Join(t.TempDir(), "gone", "missing")}
	err := st.Set(context.Background(), "k", "v")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
