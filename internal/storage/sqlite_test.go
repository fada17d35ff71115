package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "telebrief/pkg/logx"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "digest.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	t.Parallel()
	st := newSQLiteStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, 42, []int{5, 3, 9}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 3 || got[0] != 5 || got[2] != 9 {
		t.Fatalf("Get = %v, want [5 3 9]", got)
	}

	if err := st.Save(ctx, 42, []int{1}); err != nil {
		t.Fatalf("overwrite Save: %v", err)
	}
	got, _ = st.Get(ctx, 42)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("after overwrite Get = %v, want [1]", got)
	}

	if err := st.Clear(ctx, 42); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = st.Get(ctx, 42)
	if err != nil || len(got) != 0 {
		t.Fatalf("after Clear Get = %v, %v; want empty, nil", got, err)
	}
}

func TestSQLiteStoreUnknownRecipient(t *testing.T) {
	t.Parallel()
	st := newSQLiteStore(t)

	got, err := st.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get = %v, want empty", got)
	}
}
