package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logx "telebrief/pkg/logx"
)

func newFileStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "digest_messages.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestFileStoreSaveGetClear(t *testing.T) {
	t.Parallel()
	st, _ := newFileStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, 42, []int{5, 3, 9}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 3 || got[0] != 5 || got[1] != 3 || got[2] != 9 {
		t.Fatalf("Get = %v, want [5 3 9] in order", got)
	}

	// Save overwrites, never appends.
	if err := st.Save(ctx, 42, []int{7}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ = st.Get(ctx, 42)
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("after overwrite Get = %v, want [7]", got)
	}

	if err := st.Clear(ctx, 42); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = st.Get(ctx, 42)
	if err != nil || len(got) != 0 {
		t.Fatalf("after Clear Get = %v, %v; want empty, nil", got, err)
	}
}

func TestFileStoreMissingFileReadsEmpty(t *testing.T) {
	t.Parallel()
	st, _ := newFileStore(t)

	got, err := st.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get = %v, want empty", got)
	}
}

func TestFileStoreCorruptFileReadsEmpty(t *testing.T) {
	t.Parallel()
	st, path := newFileStore(t)
	ctx := context.Background()

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	got, err := st.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get on corrupt file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get = %v, want empty", got)
	}

	// A save recovers the file.
	if err := st.Save(ctx, 1, []int{4}); err != nil {
		t.Fatalf("Save over corrupt file: %v", err)
	}
	got, _ = st.Get(ctx, 1)
	if len(got) != 1 || got[0] != 4 {
		t.Fatalf("Get = %v, want [4]", got)
	}
}

func TestFileStoreIsolatesRecipients(t *testing.T) {
	t.Parallel()
	st, _ := newFileStore(t)
	ctx := context.Background()

	_ = st.Save(ctx, 1, []int{10})
	_ = st.Save(ctx, 2, []int{20})
	_ = st.Clear(ctx, 1)

	got, _ := st.Get(ctx, 2)
	if len(got) != 1 || got[0] != 20 {
		t.Fatalf("clearing one recipient touched another: %v", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
