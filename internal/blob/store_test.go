package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "exports/a.json", strings.NewReader(`{"a":1}`), PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"source": "test"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/a.json" || info.Size != 7 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "exports/a.json", strings.NewReader("x"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on overwrite, got %v", err)
	}
	if _, err := store.Put(ctx, "exports/b.json", strings.NewReader(`{}`), PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := store.Put(ctx, "other/c.txt", strings.NewReader("c"), PutOptions{}); err != nil {
		t.Fatalf("put c: %v", err)
	}

	got, rc, err := store.Get(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != `{"a":1}` {
		t.Fatalf("unexpected body %q", body)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("expected content type to round trip, got %q", got.ContentType)
	}

	head, err := store.Head(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != 7 {
		t.Fatalf("expected size 7, got %d", head.Size)
	}

	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exports/a.json" || list[1].Key != "exports/b.json" {
		t.Fatalf("unexpected listing %+v", list)
	}

	if _, _, err := store.Get(ctx, "exports/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(ctx, "exports/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}

	deleted, err := store.Delete(ctx, "exports/b.json")
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "exports/b.json")
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v %v", deleted, err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	exerciseStore(t, store)
	if _, err := store.PresignURL(context.Background(), "exports/a.json", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestMemoryStoreCopiesMetadata(t *testing.T) {
	store := NewMemory()
	md := map[string]string{"k": "v"}
	if _, err := store.Put(context.Background(), "k", strings.NewReader("x"), PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["k"] = "changed"
	info, err := store.Head(context.Background(), "k")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Metadata["k"] != "v" {
		t.Fatalf("expected stored metadata to be isolated, got %v", info.Metadata)
	}
}

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	exerciseStore(t, store)

	url, err := store.PresignURL(context.Background(), "exports/a.json", SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/exports/a.json") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.PresignURL(context.Background(), "exports/a.json", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}

func TestFilesystemRejectsUnsafeKeys(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	for _, key := range []string{"", " ", "/etc/passwd", "../escape", "a/../../b", "x.meta"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestFilesystemETagIsContentHash(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	a, err := store.Put(context.Background(), "one", strings.NewReader("same"), PutOptions{})
	if err != nil {
		t.Fatalf("put one: %v", err)
	}
	b, err := store.Put(context.Background(), "two", strings.NewReader("same"), PutOptions{})
	if err != nil {
		t.Fatalf("put two: %v", err)
	}
	if a.ETag == "" || a.ETag != b.ETag {
		t.Fatalf("expected equal content hashes, got %q and %q", a.ETag, b.ETag)
	}
}
