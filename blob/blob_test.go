package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

func TestMemStorePutThenGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	if err := s.Put(ctx, "blob://a", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "blob://a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestMemStoreGetMissingIsNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.Get(context.Background(), "blob://missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStorePutIsIdempotentWriteOnce(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	s.Put(ctx, "blob://a", []byte("first"))
	if err := s.Put(ctx, "blob://a", []byte("second")); err != nil {
		t.Fatalf("second put: %v", err)
	}
	got, _ := s.Get(ctx, "blob://a")
	if string(got) != "first" {
		t.Fatalf("expected write-once semantics to preserve first write, got %q", got)
	}
}

func TestMemStoreFailNextIsTransient(t *testing.T) {
	s := NewMemStore()
	s.FailNext = true
	_, err := s.Get(context.Background(), "blob://a")
	if !pipelineerr.Is(err, pipelineerr.KindTransient) {
		t.Fatalf("expected transient error, got %v", pipelineerr.KindOf(err))
	}
}
