package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	oautherrors "github.com/tendant/simple-oauth/internal/errors"
)

func TestPutGet(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Put(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	val, err := kv.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "v1" {
		t.Errorf("value = %q, want %q", val, "v1")
	}

	_, err = kv.Get(ctx, "missing")
	if !oautherrors.IsCode(err, oautherrors.CodeNotFound) {
		t.Errorf("missing key should be not_found, got %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Put(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := kv.Get(ctx, "short"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := kv.Get(ctx, "short"); !oautherrors.IsCode(err, oautherrors.CodeNotFound) {
		t.Errorf("expired key should be not_found, got %v", err)
	}
}

func TestGetDelSingleUse(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Put(ctx, "code", []byte("grant"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	val, err := kv.GetDel(ctx, "code")
	if err != nil {
		t.Fatalf("GetDel failed: %v", err)
	}
	if string(val) != "grant" {
		t.Errorf("value = %q, want %q", val, "grant")
	}

	if _, err := kv.GetDel(ctx, "code"); !oautherrors.IsCode(err, oautherrors.CodeNotFound) {
		t.Errorf("second GetDel should be not_found, got %v", err)
	}
}

func TestGetDelConcurrent(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Put(ctx, "code", []byte("grant"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := kv.GetDel(ctx, "code"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("exactly one GetDel should succeed, got %d", count)
	}
}

func TestDelete(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := kv.Get(ctx, "k"); !oautherrors.IsCode(err, oautherrors.CodeNotFound) {
		t.Errorf("deleted key should be not_found, got %v", err)
	}

	// Absent key is not an error.
	if err := kv.Delete(ctx, "absent"); err != nil {
		t.Errorf("deleting absent key should succeed: %v", err)
	}
}

func TestListPrefix(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	for _, k := range []string{"consent:alice:app1", "consent:alice:app2", "consent:bob:app1", "token:x"} {
		if err := kv.Put(ctx, k, []byte("v"), 0); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := kv.List(ctx, "consent:alice:")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("got %d keys, want 2: %v", len(keys), keys)
	}
}
