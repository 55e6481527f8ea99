package scheduler

import (
	"errors"
	"testing"
)

func TestAllocSequential(t *testing.T) {
	a := newIDAllocator(10)
	for i := 0; i < 10; i++ {
		id, err := a.alloc()
		if err != nil {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
		if id != i {
			t.Errorf("Expected id %d, got %d", i, id)
		}
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := newIDAllocator(3)
	for i := 0; i < 3; i++ {
		if _, err := a.alloc(); err != nil {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
	}
	if _, err := a.alloc(); !errors.Is(err, ErrOutOfIDs) {
		t.Errorf("Expected ErrOutOfIDs, got %v", err)
	}
}

func TestFreeMakesIDReusable(t *testing.T) {
	a := newIDAllocator(3)
	for i := 0; i < 3; i++ {
		a.alloc()
	}
	a.free(1)
	id, err := a.alloc()
	if err != nil {
		t.Fatalf("alloc after free failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected freed id 1 to be reused, got %d", id)
	}
}

func TestCursorWrapsAround(t *testing.T) {
	a := newIDAllocator(3)
	a.alloc() // 0
	a.alloc() // 1
	a.alloc() // 2
	a.free(0)
	// Cursor sits at 2; the scan must wrap to find slot 0.
	id, err := a.alloc()
	if err != nil {
		t.Fatalf("alloc after wrap failed: %v", err)
	}
	if id != 0 {
		t.Errorf("Expected wrapped alloc to return 0, got %d", id)
	}
}
