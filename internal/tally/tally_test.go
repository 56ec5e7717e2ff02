package tally

import "testing"

func TestNewZeroFilled(t *testing.T) {
	b := New[uint32](8)
	if len(b) != 8 {
		t.Fatalf("len = %d, want 8", len(b))
	}
	for i, v := range b {
		if v != 0 {
			t.Errorf("cell %d = %d, want 0", i, v)
		}
	}
}

func TestAddWithinHint(t *testing.T) {
	b := New[uint64](4)
	b.Add(2, 1)
	b.Add(2, 3)
	if b[2] != 4 {
		t.Errorf("cell 2 = %d, want 4", b[2])
	}
	if len(b) != 4 {
		t.Errorf("len = %d, want 4 (no growth expected)", len(b))
	}
}

func TestAddGrows(t *testing.T) {
	b := New[uint32](2)
	b.Add(7, 5)
	if len(b) != 8 {
		t.Fatalf("len = %d, want 8", len(b))
	}
	if b[7] != 5 {
		t.Errorf("cell 7 = %d, want 5", b[7])
	}
	// Cells between the old length and the new index must be zero.
	for i := 2; i < 7; i++ {
		if b[i] != 0 {
			t.Errorf("cell %d = %d, want 0", i, b[i])
		}
	}
}

func TestReserveIdempotent(t *testing.T) {
	b := New[uint16](0)
	b.Reserve(3)
	b[3] = 9
	b.Reserve(3)
	b.Reserve(1)
	if len(b) != 4 {
		t.Fatalf("len = %d, want 4", len(b))
	}
	if b[3] != 9 {
		t.Errorf("cell 3 = %d, want 9 (Reserve must not clobber)", b[3])
	}
}

func TestGrowthPreservesCounts(t *testing.T) {
	b := New[uint32](1)
	b.Add(0, 2)
	for idx := uint64(1); idx < 100; idx++ {
		b.Add(idx, uint32(idx))
	}
	if b[0] != 2 {
		t.Errorf("cell 0 = %d, want 2 after repeated growth", b[0])
	}
	for idx := uint64(1); idx < 100; idx++ {
		if b[idx] != uint32(idx) {
			t.Fatalf("cell %d = %d, want %d", idx, b[idx], idx)
		}
	}
}
