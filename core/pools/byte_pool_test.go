package pools

import "testing"

func TestBytePoolTiers(t *testing.T) {
	bp := NewBytePool()

	tests := []struct {
		size    int
		wantCap int
	}{
		{1, 512},
		{512, 512},
		{513, 2048},
		{8000, 8192},
		{32768, 32768},
	}
	for _, tt := range tests {
		buf := bp.Get(tt.size)
		if len(buf) != tt.size {
			t.Fatalf("Get(%d): len = %d", tt.size, len(buf))
		}
		if cap(buf) != tt.wantCap {
			t.Fatalf("Get(%d): cap = %d, want %d", tt.size, cap(buf), tt.wantCap)
		}
		bp.Put(buf)
	}
}

func TestBytePoolOversized(t *testing.T) {
	bp := NewBytePool()
	buf := bp.Get(1 << 20)
	if len(buf) != 1<<20 {
		t.Fatalf("len = %d", len(buf))
	}
	bp.Put(buf) // capacity matches no tier, must not panic
}

func TestBytePoolReuse(t *testing.T) {
	bp := NewBytePoolWithSizes([]int{64})
	buf := bp.Get(64)
	buf[0] = 0xAA
	bp.Put(buf)

	again := bp.Get(64)
	if cap(again) != 64 {
		t.Fatalf("cap = %d", cap(again))
	}
}
