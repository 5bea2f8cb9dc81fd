package slippage

import "testing"

func TestBps(t *testing.T) {
	cases := []struct {
		expected, received, want float64
	}{
		{1000, 1000, 0},
		{1000, 999, 10},
		{1000, 1001, -10},
		{0, 5, 0},
	}
	for _, tc := range cases {
		if got := Bps(tc.expected, tc.received); got < tc.want-1e-9 || got > tc.want+1e-9 {
			t.Fatalf("Bps(%v, %v) = %v, want %v", tc.expected, tc.received, got, tc.want)
		}
	}
}
