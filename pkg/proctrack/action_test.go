package proctrack

import "testing"

func TestClassifyAttach(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		owner  uint64
		target uint64
		found  bool
		want   attachAction
	}{
		{"unbound pid", 0, 5, false, attachFail},
		{"already in target", 5, 5, true, attachNoop},
		{"bound to stale container", 3, 5, true, attachMove},
		{"stale lookup after exit", 0, 5, false, attachFail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyAttach(tc.owner, tc.target, tc.found); got != tc.want {
				t.Errorf("classifyAttach(%d, %d, %v) = %d, want %d",
					tc.owner, tc.target, tc.found, got, tc.want)
			}
		})
	}
}
