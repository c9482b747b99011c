package kindyn_test

import (
	"testing"

	"github.com/fils99/bipedal-locomotion-framework/internal/kindyn"
)

func TestStaticModelFrameIndex(t *testing.T) {
	m := kindyn.NewStaticModel("root_link", "l_sole", "r_sole")

	tests := []struct {
		name      string
		frame     string
		wantIndex int
		wantOK    bool
	}{
		{"first frame", "root_link", 0, true},
		{"left sole", "l_sole", 1, true},
		{"right sole", "r_sole", 2, true},
		{"absent frame", "head", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := m.FrameIndex(tt.frame)
			if ok != tt.wantOK {
				t.Fatalf("FrameIndex(%q) ok = %v, want %v", tt.frame, ok, tt.wantOK)
			}
			if ok && idx != tt.wantIndex {
				t.Errorf("FrameIndex(%q) = %d, want %d", tt.frame, idx, tt.wantIndex)
			}
		})
	}
}

func TestStaticModelDuplicateKeepsFirst(t *testing.T) {
	m := kindyn.NewStaticModel("l_sole", "l_sole")
	idx, ok := m.FrameIndex("l_sole")
	if !ok || idx != 0 {
		t.Errorf("FrameIndex(l_sole) = %d, %v; want 0, true", idx, ok)
	}
}
