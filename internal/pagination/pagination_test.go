package pagination

import (
	"net/url"
	"testing"
)

func TestNewButtonCount(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 10, 10},
		{5, 0, 0},
	}
	for _, tt := range tests {
		p := New(tt.total, tt.limit, 0)
		if len(p.Buttons) != tt.want || p.Pages != tt.want {
			t.Errorf("New(%d, %d) gave %d buttons, want %d", tt.total, tt.limit, len(p.Buttons), tt.want)
		}
	}
}

func TestButtonsAreZeroIndexedWithOneBasedLabels(t *testing.T) {
	p := New(25, 10, 1)
	want := []Button{{0, "1", false}, {1, "2", true}, {2, "3", false}}
	for i, b := range p.Buttons {
		if b != want[i] {
			t.Errorf("button %d = %+v, want %+v", i, b, want[i])
		}
	}
	if !p.HasPrev() || !p.HasNext() {
		t.Error("middle page should have prev and next")
	}
	if New(25, 10, 2).HasNext() {
		t.Error("last page should not have next")
	}
}

func TestParsePage(t *testing.T) {
	for raw, want := range map[string]int{"": 0, "3": 3, "-1": 0, "abc": 0} {
		q := url.Values{"page": {raw}}
		if got := ParsePage(q); got != want {
			t.Errorf("ParsePage(%q) = %d, want %d", raw, got, want)
		}
	}
}
