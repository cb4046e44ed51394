package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(t *testing.T, query string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest("GET", "/patients?"+query, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext(t, ""))
	if p.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", p.Limit, DefaultLimit)
	}
	if p.Offset != 0 {
		t.Errorf("Offset = %d, want 0", p.Offset)
	}
}

func TestFromContext_Explicit(t *testing.T) {
	p := FromContext(newContext(t, "limit=50&offset=120"))
	if p.Limit != 50 {
		t.Errorf("Limit = %d, want 50", p.Limit)
	}
	if p.Offset != 120 {
		t.Errorf("Offset = %d, want 120", p.Offset)
	}
}

func TestFromContext_Clamping(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"limit above max", "limit=500", MaxLimit, 0},
		{"zero limit", "limit=0", DefaultLimit, 0},
		{"negative limit", "limit=-5", DefaultLimit, 0},
		{"negative offset", "offset=-10", DefaultLimit, 0},
		{"garbage values", "limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromContext(newContext(t, tt.query))
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}

	resp := NewResponse(data, 10, 3, 0)
	if resp.Total != 10 {
		t.Errorf("Total = %d, want 10", resp.Total)
	}
	if !resp.HasMore {
		t.Error("HasMore = false, want true")
	}

	last := NewResponse(data, 10, 3, 9)
	if last.HasMore {
		t.Error("HasMore = true on last page, want false")
	}
}

func TestParams_SQL(t *testing.T) {
	p := Params{Limit: 25, Offset: 50}
	if got := p.SQL(); got != "LIMIT 25 OFFSET 50" {
		t.Errorf("SQL() = %q", got)
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}

	if !p.HasNext(100) {
		t.Error("HasNext(100) = false, want true")
	}
	if p.HasNext(60) {
		t.Error("HasNext(60) = true, want false")
	}
	if !p.HasPrevious() {
		t.Error("HasPrevious() = false, want true")
	}
	if got := p.NextOffset(); got != 60 {
		t.Errorf("NextOffset() = %d, want 60", got)
	}
	if got := p.PreviousOffset(); got != 20 {
		t.Errorf("PreviousOffset() = %d, want 20", got)
	}

	first := Params{Limit: 20, Offset: 10}
	if got := first.PreviousOffset(); got != 0 {
		t.Errorf("PreviousOffset() = %d, want 0", got)
	}
	if (Params{Limit: 20}).HasPrevious() {
		t.Error("HasPrevious() on first page = true, want false")
	}
}
