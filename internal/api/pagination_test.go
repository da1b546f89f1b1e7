package api

import (
	"net/http/httptest"
	"testing"
)

func TestParsePagination_Defaults(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/api/incidents", nil))
	if p.Page != 1 || p.PerPage != 50 {
		t.Errorf("defaults = %+v, want page 1 per_page 50", p)
	}
}

func TestParsePagination_Values(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/api/incidents?page=3&per_page=20", nil))
	if p.Page != 3 || p.PerPage != 20 {
		t.Errorf("parsed = %+v", p)
	}
	if p.Offset() != 40 {
		t.Errorf("offset = %d, want 40", p.Offset())
	}
}

func TestParsePagination_ClampsAndIgnoresGarbage(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/api/incidents?page=-1&per_page=9999", nil))
	if p.Page != 1 {
		t.Errorf("page = %d, want 1 for invalid input", p.Page)
	}
	if p.PerPage != 200 {
		t.Errorf("per_page = %d, want clamp 200", p.PerPage)
	}

	p = ParsePagination(httptest.NewRequest("GET", "/api/incidents?page=abc", nil))
	if p.Page != 1 {
		t.Errorf("page = %d, want 1 for non-numeric input", p.Page)
	}
}

func TestTotalPages(t *testing.T) {
	p := PaginationParams{Page: 1, PerPage: 50}
	cases := []struct {
		total int64
		want  int
	}{
		{0, 0},
		{1, 1},
		{50, 1},
		{51, 2},
		{150, 3},
	}
	for _, tc := range cases {
		if got := p.TotalPages(tc.total); got != tc.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}
