package models

import "testing"

func TestParsePageQuery(t *testing.T) {
	tests := []struct {
		name          string
		page, perPage string
		want          PageQuery
	}{
		{name: "defaults", want: PageQuery{Page: 1, PerPage: 9}},
		{name: "explicit", page: "3", perPage: "20", want: PageQuery{Page: 3, PerPage: 20}},
		{name: "negative page", page: "-2", want: PageQuery{Page: 1, PerPage: 9}},
		{name: "zero per page", perPage: "0", want: PageQuery{Page: 1, PerPage: 9}},
		{name: "capped", perPage: "500", want: PageQuery{Page: 1, PerPage: MaxPerPage}},
		{name: "garbage", page: "two", perPage: "many", want: PageQuery{Page: 1, PerPage: 9}},
		{name: "huge page", page: "4611686018427387905", perPage: "2", want: PageQuery{Page: MaxPage, PerPage: 2}},
		{name: "page beyond int", page: "99999999999999999999", want: PageQuery{Page: 1, PerPage: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePageQuery(tt.page, tt.perPage, DefaultPerPage); got != tt.want {
				t.Errorf("ParsePageQuery(%q, %q) = %+v, want %+v", tt.page, tt.perPage, got, tt.want)
			}
		})
	}
}

func TestPageQueryOffset(t *testing.T) {
	if got := (PageQuery{Page: 3, PerPage: 9}).Offset(); got != 18 {
		t.Errorf("Offset = %d, want 18", got)
	}

	q := ParsePageQuery("4611686018427387905", "500", DefaultPerPage)
	if got := q.Offset(); got <= 0 {
		t.Errorf("Offset of the largest page = %d, want a positive offset", got)
	}
	if m := NewPageMeta(q, 3); m.LastPage != 1 || m.CurrentPage != MaxPage {
		t.Errorf("meta = %+v", m)
	}
}

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		name  string
		q     PageQuery
		total int64
		last  int
	}{
		{name: "empty", q: PageQuery{1, 9}, total: 0, last: 1},
		{name: "one partial page", q: PageQuery{1, 9}, total: 4, last: 1},
		{name: "exact pages", q: PageQuery{1, 9}, total: 18, last: 2},
		{name: "remainder", q: PageQuery{2, 9}, total: 19, last: 3},
		{name: "out of range keeps current", q: PageQuery{7, 10}, total: 12, last: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPageMeta(tt.q, tt.total)
			if m.LastPage != tt.last {
				t.Errorf("LastPage = %d, want %d", m.LastPage, tt.last)
			}
			if m.CurrentPage != tt.q.Page || m.PerPage != tt.q.PerPage || m.Total != tt.total {
				t.Errorf("meta = %+v", m)
			}
		})
	}
}
