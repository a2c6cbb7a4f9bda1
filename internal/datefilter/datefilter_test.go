package datefilter

import (
	"testing"
	"time"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in        string
		wantYear  int
		wantMonth time.Month
		wantNil   bool
		wantErr   bool
	}{
		{in: "", wantNil: true},
		{in: "2025-08", wantYear: 2025, wantMonth: time.August},
		{in: "2000-01", wantYear: 2000, wantMonth: time.January},
		{in: "2100-12", wantYear: 2100, wantMonth: time.December},
		{in: "2025-8", wantErr: true},
		{in: "25-08", wantErr: true},
		{in: "2025/08", wantErr: true},
		{in: "2025-13", wantErr: true},
		{in: "2025-00", wantErr: true},
		{in: "1999-05", wantErr: true},
		{in: "2101-05", wantErr: true},
		{in: "abcd-ef", wantErr: true},
	}

	for _, tc := range cases {
		f, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Parse(%q): expected error, got %+v", tc.in, f)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tc.in, err)
		}
		if tc.wantNil {
			if f != nil {
				t.Fatalf("Parse(%q): expected nil filter, got %+v", tc.in, f)
			}
			continue
		}
		if f.Year != tc.wantYear || f.Month != tc.wantMonth {
			t.Fatalf("Parse(%q) = %d-%d, want %d-%d", tc.in, f.Year, f.Month, tc.wantYear, tc.wantMonth)
		}
	}
}

func TestMatches(t *testing.T) {
	f := &Filter{Year: 2025, Month: time.August}

	if !f.Matches(time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("same month should match")
	}
	if f.Matches(time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("previous month should not match")
	}
	if f.Matches(time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("same month of another year should not match")
	}

	// nil 过滤器放行一切
	var none *Filter
	if !none.Matches(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("nil filter should match everything")
	}
}

func TestApply(t *testing.T) {
	links := []announce.Link{
		{Title: "in range", URL: "https://www.amazonaws.cn/en/new/a/", PublishedAt: time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)},
		{Title: "out of range", URL: "https://www.amazonaws.cn/en/new/b/", PublishedAt: time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)},
		{Title: "no date", URL: "https://www.amazonaws.cn/en/new/c/"},
	}

	f := &Filter{Year: 2025, Month: time.August}
	got := Apply(links, f)
	if len(got) != 1 {
		t.Fatalf("expected 1 link after filtering, got %d", len(got))
	}
	if got[0].Title != "in range" {
		t.Fatalf("wrong link kept: %q", got[0].Title)
	}

	// 无过滤器时原样返回，包括没有日期的链接
	got = Apply(links, nil)
	if len(got) != 3 {
		t.Fatalf("expected all 3 links without filter, got %d", len(got))
	}
}

func TestString(t *testing.T) {
	f := &Filter{Year: 2025, Month: time.March}
	if got := f.String(); got != "2025-03" {
		t.Fatalf("String() = %q, want 2025-03", got)
	}
}
