// Package subjectdate parses calendar dates out of free-text email
// subjects. Recognition is a fixed, ordered list of format matchers;
// the first matcher that produces a valid calendar date wins. Absence
// of a date is a normal outcome, not an error.
package subjectdate

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month int
	Day   int
}

// FromCompact parses the strict 8-digit YYYYMMDD form.
func FromCompact(s string) (Date, error) {
	if len(s) != 8 {
		return Date{}, fmt.Errorf("want 8-digit YYYYMMDD, got %q", s)
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// Compact renders the date in the 8-digit YYYYMMDD form.
func (d Date) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Valid reports whether the date exists on the calendar.
func (d Date) Valid() bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Year < 1 {
		return false
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && int(t.Month()) == d.Month && t.Day() == d.Day
}

// matcher attempts to recognize one date format family within text.
// referenceYear fills in formats that carry no explicit year.
type matcher interface {
	match(text string, referenceYear int) (Date, bool)
}

// matchers are tried in order; earlier formats are more specific.
// New formats are added by appending a matcher, not by editing
// existing ones.
var matchers = []matcher{
	koreanLongForm{},
	compactNumeric{},
	koreanShortForm{},
}

// Parse scans text for the first recognizable date. It returns false
// when no matcher finds a valid calendar date. Pure function: no I/O,
// deterministic given text and referenceYear.
func Parse(text string, referenceYear int) (Date, bool) {
	for _, m := range matchers {
		if d, ok := m.match(text, referenceYear); ok {
			return d, true
		}
	}
	return Date{}, false
}

// koreanLongForm recognizes "2025년09월04일" style subjects where the
// year is explicit.
type koreanLongForm struct{}

var koreanLongRe = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`)

func (koreanLongForm) match(text string, _ int) (Date, bool) {
	m := koreanLongRe.FindStringSubmatch(text)
	if m == nil {
		return Date{}, false
	}
	d := Date{
		Year:  mustAtoi(m[1]),
		Month: mustAtoi(m[2]),
		Day:   mustAtoi(m[3]),
	}
	if !d.Valid() {
		return Date{}, false
	}
	return d, true
}

// compactNumeric recognizes a bare 8-digit YYYYMMDD run. Longer digit
// runs are skipped so order numbers and phone numbers do not match.
type compactNumeric struct{}

var compactRe = regexp.MustCompile(`(?:^|\D)(\d{8})(?:\D|$)`)

func (compactNumeric) match(text string, _ int) (Date, bool) {
	for _, m := range compactRe.FindAllStringSubmatch(text, -1) {
		d, err := FromCompact(m[1])
		if err != nil {
			continue
		}
		return d, true
	}
	return Date{}, false
}

// koreanShortForm recognizes "09월04일" style subjects with no year;
// the reference year fills the gap.
type koreanShortForm struct{}

var koreanShortRe = regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`)

func (koreanShortForm) match(text string, referenceYear int) (Date, bool) {
	m := koreanShortRe.FindStringSubmatch(text)
	if m == nil {
		return Date{}, false
	}
	d := Date{
		Year:  referenceYear,
		Month: mustAtoi(m[1]),
		Day:   mustAtoi(m[2]),
	}
	if !d.Valid() {
		return Date{}, false
	}
	return d, true
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// Unreachable: inputs come from \d regexp groups.
		return 0
	}
	return n
}
