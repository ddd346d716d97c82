package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is a year-month billing reference.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// ParsePeriod accepts "YYYY/MM", "YYYY-MM" (optionally followed by a day or
// time, as in "2025-10-01") and "MM/YYYY".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, fmt.Errorf("empty period")
	}

	var a, b string
	switch {
	case len(s) >= 7 && (s[4] == '/' || s[4] == '-'):
		a, b = s[:4], s[5:7]
	case len(s) == 7 && s[2] == '/':
		a, b = s[3:], s[:2]
	default:
		return Period{}, fmt.Errorf("unrecognized period %q", s)
	}

	year, err := strconv.Atoi(a)
	if err != nil {
		return Period{}, fmt.Errorf("invalid year in period %q: %w", s, err)
	}
	month, err := strconv.Atoi(b)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month in period %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("month out of range in period %q", s)
	}
	return Period{Year: year, Month: month}, nil
}

// ParsePeriodList parses a comma-separated list, skipping blanks.
func ParsePeriodList(s string) ([]Period, error) {
	var out []Period
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePeriod(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// String renders the canonical "YYYY/MM" form used by the portal APIs.
func (p Period) String() string {
	return fmt.Sprintf("%04d/%02d", p.Year, p.Month)
}

// Dashed renders "YYYY-MM", used for directory and file names.
func (p Period) Dashed() string {
	return strings.ReplaceAll(p.String(), "/", "-")
}

// Index orders periods chronologically.
func (p Period) Index() int {
	return p.Year*12 + (p.Month - 1)
}

func (p Period) After(o Period) bool { return p.Index() > o.Index() }
