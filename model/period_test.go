package model

import "testing"

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{in: "2025/10", want: Period{Year: 2025, Month: 10}},
		{in: " 2025-03 ", want: Period{Year: 2025, Month: 3}},
		{in: "2025-10-01", want: Period{Year: 2025, Month: 10}},
		{in: "2025-10-01T00:00:00", want: Period{Year: 2025, Month: 10}},
		{in: "07/2024", want: Period{Year: 2024, Month: 7}},
		{in: "2025/13", wantErr: true},
		{in: "2025/00", wantErr: true},
		{in: "13/2025", wantErr: true},
		{in: "", wantErr: true},
		{in: "2025/1", wantErr: true},
		{in: "outubro", wantErr: true},
		{in: "abcd/10", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePeriod(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePeriod(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePeriodList(t *testing.T) {
	got, err := ParsePeriodList("2025/09, ,2025-10,,11/2025")
	if err != nil {
		t.Fatalf("ParsePeriodList: %v", err)
	}
	want := []string{"2025/09", "2025/10", "2025/11"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, p := range got {
		if p.String() != want[i] {
			t.Fatalf("period %d = %s, want %s", i, p, want[i])
		}
	}

	if got, err := ParsePeriodList(" , "); err != nil || len(got) != 0 {
		t.Fatalf("blank list = %v, %v", got, err)
	}
	if _, err := ParsePeriodList("2025/10,2025/13"); err == nil {
		t.Fatalf("expected an invalid entry to fail the list")
	}
}

func TestPeriodFormattingAndOrder(t *testing.T) {
	p := Period{Year: 2025, Month: 3}
	if p.String() != "2025/03" || p.Dashed() != "2025-03" {
		t.Fatalf("unexpected formatting %s %s", p.String(), p.Dashed())
	}
	if !p.After(Period{Year: 2024, Month: 12}) || p.After(Period{Year: 2025, Month: 4}) {
		t.Fatalf("unexpected ordering")
	}
	if !(Period{}).IsZero() || p.IsZero() {
		t.Fatalf("unexpected IsZero")
	}
}
