package terms

import (
	"testing"
	"time"
)

func TestNetDaysNamedTerms(t *testing.T) {
	cases := map[string]int{
		"Due on Receipt": 0,
		"due on receipt": 0,
		"Net 7":          7,
		"net 14":         14,
		"NET 15":         15,
		"Net 30":         30,
		"Net 45":         45,
		"Net 60":         60,
	}
	for term, want := range cases {
		if got := NetDays(term); got != want {
			t.Fatalf("NetDays(%q) = %d, want %d", term, got, want)
		}
	}
}

func TestNetDaysPattern(t *testing.T) {
	if got := NetDays("net 21"); got != 21 {
		t.Fatalf("expected 21, got %d", got)
	}
	if got := NetDays("  Net   90 "); got != 90 {
		t.Fatalf("expected 90 with extra spaces, got %d", got)
	}
}

func TestNetDaysFallback(t *testing.T) {
	for _, term := range []string{"", "whenever", "net", "net -5", "30 days"} {
		if got := NetDays(term); got != DefaultNetDays {
			t.Fatalf("NetDays(%q) = %d, want default %d", term, got, DefaultNetDays)
		}
	}
}

func TestDueDateWholeDayUTC(t *testing.T) {
	issue := time.Date(2024, 3, 10, 17, 45, 12, 0, time.FixedZone("PST", -8*3600))
	due := DueDate(issue, "Net 30", nil)
	want := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	if !due.Equal(want) {
		t.Fatalf("expected %v, got %v", want, due)
	}
}

func TestDueDateExplicitWins(t *testing.T) {
	issue := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	explicit := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	due := DueDate(issue, "Net 60", &explicit)
	if !due.Equal(explicit) {
		t.Fatalf("expected explicit due date %v, got %v", explicit, due)
	}
}
