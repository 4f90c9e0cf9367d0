package domain

import "testing"

func TestEffectiveSpeedsFallsBackToAllowedSet(t *testing.T) {
	cases := [][]string{nil, {}, {"daily"}, {"", "correspondence"}}
	for _, requested := range cases {
		got := EffectiveSpeeds(requested)
		if len(got) != len(AllowedSpeeds) {
			t.Fatalf("EffectiveSpeeds(%v) = %v, want all allowed", requested, got)
		}
	}
}

func TestEffectiveSpeedsIntersects(t *testing.T) {
	got := EffectiveSpeeds([]string{"Blitz", "daily"})
	if len(got) != 1 || !got.Contains(SpeedBlitz) {
		t.Fatalf("unexpected set %v", got)
	}
}

func TestTimeframeMonths(t *testing.T) {
	cases := map[Timeframe]int{
		Timeframe3Months: 3,
		Timeframe1Year:   12,
		Timeframe5Years:  60,
		Timeframe10Years: 120,
		"forever":        3,
	}
	for tf, want := range cases {
		if got := tf.Months(); got != want {
			t.Fatalf("%q.Months() = %d, want %d", tf, got, want)
		}
	}
	if Timeframe("forever").Valid() {
		t.Fatalf("unknown timeframe reported valid")
	}
}
