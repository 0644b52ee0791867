package idhash

import (
	"testing"
	"time"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		signal  time.Time
		buy     time.Time
		sell    time.Time
		rank    int
		wantLen int // hash length should be 64
	}{
		{
			name:    "top pick",
			symbol:  "AAPL",
			signal:  d("2024-01-02"),
			buy:     d("2024-01-03"),
			sell:    d("2024-01-10"),
			rank:    0,
			wantLen: 64,
		},
		{
			name:    "second pick",
			symbol:  "MSFT",
			signal:  d("2024-01-02"),
			buy:     d("2024-01-03"),
			sell:    d("2024-01-10"),
			rank:    1,
			wantLen: 64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.symbol, tt.signal, tt.buy, tt.sell, tt.rank)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.symbol, tt.signal, tt.buy, tt.sell, tt.rank)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("AAPL", d("2024-01-02"), d("2024-01-03"), d("2024-01-10"), 0)

	variants := map[string]string{
		"symbol": ComputeTradeID("MSFT", d("2024-01-02"), d("2024-01-03"), d("2024-01-10"), 0),
		"signal": ComputeTradeID("AAPL", d("2024-01-01"), d("2024-01-03"), d("2024-01-10"), 0),
		"buy":    ComputeTradeID("AAPL", d("2024-01-02"), d("2024-01-04"), d("2024-01-10"), 0),
		"sell":   ComputeTradeID("AAPL", d("2024-01-02"), d("2024-01-03"), d("2024-01-11"), 0),
		"rank":   ComputeTradeID("AAPL", d("2024-01-02"), d("2024-01-03"), d("2024-01-10"), 1),
	}

	for field, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the trade id", field)
		}
	}
}

func TestComputeTrialID(t *testing.T) {
	a := ComputeTrialID("search-1", 1)
	b := ComputeTrialID("search-1", 1)
	c := ComputeTrialID("search-1", 2)
	e := ComputeTrialID("search-2", 1)

	if len(a) != 64 {
		t.Errorf("ComputeTrialID() length = %d, want 64", len(a))
	}
	if a != b {
		t.Errorf("ComputeTrialID() not deterministic: %s != %s", a, b)
	}
	if a == c || a == e {
		t.Error("distinct trials must hash differently")
	}
}
