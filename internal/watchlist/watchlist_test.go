package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"ai-market-dashboard/internal/types"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "watchlist.json")
}

func inst(symbol string) types.Instrument {
	return types.Instrument{Name: symbol + " Inc (" + symbol + ")", Symbol: symbol, QueryName: symbol}
}

func TestAddRemoveOrder(t *testing.T) {
	s := New(testPath(t))

	for _, sym := range []string{"AAPL", "TSLA", "NVDA"} {
		added, err := s.Add(inst(sym))
		if err != nil {
			t.Fatalf("Add(%s): %v", sym, err)
		}
		if !added {
			t.Fatalf("Add(%s) reported duplicate", sym)
		}
	}

	if added, _ := s.Add(inst("TSLA")); added {
		t.Error("duplicate symbol added")
	}

	if removed, _ := s.Remove("TSLA"); !removed {
		t.Fatal("Remove(TSLA) found nothing")
	}
	if removed, _ := s.Remove("TSLA"); removed {
		t.Error("second Remove(TSLA) removed something")
	}

	got := s.All()
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[1].Symbol != "NVDA" {
		t.Errorf("order after removal = %v", got)
	}
	if !s.Contains("AAPL") || s.Contains("TSLA") {
		t.Error("Contains out of sync")
	}
}

func TestRoundTrip(t *testing.T) {
	path := testPath(t)

	s := New(path)
	s.Add(inst("AAPL"))
	s.Add(inst("TSLA"))

	reloaded := New(path)
	got := reloaded.All()
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[1].Symbol != "TSLA" {
		t.Fatalf("reloaded list = %v", got)
	}
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	path := testPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0 on corrupt input", s.Len())
	}

	// the store must still be usable afterward
	if added, err := s.Add(inst("AAPL")); err != nil || !added {
		t.Fatalf("Add after corrupt load: added=%v err=%v", added, err)
	}
}

func TestMissingFileDegradesToEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "dir", "watchlist.json"))
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
	if added, err := s.Add(inst("AAPL")); err != nil || !added {
		t.Fatalf("Add into nested path: added=%v err=%v", added, err)
	}
}

func TestAddBatch(t *testing.T) {
	s := New(testPath(t))
	s.Add(inst("AAPL"))

	added, err := s.AddBatch([]types.Instrument{inst("AAPL"), inst("TSLA"), inst("TSLA"), inst("NVDA")})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if got := s.All(); len(got) != 3 || got[2].Symbol != "NVDA" {
		t.Errorf("list = %v", got)
	}
}

func TestLoadDropsDuplicates(t *testing.T) {
	path := testPath(t)
	body := `[{"symbol": "AAPL", "name": "Apple (AAPL)"}, {"symbol": "AAPL", "name": "Apple again"}, {"symbol": ""}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1 after dedup", s.Len())
	}
}
