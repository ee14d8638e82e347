package gemini

import (
	"reflect"
	"testing"

	"ai-market-dashboard/internal/types"
)

func TestDedupSourcesStableOrder(t *testing.T) {
	raw := []types.Source{
		{URI: "https://a.com", Title: "A"},
		{URI: "https://b.com", Title: "B"},
		{URI: "https://a.com", Title: "A duplicate"},
	}

	got := DedupSources(raw)
	if len(got) != 2 {
		t.Fatalf("Expected 2 unique sources, got %d", len(got))
	}
	if got[0].URI != "https://a.com" || got[0].Title != "A" {
		t.Errorf("Expected first occurrence kept, got %+v", got[0])
	}
	if got[1].URI != "https://b.com" {
		t.Errorf("Expected stable order, got %+v", got[1])
	}
}

func TestDedupSourcesDropsIncomplete(t *testing.T) {
	raw := []types.Source{
		{URI: "", Title: "no uri"},
		{URI: "https://a.com", Title: ""},
		{URI: "https://b.com", Title: "ok"},
	}

	got := DedupSources(raw)
	if len(got) != 1 {
		t.Fatalf("Expected 1 source after filtering, got %d", len(got))
	}
	if got[0].URI != "https://b.com" {
		t.Errorf("Expected complete entry kept, got %+v", got[0])
	}
}

func TestDedupSourcesCap(t *testing.T) {
	var raw []types.Source
	for _, uri := range []string{"https://1", "https://2", "https://3", "https://4", "https://5"} {
		raw = append(raw, types.Source{URI: uri, Title: "t"})
	}

	got := DedupSources(raw)
	if len(got) != 3 {
		t.Errorf("Expected cap of 3 sources, got %d", len(got))
	}
}

func TestDedupSourcesIdempotent(t *testing.T) {
	raw := []types.Source{
		{URI: "https://a.com", Title: "A"},
		{URI: "https://a.com", Title: "A2"},
		{URI: "https://b.com", Title: "B"},
		{URI: "https://c.com", Title: "C"},
		{URI: "https://d.com", Title: "D"},
	}

	once := DedupSources(raw)
	twice := DedupSources(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Expected dedupe to be idempotent: %v != %v", once, twice)
	}

	seen := map[string]bool{}
	for _, s := range once {
		if seen[s.URI] {
			t.Errorf("Duplicate URI %q in result", s.URI)
		}
		seen[s.URI] = true
	}
}
