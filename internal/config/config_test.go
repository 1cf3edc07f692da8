package config

import "testing"

func TestParseRepositoriesSingle(t *testing.T) {
	locs, err := ParseRepositories("photos::/srv/repos/photos::aa:bb")
	if err != nil {
		t.Fatalf("ParseRepositories: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	if locs[0].Name != "photos" || locs[0].Path != "/srv/repos/photos" || locs[0].Verifier != "aa:bb" {
		t.Fatalf("unexpected location: %+v", locs[0])
	}
}

func TestParseRepositoriesMultiple(t *testing.T) {
	locs, err := ParseRepositories("a::/p/a::va|b::/p/b::vb")
	if err != nil {
		t.Fatalf("ParseRepositories: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locs))
	}
	if locs[1].Name != "b" {
		t.Fatalf("unexpected second location: %+v", locs[1])
	}
}

func TestParseRepositoriesRejectsFourSegments(t *testing.T) {
	if _, err := ParseRepositories("a::/p/a::v::extra"); err == nil {
		t.Fatalf("expected error for four-segment specifier")
	}
}

func TestParseRepositoriesRejectsTwoSegments(t *testing.T) {
	if _, err := ParseRepositories("a::/p/a"); err == nil {
		t.Fatalf("expected error for two-segment specifier")
	}
}

func TestParseRepositoriesEmptyIsNoRepositories(t *testing.T) {
	locs, err := ParseRepositories("")
	if err != nil {
		t.Fatalf("ParseRepositories: %v", err)
	}
	if len(locs) != 0 {
		t.Fatalf("expected no locations, got %d", len(locs))
	}
}
