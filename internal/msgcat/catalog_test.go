package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenderDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("game.end.forfeit", map[string]string{"Name": "alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "alice forfeited the game" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := c.Text("game.end.draw", nil, "x"); got != "Game ended in a draw" {
		t.Fatalf("unexpected draw text %q", got)
	}
}

func TestTextFallsBack(t *testing.T) {
	c := MustDefault()
	if got := c.Text("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	// missing template field is an error too
	if got := c.Text("game.end.win", map[string]string{}, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback on missing field, got %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("game.end.draw", nil, "nil"); got != "nil" {
		t.Fatalf("nil catalog should fall back")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  end:\n    draw: \"Nobody won\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("game.end.draw", nil, ""); got != "Nobody won" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Text("game.end.disconnect", nil, ""); got != "Opponent disconnected" {
		t.Fatalf("default lost: %q", got)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("matchmaking:\n  in_game: \"busy\"\n")
	_ = os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644)
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  size: 5\n"), 0o644)
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for non-string leaf")
	}
}
