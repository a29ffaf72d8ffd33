package gamedir

import (
	"context"
	"errors"
	"testing"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
)

func TestStatic_Lookup(t *testing.T) {
	t.Parallel()
	dir := NewStatic(SeedCatalog())

	g, err := dir.Lookup(context.Background(), "game-001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if g.Title != "Cyber Warriors 2077" || g.TotalBlocks != 12 {
		t.Fatalf("unexpected game: %+v", g)
	}
	if g.Price["PEN"] != 220.00 {
		t.Fatalf("unexpected PEN price: %v", g.Price["PEN"])
	}

	if _, err := dir.Lookup(context.Background(), "game-999"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStatic_LookupReturnsCopy(t *testing.T) {
	t.Parallel()
	dir := NewStatic([]model.Game{{ID: "g", Title: "Game", Available: true}})

	g, err := dir.Lookup(context.Background(), "g")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	g.Available = false

	fresh, _ := dir.Lookup(context.Background(), "g")
	if !fresh.Available {
		t.Fatalf("Lookup leaked internal state")
	}
}
