// Package gamedir is the read-only boundary to the game catalog.
package gamedir

import (
	"context"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
)

// Directory resolves games by id. The real catalog service lives behind
// this interface; this core only needs availability, pricing and sizing.
type Directory interface {
	// Lookup returns the game or errs.ErrNotFound.
	Lookup(ctx context.Context, gameID string) (*model.Game, error)
}

// Static is an in-process Directory backed by a fixed map.
type Static struct {
	games map[string]model.Game
}

// NewStatic builds a directory from the given games.
func NewStatic(games []model.Game) *Static {
	m := make(map[string]model.Game, len(games))
	for _, g := range games {
		m[g.ID] = g
	}
	return &Static{games: m}
}

// Lookup returns the game or errs.ErrNotFound.
func (s *Static) Lookup(_ context.Context, gameID string) (*model.Game, error) {
	g, ok := s.games[gameID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &g, nil
}

// SeedCatalog returns the reference catalog used by the demo deployment
// and the test suite.
func SeedCatalog() []model.Game {
	return []model.Game{
		{
			ID:        "game-001",
			Title:     "Cyber Warriors 2077",
			Available: true,
			Price:     map[string]float64{"USD": 59.99, "PEN": 220.00, "MXN": 1200.00, "ARS": 15000.00},
			SizeGB:    85.4, TotalBlocks: 12,
		},
		{
			ID:        "game-002",
			Title:     "Medieval Legends Online",
			Available: true,
			Price:     map[string]float64{"USD": 39.99, "PEN": 150.00, "MXN": 800.00, "ARS": 10000.00},
			SizeGB:    47.2, TotalBlocks: 8,
		},
		{
			ID:        "game-003",
			Title:     "Racing Thunder Championship",
			Available: true,
			Price:     map[string]float64{"USD": 49.99, "PEN": 185.00, "MXN": 1000.00, "ARS": 12500.00},
			SizeGB:    72.8, TotalBlocks: 10,
		},
		{
			ID:        "game-004",
			Title:     "Indie Puzzle Master",
			Available: true,
			Price:     map[string]float64{"USD": 19.99, "PEN": 75.00, "MXN": 400.00, "ARS": 5000.00},
			SizeGB:    1.8, TotalBlocks: 2,
		},
		{
			ID:        "game-005",
			Title:     "Space Colony Builder",
			Available: true,
			Price:     map[string]float64{"USD": 34.99, "PEN": 130.00, "MXN": 700.00, "ARS": 8750.00},
			SizeGB:    24.6, TotalBlocks: 6,
		},
	}
}
