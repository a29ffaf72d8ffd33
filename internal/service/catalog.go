package service

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/gamedir"
	"github.com/emedina/gamedepot/internal/model"
)

const (
	minBlockSize = 50 * 1024 * 1024
	maxBlockSize = 150 * 1024 * 1024
)

// Catalog derives and memoizes the fixed block decomposition of each game.
// Generation is keyed by gameID only, so the sequence, sizes and checksums
// are stable across calls and across process restarts. A production system
// would hash real content instead.
type Catalog struct {
	dir     gamedir.Directory
	baseURL string

	mu     sync.Mutex
	blocks map[string][]model.GameBlock
	byID   map[string]model.GameBlock
}

// NewCatalog constructs a block catalog serving block URLs under baseURL.
func NewCatalog(dir gamedir.Directory, baseURL string) *Catalog {
	return &Catalog{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		blocks:  make(map[string][]model.GameBlock),
		byID:    make(map[string]model.GameBlock),
	}
}

// BlocksFor returns the ordered block sequence for the game, generating it
// on first use. Unknown games return errs.ErrNotFound.
func (c *Catalog) BlocksFor(ctx context.Context, gameID string) ([]model.GameBlock, error) {
	c.mu.Lock()
	if cached, ok := c.blocks[gameID]; ok {
		c.mu.Unlock()
		return append([]model.GameBlock(nil), cached...), nil
	}
	c.mu.Unlock()

	game, err := c.dir.Lookup(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("lookup game %s: %w", gameID, err)
	}

	generated := c.generate(game)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.blocks[gameID]; ok {
		// Lost the generation race; the first result stays canonical.
		return append([]model.GameBlock(nil), cached...), nil
	}
	c.blocks[gameID] = generated
	for _, b := range generated {
		c.byID[b.ID] = b
	}
	return append([]model.GameBlock(nil), generated...), nil
}

// FindBlock resolves a single block by id, generating the owning game's
// sequence when it has not been requested yet.
func (c *Catalog) FindBlock(ctx context.Context, blockID string) (*model.GameBlock, error) {
	c.mu.Lock()
	b, ok := c.byID[blockID]
	c.mu.Unlock()
	if ok {
		return &b, nil
	}

	// Block ids are "<gameId>-block-<n>"; generate the game lazily and retry.
	gameID, _, found := strings.Cut(blockID, "-block-")
	if !found {
		return nil, errs.ErrNotFound
	}
	if _, err := c.BlocksFor(ctx, gameID); err != nil {
		return nil, errs.ErrNotFound
	}

	c.mu.Lock()
	b, ok = c.byID[blockID]
	c.mu.Unlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &b, nil
}

// TotalSize returns the sum of block sizes for the game.
func (c *Catalog) TotalSize(ctx context.Context, gameID string) (int64, error) {
	blocks, err := c.BlocksFor(ctx, gameID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range blocks {
		total += b.Size
	}
	return total, nil
}

// generate builds the block sequence from a PRNG seeded by the game id.
// The directory's block count wins when it is set; otherwise 10-60 blocks.
// The required prefix covers at least 80% of the sequence by count.
func (c *Catalog) generate(game *model.Game) []model.GameBlock {
	seed := blake2b.Sum256([]byte(game.ID))
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:8]))))

	total := game.TotalBlocks
	if total <= 0 {
		total = 10 + rng.Intn(51)
	}

	blocks := make([]model.GameBlock, 0, total)
	for i := 0; i < total; i++ {
		compression := model.CompressionNone
		if rng.Intn(2) == 0 {
			compression = model.CompressionGzip
		}
		blocks = append(blocks, model.GameBlock{
			ID:          fmt.Sprintf("%s-block-%d", game.ID, i),
			GameID:      game.ID,
			BlockNumber: i,
			Size:        minBlockSize + rng.Int63n(maxBlockSize-minBlockSize+1),
			Checksum:    blockChecksum(game.ID, i),
			DownloadURL: fmt.Sprintf("%s/blocks/%s/block-%d.dat", c.baseURL, game.ID, i),
			IsRequired:  float64(i) < float64(total)*0.8,
			Compression: compression,
		})
	}
	return blocks
}

// blockChecksum derives the canonical checksum for (gameID, blockNumber).
func blockChecksum(gameID string, blockNumber int) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s/%d", gameID, blockNumber)))
	return "sha256:" + hex.EncodeToString(sum[:])
}
