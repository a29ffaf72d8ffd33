package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/gamedir"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/emedina/gamedepot/internal/repository"
)

// tokenClaims is the signed payload of a download token.
type tokenClaims struct {
	jwt.RegisteredClaims
	GameID string `json:"gameId"`
	Region string `json:"region"`
}

// Issuer mints scoped, time-boxed download credentials. Issuing a token
// consumes one download from the entitlement's lifetime budget and resets
// the download status row for the (user, game) pair.
//
// The token's MaxDownloads is a session budget and is deliberately separate
// from the entitlement counter: exhausting the entitlement blocks new
// tokens, not verification of blocks under an already-issued one.
type Issuer struct {
	ledger   Ledger
	catalog  *Catalog
	cdn      *CDN
	dir      gamedir.Directory
	statuses repository.StatusRepository

	signKey      []byte
	ttl          time.Duration
	maxDownloads int
	now          func() time.Time
}

// NewIssuer constructs a token issuer. ttl defaults to 4 hours and
// maxDownloads to 5 when unset.
func NewIssuer(ledger Ledger, catalog *Catalog, cdn *CDN, dir gamedir.Directory, statuses repository.StatusRepository, signKey []byte, ttl time.Duration, maxDownloads int) *Issuer {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	if maxDownloads <= 0 {
		maxDownloads = 5
	}
	return &Issuer{
		ledger:       ledger,
		catalog:      catalog,
		cdn:          cdn,
		dir:          dir,
		statuses:     statuses,
		signKey:      signKey,
		ttl:          ttl,
		maxDownloads: maxDownloads,
		now:          time.Now,
	}
}

// Issue authorizes a download session for (user, game). An explicit
// preferred region wins over the one derived from the country.
func (i *Issuer) Issue(ctx context.Context, gameID, userID, preferredRegion, country string) (*model.DownloadToken, error) {
	ok, err := i.ledger.CanDownload(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %s has no remaining downloads for game %s: %w", userID, gameID, errs.ErrForbidden)
	}

	region := preferredRegion
	if region == "" {
		region = i.cdn.ResolveRegion(country)
	}

	blocks, err := i.catalog.BlocksFor(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var totalSize int64
	for _, b := range blocks {
		totalSize += b.Size
	}

	game, err := i.dir.Lookup(ctx, gameID)
	if err != nil {
		return nil, err
	}

	now := i.now()
	expires := now.Add(i.ttl)
	signed, err := i.sign(userID, gameID, region, now, expires)
	if err != nil {
		return nil, err
	}

	token := &model.DownloadToken{
		Token:         signed,
		GameID:        gameID,
		UserID:        userID,
		ExpiresAt:     expires,
		DownloadURLs:  i.cdn.URLsForRegion(region),
		Region:        region,
		MaxDownloads:  i.maxDownloads,
		UsedDownloads: 0,
	}

	if err := i.ledger.RecordDownloadUsed(ctx, userID, gameID); err != nil {
		return nil, err
	}

	st := &model.DownloadStatus{
		GameID:       gameID,
		GameTitle:    game.Title,
		UserID:       userID,
		TotalBlocks:  len(blocks),
		TotalSize:    totalSize,
		State:        model.DownloadIdle,
		LastActivity: now,
		FailedBlocks: []string{},
		ActiveToken:  signed,
	}
	if err := i.statuses.Put(ctx, st); err != nil {
		return nil, err
	}
	return token, nil
}

// sign produces the compact HS256 JWS carrying the session scope.
func (i *Issuer) sign(userID, gameID, region string, now, expires time.Time) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		GameID: gameID,
		Region: region,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.signKey)
}
