// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// PurchaseStatus is the lifecycle state of a purchase.
type PurchaseStatus string

const (
	PurchasePending    PurchaseStatus = "pending"
	PurchaseProcessing PurchaseStatus = "processing"
	PurchaseCompleted  PurchaseStatus = "completed"
	PurchaseFailed     PurchaseStatus = "failed"
	PurchaseRefunded   PurchaseStatus = "refunded"
)

// Terminal reports whether the status admits no further transitions.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseCompleted || s == PurchaseFailed || s == PurchaseRefunded
}

// Purchase records a payment attempt for a game. Created with status=pending;
// exactly one settlement drives it to completed or failed, after which only
// Status and CompletedAt ever change.
type Purchase struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"userId"`
	GameID        string         `json:"gameId"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	PaymentMethod string         `json:"paymentMethod"`
	Status        PurchaseStatus `json:"status"`
	Country       string         `json:"country"`
	TransactionID string         `json:"transactionId"`
	PurchaseDate  time.Time      `json:"purchaseDate"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// Entitlement is a standing grant allowing a user to download a game,
// created as a side effect of a completed purchase. DownloadCount only
// grows; at most one active entitlement exists per (user, game).
type Entitlement struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"userId"`
	GameID        string    `json:"gameId"`
	PurchaseID    uuid.UUID `json:"purchaseId"`
	GrantedAt     time.Time `json:"grantedAt"`
	Active        bool      `json:"active"`
	DownloadCount int       `json:"downloadCount"`
	MaxDownloads  int       `json:"maxDownloads"`
}

// Exhausted reports whether the lifetime download budget is spent.
func (e Entitlement) Exhausted() bool {
	return e.DownloadCount >= e.MaxDownloads
}

// CompressionType of a content block.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
)

// GameBlock is a fixed chunk of a game's content, individually
// checksum-verifiable and independently retryable. Immutable once generated.
type GameBlock struct {
	ID          string          `json:"id"`
	GameID      string          `json:"gameId"`
	BlockNumber int             `json:"blockNumber"`
	Size        int64           `json:"size"`
	Checksum    string          `json:"checksum"`
	DownloadURL string          `json:"downloadUrl"`
	IsRequired  bool            `json:"isRequired"`
	Compression CompressionType `json:"compressionType"`
}

// DownloadToken authorizes a download session and lists candidate CDN
// endpoints. Not renewable; a new token must be requested after expiry.
// MaxDownloads here is a per-session budget, independent of the
// entitlement's lifetime counter.
type DownloadToken struct {
	Token         string    `json:"token"`
	GameID        string    `json:"gameId"`
	UserID        string    `json:"userId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	DownloadURLs  []string  `json:"downloadUrls"`
	Region        string    `json:"region"`
	MaxDownloads  int       `json:"maxDownloads"`
	UsedDownloads int       `json:"usedDownloads"`
}

// DownloadState is the per-(user, game) download machine state.
type DownloadState string

const (
	DownloadIdle      DownloadState = "idle"
	Downloading       DownloadState = "downloading"
	DownloadPaused    DownloadState = "paused"
	DownloadCompleted DownloadState = "completed"
	DownloadFailed    DownloadState = "failed"
	DownloadVerifying DownloadState = "verifying"
)

// DownloadStatus tracks one user's progress through one game's blocks.
type DownloadStatus struct {
	GameID           string        `json:"gameId"`
	GameTitle        string        `json:"gameTitle"`
	UserID           string        `json:"userId"`
	TotalBlocks      int           `json:"totalBlocks"`
	DownloadedBlocks int           `json:"downloadedBlocks"`
	TotalSize        int64         `json:"totalSize"`
	DownloadedSize   int64         `json:"downloadedSize"`
	Progress         float64       `json:"progress"` // 0-100
	State            DownloadState `json:"status"`
	DownloadSpeed    int64         `json:"downloadSpeed"` // bytes per second
	ETASeconds       int64         `json:"estimatedTimeRemaining"`
	LastActivity     time.Time     `json:"lastActivity"`
	FailedBlocks     []string      `json:"failedBlocks"`
	ActiveToken      string        `json:"activeToken,omitempty"`
}

// CDNServer is a read-mostly edge server record. Lower priority is better.
type CDNServer struct {
	ID        string `json:"id"`
	Region    string `json:"region"`
	Country   string `json:"country"`
	BaseURL   string `json:"baseUrl"`
	Priority  int    `json:"priority"`
	Active    bool   `json:"active"`
	LatencyMS int    `json:"latency"`
	Bandwidth int    `json:"bandwidth"` // mbps
	Load      int    `json:"load"`      // 0-100%
}

// VerificationResult reports the outcome of a block checksum check.
// A mismatch is not an error: RetryRequired tells the client to refetch
// from DownloadURL.
type VerificationResult struct {
	BlockID          string `json:"blockId"`
	IsValid          bool   `json:"isValid"`
	ActualChecksum   string `json:"actualChecksum"`
	ExpectedChecksum string `json:"expectedChecksum"`
	RetryRequired    bool   `json:"retryRequired"`
	DownloadURL      string `json:"downloadUrl,omitempty"`
}

// Game is the read-only directory view of a catalog entry. The catalog
// itself (CRUD, search, metadata) lives outside this core.
type Game struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Available   bool               `json:"available"`
	Price       map[string]float64 `json:"price"` // by currency code
	SizeGB      float64            `json:"sizeGB"`
	TotalBlocks int                `json:"totalBlocks"`
}
