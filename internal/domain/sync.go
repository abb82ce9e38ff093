package domain

import (
	"fmt"
	"time"
)

// EntityKind names a synchronized entity family
type EntityKind string

const (
	EntityOrders   EntityKind = "orders"
	EntityProducts EntityKind = "products"
)

func (k EntityKind) IsValid() bool {
	return k == EntityOrders || k == EntityProducts
}

func (k EntityKind) String() string {
	return string(k)
}

// ParseEntityKind validates a kind received from a caller
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown entity kind %q", ErrConfigInvalid, s)
	}
	return k, nil
}

// SyncStatus is the pipeline state machine position
type SyncStatus string

const (
	SyncIdle         SyncStatus = "IDLE"
	SyncFetchingPage SyncStatus = "FETCHING_PAGE"
	SyncTransforming SyncStatus = "TRANSFORMING"
	SyncMerging      SyncStatus = "MERGING"
	SyncDone         SyncStatus = "DONE"
	SyncError        SyncStatus = "ERROR"
	SyncCancelled    SyncStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition follows
func (s SyncStatus) IsTerminal() bool {
	return s == SyncDone || s == SyncError || s == SyncCancelled
}

// SyncCursor is the transient position of a run. It is returned to the caller
// after a failed run so that a retry can continue after the last committed page.
type SyncCursor struct {
	HasNextPage  bool       `json:"hasNextPage"`
	EndCursor    string     `json:"endCursor,omitempty"`
	PageIndex    int        `json:"pageIndex"`
	UpdatedAtMin *time.Time `json:"updatedAtMin,omitempty"`
}

// PageRequest is the outbound filter for one page fetch
type PageRequest struct {
	After        string
	First        int
	UpdatedAtMin *time.Time
}

// Page is one page of platform records
type Page struct {
	Records     []ExternalRecord
	HasNextPage bool
	EndCursor   string
}

// SyncResult is the outcome surfaced to callers of a run
type SyncResult struct {
	ChannelID        string      `json:"channelId"`
	Kind             EntityKind  `json:"entityKind"`
	Status           SyncStatus  `json:"status"`
	Success          bool        `json:"success"`
	RecordsProcessed int         `json:"recordsProcessed"`
	PagesProcessed   int         `json:"pagesProcessed"`
	Warnings         int         `json:"warnings"`
	Error            string      `json:"error,omitempty"`
	Origin           ErrorOrigin `json:"origin,omitempty"`
	Remedy           string      `json:"remedy,omitempty"`
	Cursor           *SyncCursor `json:"cursor,omitempty"`
	StartedAt        time.Time   `json:"startedAt"`
	FinishedAt       time.Time   `json:"finishedAt"`

	// Err is the failure behind Error, kept for classification by callers
	Err error `json:"-"`
}

// ProgressStage is an observational stage label for progress feeds
type ProgressStage string

const (
	StageStarting     ProgressStage = "starting"
	StageFetchingPage ProgressStage = "fetching-page"
	StageMergingPage  ProgressStage = "merging-page"
	StageDone         ProgressStage = "done"
	StageFailed       ProgressStage = "failed"
	StageCancelled    ProgressStage = "cancelled"
)

// ProgressEvent is one stage transition of a run
type ProgressEvent struct {
	ChannelID        string        `json:"channelId"`
	Kind             EntityKind    `json:"entityKind"`
	Stage            ProgressStage `json:"stage"`
	Page             int           `json:"page,omitempty"`
	RecordsProcessed int           `json:"recordsProcessed"`
	Error            string        `json:"error,omitempty"`
	At               time.Time     `json:"at"`
}

// ConnectionTest is the outcome of a platform credential check
type ConnectionTest struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}
