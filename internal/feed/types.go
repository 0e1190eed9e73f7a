// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"fmt"
	"strings"
	"time"
)

// SortMode selects how a scope is ordered.
type SortMode string

const (
	// SortForYou is the personalized ranking.
	SortForYou SortMode = "for_you"
	// SortNewest orders by upload time, newest first.
	SortNewest SortMode = "newest"
	// SortOldest orders by upload time, oldest first.
	SortOldest SortMode = "oldest"
	// SortPopular orders by view count, highest first.
	SortPopular SortMode = "popular"
)

// Valid reports whether m is a known sort mode.
func (m SortMode) Valid() bool {
	switch m {
	case SortForYou, SortNewest, SortOldest, SortPopular:
		return true
	}
	return false
}

// ParseSortMode parses a sort mode. The empty string selects SortForYou.
func ParseSortMode(s string) (SortMode, error) {
	if s == "" {
		return SortForYou, nil
	}
	m := SortMode(strings.ToLower(s))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidScope, s)
	}
	return m, nil
}

const maxChannelIDLength = 256

// ScopeKey partitions sessions by channel filter and sort mode. An empty
// ChannelID means all channels.
type ScopeKey struct {
	ChannelID string   `json:"channel_id"`
	Sort      SortMode `json:"sort"`
}

// Normalize fills in the default sort mode.
func (k ScopeKey) Normalize() ScopeKey {
	if k.Sort == "" {
		k.Sort = SortForYou
	}
	return k
}

// Validate checks the scope can be used as a cache key.
func (k ScopeKey) Validate() error {
	k = k.Normalize()
	if !k.Sort.Valid() {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidScope, k.Sort)
	}
	if len(k.ChannelID) > maxChannelIDLength {
		return fmt.Errorf("%w: channel id longer than %d bytes", ErrInvalidScope, maxChannelIDLength)
	}
	if strings.ContainsAny(k.ChannelID, "|#*") {
		return fmt.Errorf("%w: channel id contains a reserved character", ErrInvalidScope)
	}
	return nil
}

// Ranked reports whether the scope goes through the ranking engine.
func (k ScopeKey) Ranked() bool {
	return k.Normalize().Sort == SortForYou
}

// String returns the canonical form "channel:<id|*>|sort:<mode>".
func (k ScopeKey) String() string {
	k = k.Normalize()
	ch := k.ChannelID
	if ch == "" {
		ch = "*"
	}
	return "channel:" + ch + "|sort:" + string(k.Sort)
}

// ContentItem is one piece of content in the corpus. Items are treated as
// immutable once fetched.
type ContentItem struct {
	ID              string    `json:"id"`
	ChannelID       string    `json:"channel_id"`
	UploadedAt      time.Time `json:"uploaded_at"`
	ViewCount       int64     `json:"view_count"`
	DurationSeconds int       `json:"duration_seconds"`

	// Display fields, carried through untouched.
	Title        string `json:"title,omitempty"`
	ChannelName  string `json:"channel_name,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// WatchHistoryEntry records one playback start.
type WatchHistoryEntry struct {
	ItemID    string    `json:"item_id"`
	WatchedAt time.Time `json:"watched_at"`
}

// ScoreComponents breaks down an item's score. Every component is in [0,1]
// except Composite, the weighted sum.
type ScoreComponents struct {
	Recency          float64 `json:"recency"`
	Engagement       float64 `json:"engagement"`
	DiversityPenalty float64 `json:"diversity_penalty"`
	UnseenBonus      float64 `json:"unseen_bonus"`
	RandomJitter     float64 `json:"random_jitter"`
	Composite        float64 `json:"composite"`
}

// ScoredItem pairs an item with its score.
type ScoredItem struct {
	Item  ContentItem
	Score ScoreComponents
}

// FeedSession is the persisted ranking state for one scope and epoch.
// OrderedIDs[:ServedCount] never changes once written.
type FeedSession struct {
	Scope       ScopeKey  `json:"scope"`
	OrderedIDs  []string  `json:"ordered_ids"`
	ServedCount int       `json:"served_count"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Epoch       int64     `json:"epoch"`
	Seed        uint64    `json:"seed"`
	Exhausted   bool      `json:"exhausted"`
}

// Expired reports whether the session is past its TTL at now.
func (s *FeedSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ServedPrefix returns the frozen prefix.
func (s *FeedSession) ServedPrefix() []string {
	return s.OrderedIDs[:s.ServedCount]
}

// Clone returns a deep copy.
func (s *FeedSession) Clone() *FeedSession {
	c := *s
	c.OrderedIDs = append([]string(nil), s.OrderedIDs...)
	return &c
}

// TotalUnknown is reported in FetchResult.TotalKnown when the repository
// cannot tell how many items the scope holds.
const TotalUnknown = -1

// FetchResult is one page from the content repository.
type FetchResult struct {
	Items      []ContentItem
	TotalKnown int
}

// Page is what the service hands to the pagination layer.
type Page struct {
	Items       []ContentItem `json:"items"`
	PageIndex   int           `json:"page_index"`
	PageSize    int           `json:"page_size"`
	TotalRanked int           `json:"total_ranked"`
	HasMore     bool          `json:"has_more"`
	NoContent   bool          `json:"no_content"`
	Complete    bool          `json:"complete"`
	Epoch       int64         `json:"epoch"`
}

// State is the per-scope lifecycle of the progressive controller.
type State int

const (
	StateIdle State = iota
	StateFetchingInitial
	StateReady
	StateBackgroundFetching
	StateBackgroundDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingInitial:
		return "fetching_initial"
	case StateReady:
		return "ready"
	case StateBackgroundFetching:
		return "background_fetching"
	case StateBackgroundDone:
		return "background_done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateBackgroundDone; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown feed state %q", text)
}
