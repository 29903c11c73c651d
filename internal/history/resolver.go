// Package history resolves conversation pages across the two physical message
// stores. Both stores are queried concurrently at the full page width, merged
// by message id with the current store winning on conflict, and the combined
// set is sorted, truncated, and returned oldest-first.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/metrics"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/store"
)

// Read statuses synthesized per viewer. Per-message receipt state is not
// persisted; a viewer's own messages show as sent, everything else as seen.
const (
	StatusSent = "sent"
	StatusSeen = "seen"
)

// Querier is the read interface a message store must satisfy. Results come
// back newest-first, at most limit rows, strictly older than before when
// before is non-zero.
type Querier interface {
	QueryPair(ctx context.Context, a, b string, before time.Time, limit int64) ([]store.Message, error)
	QueryGroup(ctx context.Context, groupID string, before time.Time, limit int64) ([]store.Message, error)
}

// Page is one resolved slice of a conversation, ordered oldest-first.
//
// HasMore is a heuristic: it is true whenever the page came back full, so a
// conversation whose total length is an exact multiple of the page size yields
// one trailing request that returns an empty page with HasMore=false. Callers
// already tolerate that.
type Page struct {
	Messages []store.Message `json:"messages"`
	HasMore  bool            `json:"hasMore"`
}

// Resolver merges reads from the legacy and current message stores.
type Resolver struct {
	legacy  Querier
	current Querier
}

// NewResolver creates a Resolver over the two stores.
func NewResolver(legacy, current Querier) *Resolver {
	return &Resolver{legacy: legacy, current: current}
}

// DirectPage resolves one page of the direct conversation between users a and
// b, as seen by viewer. A zero before means "from the latest".
func (r *Resolver) DirectPage(ctx context.Context, a, b, viewer string, pageSize int, before time.Time) (Page, error) {
	return r.page(ctx, viewer, pageSize,
		func(ctx context.Context, q Querier) ([]store.Message, error) {
			return q.QueryPair(ctx, a, b, before, int64(pageSize))
		})
}

// GroupPage resolves one page of a group conversation as seen by viewer.
func (r *Resolver) GroupPage(ctx context.Context, groupID, viewer string, pageSize int, before time.Time) (Page, error) {
	return r.page(ctx, viewer, pageSize,
		func(ctx context.Context, q Querier) ([]store.Message, error) {
			return q.QueryGroup(ctx, groupID, before, int64(pageSize))
		})
}

func (r *Resolver) page(ctx context.Context, viewer string, pageSize int,
	query func(ctx context.Context, q Querier) ([]store.Message, error)) (Page, error) {

	timer := time.Now()
	defer func() {
		metrics.HistoryPageDuration.Observe(time.Since(timer).Seconds())
	}()

	// Both stores are queried at the full page width. Either alone may hold the
	// entire page, so neither query can be narrowed by the other's results.
	var (
		wg                   sync.WaitGroup
		legacyMsgs, currMsgs []store.Message
		legacyErr, currErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		legacyMsgs, legacyErr = query(ctx, r.legacy)
	}()
	go func() {
		defer wg.Done()
		currMsgs, currErr = query(ctx, r.current)
	}()
	wg.Wait()

	if legacyErr != nil {
		return Page{}, fmt.Errorf("history: legacy store: %w", legacyErr)
	}
	if currErr != nil {
		return Page{}, fmt.Errorf("history: current store: %w", currErr)
	}

	merged := merge(legacyMsgs, currMsgs)

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID > merged[j].ID
	})

	if len(merged) > pageSize {
		merged = merged[:pageSize]
	}
	hasMore := len(merged) == pageSize

	// Newest-first internally, oldest-first on the wire.
	for i, j := 0, len(merged)-1; i < j; i, j = i+1, j-1 {
		merged[i], merged[j] = merged[j], merged[i]
	}

	for i := range merged {
		if merged[i].Deleted {
			redact(&merged[i])
		}
		if merged[i].FromID == viewer {
			merged[i].Status = StatusSent
		} else {
			merged[i].Status = StatusSeen
		}
	}

	return Page{Messages: merged, HasMore: hasMore}, nil
}

// merge joins the two result sets by message id. The current store wins when
// both hold a row for the same id: it carries later edits and delete flags.
func merge(legacy, current []store.Message) []store.Message {
	byID := make(map[string]store.Message, len(legacy)+len(current))
	for _, m := range legacy {
		byID[m.ID] = m
	}
	for _, m := range current {
		if _, dup := byID[m.ID]; dup {
			metrics.HistoryDuplicates.Inc()
		}
		byID[m.ID] = m
	}

	merged := make([]store.Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	return merged
}

// redact clears the payload of a soft-deleted message. The row itself stays in
// the page so clients can render a tombstone in place: id, participants,
// timestamp, and the deleted flag survive.
func redact(m *store.Message) {
	m.Content = ""
	m.FileURL = ""
	m.FileName = ""
	m.FileMime = ""
	m.IsImage = false
	m.SharedID = ""
	m.SharedType = ""
	m.SharedURL = ""
	m.SharedCaption = ""
	m.SharedAuthorID = ""
	m.SharedAuthorName = ""
}
