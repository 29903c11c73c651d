package history

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/store"
)

// fakeStore implements Querier over an in-memory slice, applying the same
// newest-first sort, before cursor, and limit the real stores do.
type fakeStore struct {
	msgs []store.Message
	err  error
}

func (f *fakeStore) QueryPair(ctx context.Context, a, b string, before time.Time, limit int64) ([]store.Message, error) {
	return f.query(before, limit)
}

func (f *fakeStore) QueryGroup(ctx context.Context, groupID string, before time.Time, limit int64) ([]store.Message, error) {
	return f.query(before, limit)
}

func (f *fakeStore) query(before time.Time, limit int64) ([]store.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Message
	for _, m := range f.msgs {
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func at(sec int) time.Time {
	return time.Date(2024, 6, 1, 12, 0, sec, 0, time.UTC)
}

func msg(id, from, to string, ts time.Time, content string) store.Message {
	return store.Message{ID: id, FromID: from, ToID: to, Content: content, CreatedAt: ts}
}

func ids(msgs []store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestDirectPageMergesBothStores(t *testing.T) {
	legacy := &fakeStore{msgs: []store.Message{
		msg("m1", "alice", "bob", at(1), "one"),
		msg("m2", "bob", "alice", at(2), "two"),
		msg("m3", "alice", "bob", at(3), "three (old copy)"),
	}}
	current := &fakeStore{msgs: []store.Message{
		msg("m3", "alice", "bob", at(3), "three"),
		msg("m4", "bob", "alice", at(4), "four"),
	}}
	r := NewResolver(legacy, current)

	page, err := r.DirectPage(context.Background(), "alice", "bob", "alice", 2, time.Time{})
	if err != nil {
		t.Fatalf("DirectPage: %v", err)
	}

	got := ids(page.Messages)
	want := []string{"m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("got %v messages, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("page order = %v, want %v", got, want)
		}
	}
	if !page.HasMore {
		t.Error("HasMore = false on a full page, want true")
	}

	// The current store's copy of m3 wins the merge.
	if page.Messages[0].Content != "three" {
		t.Errorf("m3 content = %q, want current store copy %q", page.Messages[0].Content, "three")
	}
}

func TestDirectPageBeforeCursor(t *testing.T) {
	legacy := &fakeStore{msgs: []store.Message{
		msg("m1", "alice", "bob", at(1), "one"),
		msg("m2", "bob", "alice", at(2), "two"),
		msg("m3", "alice", "bob", at(3), "three"),
	}}
	current := &fakeStore{msgs: []store.Message{
		msg("m4", "bob", "alice", at(4), "four"),
	}}
	r := NewResolver(legacy, current)

	page, err := r.DirectPage(context.Background(), "alice", "bob", "alice", 10, at(3))
	if err != nil {
		t.Fatalf("DirectPage: %v", err)
	}

	got := ids(page.Messages)
	want := []string{"m1", "m2"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("page = %v, want %v", got, want)
	}
	if page.HasMore {
		t.Error("HasMore = true on a short page, want false")
	}
}

func TestDirectPageEmptyConversation(t *testing.T) {
	r := NewResolver(&fakeStore{}, &fakeStore{})

	page, err := r.DirectPage(context.Background(), "alice", "bob", "alice", 20, time.Time{})
	if err != nil {
		t.Fatalf("DirectPage: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Errorf("got %d messages, want 0", len(page.Messages))
	}
	if page.HasMore {
		t.Error("HasMore = true for empty conversation, want false")
	}
}

func TestDirectPageRedactsDeleted(t *testing.T) {
	deleted := msg("m1", "alice", "bob", at(1), "secret")
	deleted.Deleted = true
	deleted.FileURL = "https://cdn.example.com/x.png"
	deleted.FileName = "x.png"
	deleted.IsImage = true
	deleted.SharedID = "p9"

	current := &fakeStore{msgs: []store.Message{
		deleted,
		msg("m2", "bob", "alice", at(2), "hello"),
	}}
	r := NewResolver(&fakeStore{}, current)

	page, err := r.DirectPage(context.Background(), "alice", "bob", "bob", 20, time.Time{})
	if err != nil {
		t.Fatalf("DirectPage: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(page.Messages))
	}

	got := page.Messages[0]
	if got.ID != "m1" || !got.Deleted {
		t.Fatalf("expected tombstone for m1, got %+v", got)
	}
	if got.Content != "" || got.FileURL != "" || got.FileName != "" || got.IsImage || got.SharedID != "" {
		t.Errorf("deleted message payload not redacted: %+v", got)
	}
	if !got.CreatedAt.Equal(at(1)) || got.FromID != "alice" {
		t.Errorf("tombstone lost identity fields: %+v", got)
	}
}

func TestDirectPageSynthesizesStatus(t *testing.T) {
	current := &fakeStore{msgs: []store.Message{
		msg("m1", "alice", "bob", at(1), "mine"),
		msg("m2", "bob", "alice", at(2), "theirs"),
	}}
	r := NewResolver(&fakeStore{}, current)

	page, err := r.DirectPage(context.Background(), "alice", "bob", "alice", 20, time.Time{})
	if err != nil {
		t.Fatalf("DirectPage: %v", err)
	}

	for _, m := range page.Messages {
		want := StatusSeen
		if m.FromID == "alice" {
			want = StatusSent
		}
		if m.Status != want {
			t.Errorf("message %s status = %q, want %q", m.ID, m.Status, want)
		}
	}
}

func TestGroupPage(t *testing.T) {
	legacy := &fakeStore{msgs: []store.Message{
		{ID: "g1", FromID: "alice", GroupID: "grp", Content: "old", CreatedAt: at(1)},
	}}
	current := &fakeStore{msgs: []store.Message{
		{ID: "g2", FromID: "bob", GroupID: "grp", Content: "new", CreatedAt: at(2)},
	}}
	r := NewResolver(legacy, current)

	page, err := r.GroupPage(context.Background(), "grp", "carol", 20, time.Time{})
	if err != nil {
		t.Fatalf("GroupPage: %v", err)
	}

	got := ids(page.Messages)
	if len(got) != 2 || got[0] != "g1" || got[1] != "g2" {
		t.Fatalf("page = %v, want [g1 g2]", got)
	}
	for _, m := range page.Messages {
		if m.Status != StatusSeen {
			t.Errorf("message %s status = %q for non-author viewer, want %q", m.ID, m.Status, StatusSeen)
		}
	}
}

func TestPagePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")

	for _, tt := range []struct {
		name    string
		legacy  *fakeStore
		current *fakeStore
	}{
		{"legacy fails", &fakeStore{err: boom}, &fakeStore{}},
		{"current fails", &fakeStore{}, &fakeStore{err: boom}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.legacy, tt.current)
			if _, err := r.DirectPage(context.Background(), "a", "b", "a", 20, time.Time{}); !errors.Is(err, boom) {
				t.Errorf("DirectPage err = %v, want wrapped %v", err, boom)
			}
		})
	}
}
