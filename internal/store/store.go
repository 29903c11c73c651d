// Package store is the adapter over the document database that owns durable
// messaging state. Message history is physically split across two collections:
// the current store ("messages", string ids throughout) and the legacy store
// ("messages_legacy", written by an older path that kept ObjectID participant
// references). Both are treated as append-only logs by the read side; the
// history resolver joins them by message id.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	collMessages       = "messages"
	collLegacyMessages = "messages_legacy"
	collFriendships    = "friendships"
	collGroups         = "groups"
)

// Message is the store-agnostic message record. Rows from either physical
// collection are normalized into this shape before they leave the package.
type Message struct {
	ID      string    `json:"id"`
	FromID  string    `json:"fromId"`
	ToID    string    `json:"toId,omitempty"`
	GroupID string    `json:"groupId,omitempty"`
	Content string    `json:"content"`

	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName,omitempty"`
	FileMime string `json:"fileMime,omitempty"`
	IsImage  bool   `json:"isImage,omitempty"`

	SharedID         string `json:"sharedId,omitempty"`
	SharedType       string `json:"sharedType,omitempty"`
	SharedURL        string `json:"sharedUrl,omitempty"`
	SharedCaption    string `json:"sharedCaption,omitempty"`
	SharedAuthorID   string `json:"sharedAuthorId,omitempty"`
	SharedAuthorName string `json:"sharedAuthorName,omitempty"`

	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`

	// Status is synthesized per viewer by the history resolver; it is never
	// persisted.
	Status string `json:"status,omitempty"`
}

// Store bundles the collection-level adapters sharing one database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Messages    *MessageStore
	Legacy      *LegacyMessageStore
	Friendships *FriendStore
	Groups      *GroupStore
}

// Connect opens a client against the given MongoDB URI, pings it, and returns
// a Store over the named database.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}

	db := client.Database(dbName)
	return &Store{
		client:      client,
		db:          db,
		Messages:    &MessageStore{coll: db.Collection(collMessages)},
		Legacy:      &LegacyMessageStore{coll: db.Collection(collLegacyMessages)},
		Friendships: &FriendStore{coll: db.Collection(collFriendships)},
		Groups:      &GroupStore{coll: db.Collection(collGroups)},
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// idReprs returns every value representation a user id may have been stored
// under. The legacy write path persisted participant references as ObjectIDs;
// the current path stores plain strings. Queries match against both.
func idReprs(id string) bson.A {
	reprs := bson.A{id}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		reprs = append(reprs, oid)
	}
	return reprs
}

// idString normalizes a stored identifier to its string form. Identity
// equality across the two stores is defined on this form: a legacy row whose
// _id was copied in from the current store during backfill compares equal to
// the original.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case bson.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}
