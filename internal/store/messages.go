package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// messageDoc is the current store's document shape. Everything is a string;
// _id is a UUID assigned by the send path.
type messageDoc struct {
	ID      string `bson:"_id"`
	FromID  string `bson:"from_id"`
	ToID    string `bson:"to_id,omitempty"`
	GroupID string `bson:"group_id,omitempty"`
	Content string `bson:"content,omitempty"`

	FileURL  string `bson:"file_url,omitempty"`
	FileName string `bson:"file_name,omitempty"`
	FileMime string `bson:"file_mime,omitempty"`
	IsImage  bool   `bson:"is_image,omitempty"`

	SharedID         string `bson:"shared_id,omitempty"`
	SharedType       string `bson:"shared_type,omitempty"`
	SharedURL        string `bson:"shared_url,omitempty"`
	SharedCaption    string `bson:"shared_caption,omitempty"`
	SharedAuthorID   string `bson:"shared_author_id,omitempty"`
	SharedAuthorName string `bson:"shared_author_name,omitempty"`

	Deleted   bool      `bson:"deleted,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d messageDoc) toMessage() Message {
	return Message{
		ID:               d.ID,
		FromID:           d.FromID,
		ToID:             d.ToID,
		GroupID:          d.GroupID,
		Content:          d.Content,
		FileURL:          d.FileURL,
		FileName:         d.FileName,
		FileMime:         d.FileMime,
		IsImage:          d.IsImage,
		SharedID:         d.SharedID,
		SharedType:       d.SharedType,
		SharedURL:        d.SharedURL,
		SharedCaption:    d.SharedCaption,
		SharedAuthorID:   d.SharedAuthorID,
		SharedAuthorName: d.SharedAuthorName,
		Deleted:          d.Deleted,
		CreatedAt:        d.CreatedAt,
	}
}

// MessageStore is the adapter for the current message collection. It is the
// only collection the send path writes to; the legacy collection is read-only
// from this service's perspective.
type MessageStore struct {
	coll *mongo.Collection
}

// Insert appends a message. The caller assigns the id and timestamp.
func (s *MessageStore) Insert(ctx context.Context, m Message) error {
	doc := messageDoc{
		ID:               m.ID,
		FromID:           m.FromID,
		ToID:             m.ToID,
		GroupID:          m.GroupID,
		Content:          m.Content,
		FileURL:          m.FileURL,
		FileName:         m.FileName,
		FileMime:         m.FileMime,
		IsImage:          m.IsImage,
		SharedID:         m.SharedID,
		SharedType:       m.SharedType,
		SharedURL:        m.SharedURL,
		SharedCaption:    m.SharedCaption,
		SharedAuthorID:   m.SharedAuthorID,
		SharedAuthorName: m.SharedAuthorName,
		Deleted:          m.Deleted,
		CreatedAt:        m.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// MarkDeleted sets the soft-delete flag on a message sent by fromID. The row
// remains; the history resolver redacts its content for readers. Matching on
// the sender makes delete an owner-only operation.
func (s *MessageStore) MarkDeleted(ctx context.Context, id, fromID string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "from_id": fromID},
		bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("store: mark deleted: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("store: message %s not found for user %s", id, fromID)
	}
	return nil
}

// QueryPair returns up to limit direct messages between the two users, newest
// first. A non-zero before bounds results to strictly earlier timestamps.
func (s *MessageStore) QueryPair(ctx context.Context, a, b string, before time.Time, limit int64) ([]Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from_id": a, "to_id": b},
		bson.M{"from_id": b, "to_id": a},
	}}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	return s.find(ctx, filter, limit)
}

// QueryGroup returns up to limit messages for the group, newest first.
func (s *MessageStore) QueryGroup(ctx context.Context, groupID string, before time.Time, limit int64) ([]Message, error) {
	filter := bson.M{"group_id": groupID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	return s.find(ctx, filter, limit)
}

func (s *MessageStore) find(ctx context.Context, filter bson.M, limit int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode messages: %w", err)
	}

	msgs := make([]Message, len(docs))
	for i, d := range docs {
		msgs[i] = d.toMessage()
	}
	return msgs, nil
}
