package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// legacyMessageDoc is the legacy collection's document shape. The old write
// path stored participant references as ObjectIDs and used different field
// names for the same data. A backfill tool later copied some current-store
// rows into this collection carrying their string _id verbatim, so _id and
// the participant fields are decoded loosely and normalized by idString.
type legacyMessageDoc struct {
	ID       any    `bson:"_id"`
	Sender   any    `bson:"sender"`
	Receiver any    `bson:"receiver,omitempty"`
	Group    any    `bson:"group,omitempty"`
	Message  string `bson:"message,omitempty"`

	File     string `bson:"file,omitempty"`
	FileName string `bson:"file_name,omitempty"`
	FileType string `bson:"file_type,omitempty"`
	IsImage  bool   `bson:"is_image,omitempty"`

	SharedID         string `bson:"shared_id,omitempty"`
	SharedType       string `bson:"shared_type,omitempty"`
	SharedURL        string `bson:"shared_url,omitempty"`
	SharedCaption    string `bson:"shared_caption,omitempty"`
	SharedAuthorID   string `bson:"shared_author_id,omitempty"`
	SharedAuthorName string `bson:"shared_author_name,omitempty"`

	Deleted   bool      `bson:"is_deleted,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d legacyMessageDoc) toMessage() Message {
	return Message{
		ID:               idString(d.ID),
		FromID:           idString(d.Sender),
		ToID:             optIDString(d.Receiver),
		GroupID:          optIDString(d.Group),
		Content:          d.Message,
		FileURL:          d.File,
		FileName:         d.FileName,
		FileMime:         d.FileType,
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

func optIDString(v any) string {
	if v == nil {
		return ""
	}
	return idString(v)
}

// LegacyMessageStore is the read-only adapter for the legacy message
// collection.
type LegacyMessageStore struct {
	coll *mongo.Collection
}

// QueryPair returns up to limit direct messages between the two users, newest
// first. Participant fields are matched against every representation either
// user id may have been stored under.
func (s *LegacyMessageStore) QueryPair(ctx context.Context, a, b string, before time.Time, limit int64) ([]Message, error) {
	aReprs, bReprs := idReprs(a), idReprs(b)
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": bson.M{"$in": aReprs}, "receiver": bson.M{"$in": bReprs}},
		bson.M{"sender": bson.M{"$in": bReprs}, "receiver": bson.M{"$in": aReprs}},
	}}
	if !before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": before}
	}
	return s.find(ctx, filter, limit)
}

// QueryGroup returns up to limit messages for the group, newest first.
func (s *LegacyMessageStore) QueryGroup(ctx context.Context, groupID string, before time.Time, limit int64) ([]Message, error) {
	filter := bson.M{"group": bson.M{"$in": idReprs(groupID)}}
	if !before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": before}
	}
	return s.find(ctx, filter, limit)
}

func (s *LegacyMessageStore) find(ctx context.Context, filter bson.M, limit int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: query legacy messages: %w", err)
	}
	var docs []legacyMessageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode legacy messages: %w", err)
	}

	msgs := make([]Message, len(docs))
	for i, d := range docs {
		msgs[i] = d.toMessage()
	}
	return msgs, nil
}
