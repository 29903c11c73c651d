package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// FriendStore answers friendship lookups against the friendships collection.
// Rows are directed (one per accepted request) so a pair is checked in both
// orientations.
type FriendStore struct {
	coll *mongo.Collection
}

// AreFriends reports whether an accepted friendship exists between the two
// users, in either direction.
func (s *FriendStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	aReprs, bReprs := idReprs(a), idReprs(b)
	filter := bson.M{
		"status": "accepted",
		"$or": bson.A{
			bson.M{"requester": bson.M{"$in": aReprs}, "recipient": bson.M{"$in": bReprs}},
			bson.M{"requester": bson.M{"$in": bReprs}, "recipient": bson.M{"$in": aReprs}},
		},
	}

	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("store: query friendship: %w", err)
	}
	return n > 0, nil
}
