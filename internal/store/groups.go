package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// GroupStore answers membership lookups against the groups collection. A
// group document carries its member ids in a "members" array.
type GroupStore struct {
	coll *mongo.Collection
}

// IsMember reports whether the user belongs to the group.
func (s *GroupStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	filter := bson.M{
		"_id":     bson.M{"$in": idReprs(groupID)},
		"members": bson.M{"$in": idReprs(userID)},
	}

	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("store: query group membership: %w", err)
	}
	return n > 0, nil
}
