package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type aggregateCollection interface {
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

// UserStats summarizes the chat user population for the dashboard header.
type UserStats struct {
	Total      int64 `bson:"total" json:"total"`
	Subscribed int64 `bson:"subscribed" json:"subscribed"`
	Blocked    int64 `bson:"blocked" json:"blocked"`
}

// StatsProvider computes dashboard counters over the users collection.
type StatsProvider struct {
	users aggregateCollection
}

// NewStatsProvider constructs a StatsProvider backed by the users collection.
func NewStatsProvider(users aggregateCollection) *StatsProvider {
	return &StatsProvider{users: users}
}

// userStatsPipeline counts all, subscribed and blocked users in one pass.
var userStatsPipeline = mongo.Pipeline{
	{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "subscribed", Value: countWhere("$subscribed")},
		{Key: "blocked", Value: countWhere("$blocked")},
	}}},
}

func countWhere(field string) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{
		{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{field, true}}}, 1, 0}},
	}}}
}

// UserStats returns total, subscribed and blocked chat user counts. An empty
// collection yields zero counts.
func (p *StatsProvider) UserStats(ctx context.Context) (UserStats, error) {
	if ctx == nil {
		return UserStats{}, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return UserStats{}, errors.New("stats provider is not initialized")
	}

	cursor, err := p.users.Aggregate(ctx, userStatsPipeline)
	if err != nil {
		return UserStats{}, fmt.Errorf("aggregate user stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats UserStats
	if cursor.Next(ctx) {
		if err := cursor.Decode(&stats); err != nil {
			return UserStats{}, fmt.Errorf("decode user stats: %w", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return UserStats{}, fmt.Errorf("read user stats: %w", err)
	}

	return stats, nil
}
