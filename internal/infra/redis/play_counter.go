package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PlayCounter increments quiz:{quizID}:plays on every started session.
type PlayCounter struct {
	client *redis.Client
}

func NewPlayCounter(client *redis.Client) *PlayCounter {
	return &PlayCounter{client: client}
}

func (c *PlayCounter) IncrementPlays(ctx context.Context, quizID string) (int64, error) {
	return c.client.Incr(ctx, "quiz:"+quizID+":plays").Result()
}
