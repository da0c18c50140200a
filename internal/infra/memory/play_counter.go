package memory

import (
	"context"
	"sync"
)

// PlayCounter counts started sessions per quiz.
type PlayCounter struct {
	mu    sync.Mutex
	plays map[string]int64
}

func NewPlayCounter() *PlayCounter {
	return &PlayCounter{plays: make(map[string]int64)}
}

func (c *PlayCounter) IncrementPlays(_ context.Context, quizID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays[quizID]++
	return c.plays[quizID], nil
}

// Plays returns the current count for quizID.
func (c *PlayCounter) Plays(quizID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays[quizID]
}
