package oracle

import (
	"context"
	"math/rand"
	"sync"
)

// StubClient serves canned lines for development without a generation
// service. NPCs keep talking; they just have nothing new to say.
type StubClient struct {
	mu  sync.Mutex
	rng *rand.Rand

	arrivals []string
	replies  []string
}

func NewStubClient(seed int64) *StubClient {
	return &StubClient{
		rng: rand.New(rand.NewSource(seed)),
		arrivals: []string{
			"Made it in one piece!",
			"What a walk.",
			"Finally here.",
			"This is the spot.",
		},
		replies: []string{
			"Is that so?",
			"I'll keep that in mind.",
			"You don't say.",
			"Hah! Good one.",
		},
	}
}

func (s *StubClient) GenerateMessage(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arrivals[s.rng.Intn(len(s.arrivals))], nil
}

func (s *StubClient) ProcessMessage(ctx context.Context, prompt string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reply{Message: s.replies[s.rng.Intn(len(s.replies))]}, nil
}
