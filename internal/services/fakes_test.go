package services

import (
	"context"
	"sync"

	"derjachat/internal/models"
)

// scriptedGenerator answers generation calls from a list of replies in order.
// The last reply repeats once the list is exhausted.
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []*models.GenerationRequest
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, req *models.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := len(g.requests)
	g.requests = append(g.requests, req)

	var err error
	if len(g.errs) > 0 {
		err = g.errs[min(i, len(g.errs)-1)]
	}
	if err != nil {
		return "", err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	return g.replies[min(i, len(g.replies)-1)], nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *scriptedGenerator) purposes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.requests))
	for _, r := range g.requests {
		out = append(out, r.Purpose)
	}
	return out
}
