package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rabbitlabs/rabbit/internal/dataset"
	"github.com/rabbitlabs/rabbit/internal/synth"
)

// ErrNoDataset is returned by Chat before a dataset has been attached.
var ErrNoDataset = errors.New("no dataset attached to session")

// Session pairs a dataset with its append-only conversation history. The
// dataset is attached once after upload; history only grows. Safe for
// concurrent use.
type Session struct {
	mu      sync.Mutex
	ds      *dataset.Dataset
	history []synth.Turn
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// SetDataset attaches the dataset the session converses about.
func (s *Session) SetDataset(ds *dataset.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}

// Dataset returns the attached dataset, or nil.
func (s *Session) Dataset() *dataset.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds
}

// History returns a copy of the conversation history.
func (s *Session) History() []synth.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]synth.Turn(nil), s.history...)
}

// Chat runs one turn against the session's dataset and records both sides of
// the exchange in the history.
func (p *Pipeline) Chat(ctx context.Context, s *Session, question string) (Result, error) {
	s.mu.Lock()
	ds := s.ds
	history := append([]synth.Turn(nil), s.history...)
	s.mu.Unlock()

	if ds == nil {
		return Result{}, ErrNoDataset
	}

	res := p.Ask(ctx, ds, question, history)

	s.mu.Lock()
	s.history = append(s.history,
		synth.Turn{Role: "user", Content: question},
		synth.Turn{Role: "assistant", Content: res.Answer, Code: res.Code, Figure: res.Figure},
	)
	s.mu.Unlock()

	return res, nil
}
