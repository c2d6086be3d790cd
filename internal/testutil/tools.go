package testutil

import (
	"context"
	"sync"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/tools"
)

// StubHandler returns a canned raw result and records its calls.
type StubHandler struct {
	Raw string
	Err error

	mu    sync.Mutex
	Calls []map[string]any
}

// Execute implements tools.Handler.
func (s *StubHandler) Execute(ctx context.Context, args map[string]any) (string, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, args)
	s.mu.Unlock()
	return s.Raw, s.Err
}

// CallCount returns how many times Execute ran.
func (s *StubHandler) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// NewStubRegistry registers a StubHandler with an empty successful result
// for every catalog tool and returns the registry with the handlers by name.
func NewStubRegistry() (*tools.Registry, map[string]*StubHandler) {
	reg := tools.NewRegistry()
	handlers := make(map[string]*StubHandler)
	for _, spec := range tools.Catalog() {
		h := &StubHandler{Raw: `{"success":true}`}
		handlers[spec.Name] = h
		reg.Register(spec.Name, h)
	}
	return reg, handlers
}
