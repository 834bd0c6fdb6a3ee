package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
)

// ErrInvalidID is returned for guideline ids outside the dotted N.N.N scheme.
var ErrInvalidID = errors.New("invalid guideline id")

var idPattern = regexp.MustCompile(`^[0-9]\.[0-9]\.[0-9]$`)

// Checker evaluates one guideline against a document snapshot.
type Checker interface {
	Scan(ctx context.Context, doc *dom.Document) ([]domain.Finding, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, doc *dom.Document) ([]domain.Finding, error)

// Scan calls f.
func (f CheckerFunc) Scan(ctx context.Context, doc *dom.Document) ([]domain.Finding, error) {
	return f(ctx, doc)
}

// Entry pairs a guideline id with its checker, in registration order.
type Entry struct {
	ID      string
	Checker Checker
}

// Registry keeps a mapping from guideline ids to their checkers.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
	logger   *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{checkers: map[string]Checker{}, logger: logger}
}

// ValidID reports whether id follows the dotted three-part scheme.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Register adds or replaces a checker. Legacy flat ids such as "611" are rejected.
// Re-registering an id keeps its original position.
func (r *Registry) Register(id string, checker Checker) error {
	if !ValidID(id) {
		if r.logger != nil {
			r.logger.Warn("blocked registration of legacy checker", "guideline_id", id)
		}
		return fmt.Errorf("register %q: %w", id, ErrInvalidID)
	}
	if checker == nil {
		return fmt.Errorf("register %q: nil checker", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checkers == nil {
		r.checkers = map[string]Checker{}
	}
	if _, exists := r.checkers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.checkers[id] = checker
	if r.logger != nil {
		r.logger.Debug("checker registered", "guideline_id", id)
	}
	return nil
}

// Resolve returns a checker by id or an error if it is absent.
func (r *Registry) Resolve(id string) (Checker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if checker, ok := r.checkers[id]; ok {
		return checker, nil
	}
	return nil, fmt.Errorf("checker %s is not registered", id)
}

// Entries returns a snapshot of the registered checkers in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, Entry{ID: id, Checker: r.checkers[id]})
	}
	return entries
}

// Len returns the number of registered checkers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
