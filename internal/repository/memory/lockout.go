// Package memory holds single-process stores used in development and tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
)

// LockoutStore keeps failure counters in process memory. Counters are not
// shared between instances.
type LockoutStore struct {
	mu      sync.Mutex
	records map[string]domain.LoginAttemptRecord
}

func NewLockoutStore() *LockoutStore {
	return &LockoutStore{records: make(map[string]domain.LoginAttemptRecord)}
}

func (s *LockoutStore) Get(_ context.Context, identifier string) (domain.LoginAttemptRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identifier]
	if ok && record.LockedUntil != nil {
		until := *record.LockedUntil
		record.LockedUntil = &until
	}
	return record, ok, nil
}

func (s *LockoutStore) RecordFailure(_ context.Context, identifier string, at time.Time, policy domain.LockoutPolicy) (port.FailureOutcome, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return port.FailureOutcome{}, errors.New("identifier is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[identifier]
	if !ok {
		current = domain.LoginAttemptRecord{Identifier: identifier}
	}
	next, newly := current.WithFailure(at, policy)
	s.records[identifier] = next
	return port.FailureOutcome{Record: next, NewlyLocked: newly}, nil
}

func (s *LockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

var _ port.LoginAttemptStore = (*LockoutStore)(nil)
