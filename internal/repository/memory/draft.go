package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

// DraftStore is an in-process DraftStore. Expired drafts are dropped on access.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[string]domain.RegistrationDraft
	now    func() time.Time
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[string]domain.RegistrationDraft), now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *DraftStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *DraftStore) Create(_ context.Context, draft domain.RegistrationDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft.Expired(s.now()) {
		return domain.ErrDraftExpired
	}
	if _, exists := s.drafts[draft.ID]; exists {
		return repository.ErrConflict
	}
	s.drafts[draft.ID] = draft
	return nil
}

func (s *DraftStore) Get(_ context.Context, id string) (domain.RegistrationDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

func (s *DraftStore) Update(_ context.Context, id string, fn func(*domain.RegistrationDraft) error) (domain.RegistrationDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.lookup(id)
	if err != nil {
		return domain.RegistrationDraft{}, err
	}
	if err := fn(&draft); err != nil {
		return domain.RegistrationDraft{}, err
	}
	s.drafts[draft.ID] = draft
	return draft, nil
}

func (s *DraftStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, strings.TrimSpace(id))
	return nil
}

func (s *DraftStore) lookup(id string) (domain.RegistrationDraft, error) {
	id = strings.TrimSpace(id)
	draft, ok := s.drafts[id]
	if !ok {
		return domain.RegistrationDraft{}, domain.ErrDraftNotFound
	}
	if draft.Expired(s.now()) {
		delete(s.drafts, id)
		return domain.RegistrationDraft{}, domain.ErrDraftExpired
	}
	return draft, nil
}

var _ port.DraftStore = (*DraftStore)(nil)
