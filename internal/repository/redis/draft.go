package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

const (
	defaultDraftPrefix = "draft"
	maxDraftTxRetries  = 5
)

// DraftRepository stores registration drafts as JSON values that expire with
// the session. Updates use optimistic transactions.
type DraftRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewDraftRepository constructs a Redis-backed draft store.
func NewDraftRepository(client *red.Client, keyPrefix string) *DraftRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultDraftPrefix
	}
	return &DraftRepository{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (r *DraftRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Create stores a new draft; its TTL follows ExpiresAt.
func (r *DraftRepository) Create(ctx context.Context, draft domain.RegistrationDraft) error {
	key := r.key(draft.ID)
	if key == "" {
		return errors.New("draft id is required")
	}
	ttl := draft.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return domain.ErrDraftExpired
	}

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	created, err := r.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx draft: %w", err)
	}
	if !created {
		return repository.ErrConflict
	}
	return nil
}

// Get loads a draft by id.
func (r *DraftRepository) Get(ctx context.Context, id string) (domain.RegistrationDraft, error) {
	key := r.key(id)
	if key == "" {
		return domain.RegistrationDraft{}, domain.ErrDraftNotFound
	}
	return r.load(ctx, r.client, key)
}

// Update applies fn under WATCH so concurrent updates of the same draft are
// serialised. fn errors abort without writing.
func (r *DraftRepository) Update(ctx context.Context, id string, fn func(*domain.RegistrationDraft) error) (domain.RegistrationDraft, error) {
	key := r.key(id)
	if key == "" {
		return domain.RegistrationDraft{}, domain.ErrDraftNotFound
	}

	var updated domain.RegistrationDraft
	txf := func(tx *red.Tx) error {
		draft, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(&draft); err != nil {
			return err
		}

		data, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe red.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, red.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		updated = draft
		return nil
	}

	for attempt := 0; attempt < maxDraftTxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, red.TxFailedErr) {
			continue
		}
		return domain.RegistrationDraft{}, err
	}
	return domain.RegistrationDraft{}, fmt.Errorf("update draft %s: %w", id, repository.ErrConflict)
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	key := r.key(id)
	if key == "" {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete draft: %w", err)
	}
	return nil
}

func (r *DraftRepository) load(ctx context.Context, client red.Cmdable, key string) (domain.RegistrationDraft, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return domain.RegistrationDraft{}, domain.ErrDraftNotFound
		}
		return domain.RegistrationDraft{}, fmt.Errorf("redis get draft: %w", err)
	}

	var draft domain.RegistrationDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return domain.RegistrationDraft{}, fmt.Errorf("decode draft: %w", err)
	}
	if draft.Expired(r.now()) {
		return domain.RegistrationDraft{}, domain.ErrDraftExpired
	}
	return draft, nil
}

func (r *DraftRepository) key(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

var _ port.DraftStore = (*DraftRepository)(nil)
