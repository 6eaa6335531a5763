package usecase

import (
	"sync"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// PaymentSubscription receives at most one terminal status for a transaction.
// C is closed by Unsubscribe.
type PaymentSubscription struct {
	TransactionID string
	C             <-chan domain.PaymentStatusUpdate

	id uint64
	ch chan domain.PaymentStatusUpdate
}

// StatusHub fans terminal payment statuses out to in-process subscribers.
type StatusHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*PaymentSubscription
}

// NewStatusHub returns an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{subs: make(map[string]map[uint64]*PaymentSubscription)}
}

// Subscribe registers interest in a transaction.
func (h *StatusHub) Subscribe(transactionID string) *PaymentSubscription {
	ch := make(chan domain.PaymentStatusUpdate, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &PaymentSubscription{TransactionID: transactionID, C: ch, id: h.nextID, ch: ch}
	set, ok := h.subs[transactionID]
	if !ok {
		set = make(map[uint64]*PaymentSubscription)
		h.subs[transactionID] = set
	}
	set[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (h *StatusHub) Unsubscribe(sub *PaymentSubscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.TransactionID]; ok {
		if _, live := set[sub.id]; live {
			delete(set, sub.id)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(h.subs, sub.TransactionID)
		}
	}
}

// Publish delivers a terminal update to every subscriber of the transaction and
// returns how many received it. Non-terminal updates are dropped.
func (h *StatusHub) Publish(update domain.PaymentStatusUpdate) int {
	if !update.Status.Terminal() {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, sub := range h.subs[update.TransactionID] {
		if h.offer(sub, update) {
			delivered++
		}
	}
	return delivered
}

// deliverTo sends update to one live subscription.
func (h *StatusHub) deliverTo(sub *PaymentSubscription, update domain.PaymentStatusUpdate) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.subs[sub.TransactionID][sub.id]; !live {
		return false
	}
	return h.offer(sub, update)
}

// offer never blocks; a subscription whose buffer is full already holds its
// terminal status. Caller holds h.mu.
func (h *StatusHub) offer(sub *PaymentSubscription, update domain.PaymentStatusUpdate) bool {
	select {
	case sub.ch <- update:
		return true
	default:
		return false
	}
}

// Subscribers reports the live subscription count for a transaction.
func (h *StatusHub) Subscribers(transactionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[transactionID])
}
