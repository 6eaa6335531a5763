package client

import (
	"context"
	"strings"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/pkg/debounce"
)

// DefaultCheckDelay is how long typing must pause before a check is sent.
const DefaultCheckDelay = 500 * time.Millisecond

// PhoneChecker checks availability while the user types. Only the latest
// input is checked; a superseded request is cancelled and never reported.
type PhoneChecker struct {
	client    *Client
	debouncer *debounce.Debouncer
	onResult  func(phone string, availability PhoneAvailability, err error)
}

// NewPhoneChecker returns a checker that reports each settled result to
// onResult from a background goroutine. onResult must not call Input or Stop.
func NewPhoneChecker(c *Client, delay time.Duration, onResult func(phone string, availability PhoneAvailability, err error)) *PhoneChecker {
	if delay <= 0 {
		delay = DefaultCheckDelay
	}
	return &PhoneChecker{client: c, debouncer: debounce.New(delay), onResult: onResult}
}

// Input records the current field value. Empty input cancels any pending check.
func (p *PhoneChecker) Input(ctx context.Context, phone, countryISO string) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		p.debouncer.Cancel()
		return
	}
	p.debouncer.Schedule(ctx, func(ctx context.Context, deliver debounce.Deliver) {
		availability, err := p.client.CheckPhone(ctx, phone, countryISO)
		if p.onResult == nil {
			return
		}
		deliver(func() { p.onResult(phone, availability, err) })
	})
}

// Stop cancels any pending or running check.
func (p *PhoneChecker) Stop() {
	p.debouncer.Cancel()
}
