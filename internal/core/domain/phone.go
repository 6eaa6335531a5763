package domain

import "strings"

// Carrier identifies the mobile-money operator that issued a subscriber number.
type Carrier string

const (
	CarrierNone      Carrier = ""
	CarrierMPesa     Carrier = "mpesa"
	CarrierAirtel    Carrier = "airtel"
	CarrierOrange    Carrier = "orange"
	CarrierAfrimoney Carrier = "afrimoney"
)

// CarrierBlock maps a set of two-digit subscriber prefixes to a carrier.
type CarrierBlock struct {
	Carrier  Carrier  `mapstructure:"carrier" json:"carrier"`
	Prefixes []string `mapstructure:"prefixes" json:"prefixes"`
}

// Country is a static numbering-plan entry used for parsing and display.
type Country struct {
	ISO              string         `mapstructure:"iso" json:"iso"`
	Name             string         `mapstructure:"name" json:"name"`
	DialCode         string         `mapstructure:"dial_code" json:"dial_code"`
	Flag             string         `mapstructure:"flag" json:"flag"`
	SubscriberLength int            `mapstructure:"subscriber_length" json:"subscriber_length"`
	TrunkPrefix      string         `mapstructure:"trunk_prefix" json:"trunk_prefix,omitempty"`
	Carriers         []CarrierBlock `mapstructure:"carriers" json:"carriers,omitempty"`
}

// HasCarrierTable reports whether the country requires a known carrier prefix.
func (c Country) HasCarrierTable() bool {
	return len(c.Carriers) > 0
}

// PhoneNumber is a subscriber number bound to its country.
type PhoneNumber struct {
	CountryISO string
	DialCode   string
	Subscriber string
	Truncated  bool
}

// Canonical returns <dial code><subscriber> without separators.
func (p PhoneNumber) Canonical() string {
	if p.Subscriber == "" {
		return ""
	}
	return p.DialCode + p.Subscriber
}

// E164 returns the canonical number prefixed with '+'.
func (p PhoneNumber) E164() string {
	canonical := p.Canonical()
	if canonical == "" {
		return ""
	}
	return "+" + canonical
}

// Prefix returns the two leading subscriber digits.
func (p PhoneNumber) Prefix() string {
	if len(p.Subscriber) < 2 {
		return p.Subscriber
	}
	return p.Subscriber[:2]
}

// IsZero reports whether no digits were captured.
func (p PhoneNumber) IsZero() bool {
	return strings.TrimSpace(p.Subscriber) == ""
}

// PhoneDetails is the result of a full parse: normalized number plus carrier routing.
type PhoneDetails struct {
	Number  PhoneNumber
	Carrier Carrier
}
