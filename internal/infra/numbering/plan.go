// Package numbering normalizes and validates subscriber numbers against an
// injected numbering plan and resolves mobile-money carriers from prefixes.
package numbering

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

const carrierPrefixLength = 2

// Plan is an immutable, versioned set of countries and carrier blocks.
type Plan struct {
	version   string
	countries []domain.Country
	byISO     map[string]domain.Country
	carriers  map[string]map[string]domain.Carrier
}

// NewPlan validates the supplied countries and builds the lookup tables.
func NewPlan(version string, countries []domain.Country) (*Plan, error) {
	if len(countries) == 0 {
		return nil, fmt.Errorf("numbering: plan has no countries")
	}

	p := &Plan{
		version:   strings.TrimSpace(version),
		countries: make([]domain.Country, 0, len(countries)),
		byISO:     make(map[string]domain.Country, len(countries)),
		carriers:  make(map[string]map[string]domain.Carrier),
	}

	for _, c := range countries {
		c.ISO = strings.ToUpper(strings.TrimSpace(c.ISO))
		c.DialCode = strings.TrimPrefix(strings.TrimSpace(c.DialCode), "+")

		switch {
		case c.ISO == "":
			return nil, fmt.Errorf("numbering: country without iso code")
		case !allDigits(c.DialCode) || c.DialCode == "":
			return nil, fmt.Errorf("numbering: %s: dial code %q must be digits", c.ISO, c.DialCode)
		case c.SubscriberLength <= carrierPrefixLength:
			return nil, fmt.Errorf("numbering: %s: subscriber length must exceed %d", c.ISO, carrierPrefixLength)
		case c.TrunkPrefix != "" && !allDigits(c.TrunkPrefix):
			return nil, fmt.Errorf("numbering: %s: trunk prefix %q must be digits", c.ISO, c.TrunkPrefix)
		}
		if _, dup := p.byISO[c.ISO]; dup {
			return nil, fmt.Errorf("numbering: duplicate country %s", c.ISO)
		}

		if len(c.Carriers) > 0 {
			table := make(map[string]domain.Carrier)
			for _, block := range c.Carriers {
				if block.Carrier == domain.CarrierNone {
					return nil, fmt.Errorf("numbering: %s: carrier block without name", c.ISO)
				}
				for _, prefix := range block.Prefixes {
					if len(prefix) != carrierPrefixLength || !allDigits(prefix) {
						return nil, fmt.Errorf("numbering: %s: prefix %q must be %d digits", c.ISO, prefix, carrierPrefixLength)
					}
					if owner, taken := table[prefix]; taken {
						return nil, fmt.Errorf("numbering: %s: prefix %s assigned to both %s and %s", c.ISO, prefix, owner, block.Carrier)
					}
					table[prefix] = block.Carrier
				}
			}
			p.carriers[c.ISO] = table
		}

		p.byISO[c.ISO] = c
		p.countries = append(p.countries, c)
	}

	return p, nil
}

// Version identifies the loaded plan revision.
func (p *Plan) Version() string { return p.version }

// Countries returns the plan's countries in declaration order.
func (p *Plan) Countries() []domain.Country {
	out := make([]domain.Country, len(p.countries))
	copy(out, p.countries)
	return out
}

// Lookup finds a country by ISO code.
func (p *Plan) Lookup(iso string) (domain.Country, bool) {
	c, ok := p.byISO[strings.ToUpper(strings.TrimSpace(iso))]
	return c, ok
}

// Normalize parses raw input for the given country. It never fails on content,
// only on an unknown country.
func (p *Plan) Normalize(raw, iso string) (domain.PhoneNumber, error) {
	country, ok := p.Lookup(iso)
	if !ok {
		return domain.PhoneNumber{}, domain.NewValidationError("country", domain.ErrUnsupportedCountry)
	}
	return Normalize(raw, country), nil
}

// Validate checks a normalized number against its country.
func (p *Plan) Validate(number domain.PhoneNumber) error {
	country, ok := p.Lookup(number.CountryISO)
	if !ok {
		return domain.NewValidationError("country", domain.ErrUnsupportedCountry)
	}
	return Validate(number, country)
}

// DetectCarrier maps the number's prefix to a carrier using the country table.
func (p *Plan) DetectCarrier(number domain.PhoneNumber) (domain.Carrier, bool) {
	table, ok := p.carriers[number.CountryISO]
	if !ok || len(number.Subscriber) < carrierPrefixLength {
		return domain.CarrierNone, false
	}
	carrier, ok := table[number.Prefix()]
	return carrier, ok
}

// Parse runs Normalize, Validate and DetectCarrier in one step.
func (p *Plan) Parse(raw, iso string) (domain.PhoneDetails, error) {
	number, err := p.Normalize(raw, iso)
	if err != nil {
		return domain.PhoneDetails{}, err
	}
	details := domain.PhoneDetails{Number: number}
	if err := p.Validate(number); err != nil {
		return details, err
	}
	details.Carrier, _ = p.DetectCarrier(number)
	return details, nil
}

// ParseInternational resolves the country from the dial code of a number typed
// in international form (+243..., 00243..., 243...).
func (p *Plan) ParseInternational(raw string) (domain.PhoneDetails, error) {
	digits := stripNonDigits(raw)
	digits = strings.TrimPrefix(digits, "00")

	candidates := p.Countries()
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].DialCode) > len(candidates[j].DialCode)
	})

	for _, c := range candidates {
		if strings.HasPrefix(digits, c.DialCode) && len(digits)-len(c.DialCode) == c.SubscriberLength {
			return p.Parse(digits, c.ISO)
		}
	}
	return domain.PhoneDetails{}, domain.NewValidationError("phone", domain.ErrInvalidPhoneFormat)
}

// Normalize strips separators, an international dial code and the trunk prefix,
// then truncates to the subscriber length.
func Normalize(raw string, country domain.Country) domain.PhoneNumber {
	digits := stripNonDigits(raw)

	intl := "00" + country.DialCode
	if strings.HasPrefix(digits, intl) && len(digits)-len(intl) >= country.SubscriberLength {
		digits = digits[len(intl):]
	} else if strings.HasPrefix(digits, country.DialCode) && len(digits)-len(country.DialCode) >= country.SubscriberLength {
		digits = digits[len(country.DialCode):]
	}

	if country.TrunkPrefix != "" && strings.HasPrefix(digits, country.TrunkPrefix) {
		digits = digits[len(country.TrunkPrefix):]
	}

	number := domain.PhoneNumber{
		CountryISO: country.ISO,
		DialCode:   country.DialCode,
		Subscriber: digits,
	}
	if len(digits) > country.SubscriberLength {
		number.Subscriber = digits[:country.SubscriberLength]
		number.Truncated = true
	}
	return number
}

// Validate fails with ErrInvalidPhoneFormat on a length mismatch or truncated
// input and, for countries with a carrier table, with ErrUnknownCarrier.
func Validate(number domain.PhoneNumber, country domain.Country) error {
	if number.Truncated || len(number.Subscriber) != country.SubscriberLength || !allDigits(number.Subscriber) {
		return domain.NewValidationError("phone", domain.ErrInvalidPhoneFormat)
	}
	if country.HasCarrierTable() {
		if _, ok := DetectCarrier(number.Subscriber, country); !ok {
			return domain.NewValidationError("phone", domain.ErrUnknownCarrier)
		}
	}
	return nil
}

// DetectCarrier is a table lookup on the two-digit subscriber prefix.
func DetectCarrier(subscriber string, country domain.Country) (domain.Carrier, bool) {
	if len(subscriber) < carrierPrefixLength {
		return domain.CarrierNone, false
	}
	prefix := subscriber[:carrierPrefixLength]
	for _, block := range country.Carriers {
		for _, candidate := range block.Prefixes {
			if candidate == prefix {
				return block.Carrier, true
			}
		}
	}
	return domain.CarrierNone, false
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
