package numbering

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

func testPlan(t *testing.T) *Plan {
	t.Helper()
	plan, err := Default()
	if err != nil {
		t.Fatalf("load default plan: %v", err)
	}
	return plan
}

func TestDefaultPlanLoads(t *testing.T) {
	plan := testPlan(t)
	if plan.Version() == "" {
		t.Fatal("expected plan version")
	}
	cd, ok := plan.Lookup("cd")
	if !ok {
		t.Fatal("expected DRC in default plan")
	}
	if cd.DialCode != "243" || cd.SubscriberLength != 9 || !cd.HasCarrierTable() {
		t.Fatalf("unexpected DRC entry: %+v", cd)
	}
	if got := plan.Countries()[0].ISO; got != "CD" {
		t.Fatalf("expected declaration order, first=%s", got)
	}
}

func TestParseDRCCarriers(t *testing.T) {
	plan := testPlan(t)

	cases := []struct {
		raw       string
		canonical string
		carrier   domain.Carrier
	}{
		{"0812345678", "243812345678", domain.CarrierMPesa},
		{"0991234567", "243991234567", domain.CarrierAirtel},
		{"084 123 4567", "243841234567", domain.CarrierOrange},
		{"(090)-123-4567", "243901234567", domain.CarrierAfrimoney},
		{"+243 81 234 5678", "243812345678", domain.CarrierMPesa},
		{"00243812345678", "243812345678", domain.CarrierMPesa},
		{"812345678", "243812345678", domain.CarrierMPesa},
	}

	for _, tc := range cases {
		details, err := plan.Parse(tc.raw, "CD")
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.raw, err)
		}
		if got := details.Number.Canonical(); got != tc.canonical {
			t.Fatalf("Parse(%q) canonical = %s, want %s", tc.raw, got, tc.canonical)
		}
		if details.Carrier != tc.carrier {
			t.Fatalf("Parse(%q) carrier = %q, want %q", tc.raw, details.Carrier, tc.carrier)
		}
	}
}

func TestValidateUnknownCarrier(t *testing.T) {
	plan := testPlan(t)

	number, err := plan.Normalize("0950000000", "CD")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if carrier, ok := plan.DetectCarrier(number); ok || carrier != domain.CarrierNone {
		t.Fatalf("expected no carrier, got %q", carrier)
	}
	err = plan.Validate(number)
	if !errors.Is(err, domain.ErrUnknownCarrier) {
		t.Fatalf("expected ErrUnknownCarrier, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "phone" {
		t.Fatalf("expected phone validation error, got %v", err)
	}
}

func TestValidateLength(t *testing.T) {
	plan := testPlan(t)

	short, _ := plan.Normalize("08123", "CD")
	if err := plan.Validate(short); !errors.Is(err, domain.ErrInvalidPhoneFormat) {
		t.Fatalf("expected ErrInvalidPhoneFormat for short input, got %v", err)
	}

	long, _ := plan.Normalize("08123456789", "CD")
	if !long.Truncated {
		t.Fatal("expected truncation flag")
	}
	if long.Subscriber != "812345678" {
		t.Fatalf("unexpected truncated subscriber %s", long.Subscriber)
	}
	if err := plan.Validate(long); !errors.Is(err, domain.ErrInvalidPhoneFormat) {
		t.Fatalf("expected truncated input to be rejected, got %v", err)
	}
}

func TestCountryWithoutTrunkOrCarriers(t *testing.T) {
	plan := testPlan(t)

	details, err := plan.Parse("061234567", "CG")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if details.Number.Canonical() != "242061234567" {
		t.Fatalf("leading zero must be kept without trunk prefix, got %s", details.Number.Canonical())
	}
	if details.Carrier != domain.CarrierNone {
		t.Fatalf("expected no carrier, got %q", details.Carrier)
	}
}

func TestUnsupportedCountry(t *testing.T) {
	plan := testPlan(t)
	if _, err := plan.Parse("0812345678", "XX"); !errors.Is(err, domain.ErrUnsupportedCountry) {
		t.Fatalf("expected ErrUnsupportedCountry, got %v", err)
	}
}

func TestParseInternational(t *testing.T) {
	plan := testPlan(t)

	details, err := plan.ParseInternational("+243812345678")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if details.Number.CountryISO != "CD" || details.Carrier != domain.CarrierMPesa {
		t.Fatalf("unexpected details %+v", details)
	}

	us, err := plan.ParseInternational("+1 202 555 0143")
	if err != nil {
		t.Fatalf("parse us: %v", err)
	}
	if us.Number.E164() != "+12025550143" {
		t.Fatalf("unexpected e164 %s", us.Number.E164())
	}

	if _, err := plan.ParseInternational("+999123"); !errors.Is(err, domain.ErrInvalidPhoneFormat) {
		t.Fatalf("expected ErrInvalidPhoneFormat, got %v", err)
	}
}

func TestNewPlanRejectsOverlappingPrefixes(t *testing.T) {
	_, err := NewPlan("test", []domain.Country{{
		ISO:              "CD",
		DialCode:         "243",
		SubscriberLength: 9,
		Carriers: []domain.CarrierBlock{
			{Carrier: domain.CarrierMPesa, Prefixes: []string{"81"}},
			{Carrier: domain.CarrierAirtel, Prefixes: []string{"81"}},
		},
	}})
	if err == nil {
		t.Fatal("expected overlap error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	doc := `version: "test-1"
countries:
  - iso: CD
    dial_code: "243"
    subscriber_length: 9
    trunk_prefix: "0"
    carriers:
      - carrier: mpesa
        prefixes: ["81", "95"]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	plan, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if plan.Version() != "test-1" {
		t.Fatalf("unexpected version %s", plan.Version())
	}
	details, err := plan.Parse("0950000000", "CD")
	if err != nil {
		t.Fatalf("prefix 95 should be accepted by the custom plan: %v", err)
	}
	if details.Carrier != domain.CarrierMPesa {
		t.Fatalf("unexpected carrier %q", details.Carrier)
	}
}
