package logger

import (
	"net/netip"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaskEmail keeps up to three leading characters and the domain:
// jean.mukendi@example.cd -> jea***@example.cd.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if local == "" || len(domain) < 2 {
		return "***" + domain
	}

	keep := 0
	for i := 0; i < 3 && keep < len(local); i++ {
		_, size := utf8.DecodeRuneInString(local[keep:])
		keep += size
	}
	return local[:keep] + "***" + domain
}

// MaskPhone keeps the dial code and the last four digits:
// 243812345678 -> 243***5678.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := strings.TrimPrefix(phone, "+")
	plus := phone[:len(phone)-len(digits)]

	if isDigits(digits) && len(digits) >= 9 {
		prefix := min(3, len(digits)-8)
		return plus + digits[:prefix] + "***" + digits[len(digits)-4:]
	}
	if len(phone) > 4 {
		return "***" + phone[len(phone)-4:]
	}
	return "***"
}

// MaskIdentifier masks a login identifier, email or phone.
func MaskIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return MaskEmail(identifier)
	}
	return MaskPhone(identifier)
}

// MaskIP keeps the first two octets of an IPv4 address or the first four
// groups of an IPv6 one, as written.
func MaskIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	switch {
	case err != nil:
		if ip == "" {
			return ""
		}
		return "***"
	case addr.Is4():
		b := addr.As4()
		return strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + ".*.*"
	default:
		groups := strings.Split(ip, ":")
		if len(groups) < 4 {
			return "***"
		}
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
