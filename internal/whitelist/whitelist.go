// Package whitelist implements the client allow-list: an immutable set of
// CIDR ranges checked against the peer address of every accepted connection.
package whitelist

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"grimm.is/lanbridge/internal/logging"
)

// Wildcard tokens that disable filtering entirely.
var wildcards = map[string]bool{"any": true, "*": true}

// ParseError describes a whitelist entry that was skipped.
type ParseError struct {
	Entry  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid whitelist entry %q: %s", e.Entry, e.Reason)
}

// Rule is one CIDR range stored as raw address bytes and a prefix mask of the
// same length.
type Rule struct {
	base []byte
	mask []byte
	text string
}

// Matches reports whether addr falls inside the rule. Addresses of a
// different family (byte length) never match.
func (r Rule) Matches(addr []byte) bool {
	if len(addr) != len(r.base) {
		return false
	}
	for i := range addr {
		if addr[i]&r.mask[i] != r.base[i]&r.mask[i] {
			return false
		}
	}
	return true
}

// String returns the normalised CIDR text the rule was built from.
func (r Rule) String() string {
	return r.text
}

// Whitelist is safe for concurrent use; it never changes after New.
type Whitelist struct {
	rules   []Rule
	skipped []error
}

// New builds a whitelist from CIDR strings. Entries are trimmed and
// lower-cased. "any" or "*" yields an allow-all list and stops parsing.
// Malformed entries are skipped and logged; they never fail construction.
func New(entries []string, logger *logging.Logger) *Whitelist {
	if logger == nil {
		logger = logging.WithComponent("whitelist")
	}

	w := &Whitelist{}
	for _, entry := range entries {
		normalized := strings.ToLower(strings.TrimSpace(entry))
		if normalized == "" {
			continue
		}
		if wildcards[normalized] {
			return &Whitelist{skipped: w.skipped}
		}
		rule, err := ParseRule(normalized)
		if err != nil {
			logger.Warn("skipping whitelist entry", "entry", entry, "error", err)
			w.skipped = append(w.skipped, err)
			continue
		}
		w.rules = append(w.rules, rule)
	}
	return w
}

// ParseRule parses "address/prefixLength".
func ParseRule(cidr string) (Rule, error) {
	addrText, prefixText, ok := strings.Cut(cidr, "/")
	if !ok || strings.Contains(prefixText, "/") {
		return Rule{}, &ParseError{Entry: cidr, Reason: "expected address/prefix"}
	}

	addr, err := netip.ParseAddr(addrText)
	if err != nil || addr.Zone() != "" {
		return Rule{}, &ParseError{Entry: cidr, Reason: "invalid address"}
	}

	prefix, err := strconv.Atoi(prefixText)
	if err != nil {
		return Rule{}, &ParseError{Entry: cidr, Reason: "prefix is not a number"}
	}

	base := addr.AsSlice()
	if prefix < 0 || prefix > len(base)*8 {
		return Rule{}, &ParseError{Entry: cidr, Reason: fmt.Sprintf("prefix %d out of range", prefix)}
	}

	return Rule{
		base: base,
		mask: buildMask(len(base), prefix),
		text: addr.String() + "/" + strconv.Itoa(prefix),
	}, nil
}

func buildMask(length, prefix int) []byte {
	mask := make([]byte, length)
	full := prefix / 8
	for i := 0; i < full; i++ {
		mask[i] = 0xFF
	}
	if rem := prefix % 8; rem > 0 && full < length {
		mask[full] = byte(0xFF << (8 - rem))
	}
	return mask
}

// AllowAll reports whether filtering is disabled.
func (w *Whitelist) AllowAll() bool {
	return len(w.rules) == 0
}

// Rules returns a copy of the parsed rules in configuration order.
func (w *Whitelist) Rules() []Rule {
	out := make([]Rule, len(w.rules))
	copy(out, w.rules)
	return out
}

// Skipped returns a *ParseError for every entry that could not be parsed.
func (w *Whitelist) Skipped() []error {
	return w.skipped
}

// IsAllowed reports whether addr may connect. IPv4-mapped IPv6 addresses, as
// seen on dual-stack listeners, are compared in their IPv4 form.
func (w *Whitelist) IsAllowed(addr netip.Addr) bool {
	if len(w.rules) == 0 {
		return true
	}
	raw := addr.Unmap().AsSlice()
	for _, r := range w.rules {
		if r.Matches(raw) {
			return true
		}
	}
	return false
}

// AllowedAddr is IsAllowed for the address of a net.Conn peer. Addresses that
// carry no IP are only allowed when filtering is disabled.
func (w *Whitelist) AllowedAddr(a net.Addr) bool {
	if w.AllowAll() {
		return true
	}
	ip, ok := addrIP(a)
	if !ok {
		return false
	}
	return w.IsAllowed(ip)
}

func addrIP(a net.Addr) (netip.Addr, bool) {
	switch v := a.(type) {
	case *net.TCPAddr:
		return netip.AddrFromSlice(v.IP)
	case *net.UDPAddr:
		return netip.AddrFromSlice(v.IP)
	case nil:
		return netip.Addr{}, false
	}
	ap, err := netip.ParseAddrPort(a.String())
	if err != nil {
		return netip.Addr{}, false
	}
	return ap.Addr(), true
}

// String lists the active ranges for log lines.
func (w *Whitelist) String() string {
	if w.AllowAll() {
		return "any"
	}
	parts := make([]string, len(w.rules))
	for i, r := range w.rules {
		parts[i] = r.text
	}
	return strings.Join(parts, ", ")
}
