package iptable

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"usagestats/internal/models"
	"usagestats/pkg/utils"
)

// ErrInvalidIPNotation reports an IP table entry that matches none of
// the supported notations.
var ErrInvalidIPNotation = errors.New("invalid ip notation")

// dashReplacer maps the dash variants spreadsheets substitute for the
// ASCII hyphen back to '-'.
var dashReplacer = strings.NewReplacer("–", "-", "—", "-")

// ParseRanges parses the ranges cell of a table row. Cells hold one
// entry per line; label entries (IPv4/IPv6 headings) are skipped.
func ParseRanges(rangesCell string) ([]models.IPRange, error) {
	var ranges []models.IPRange

	for _, entry := range utils.SplitEntries(rangesCell) {
		if isLabelEntry(entry) {
			continue
		}

		r, err := ParseRangeEntry(entry)
		if err != nil {
			return nil, err
		}

		ranges = append(ranges, r)
	}

	return ranges, nil
}

// ParseProxies parses the proxy cell of a table row. Proxy entries are
// single addresses.
func ParseProxies(proxyCell string) ([]netip.Addr, error) {
	var proxies []netip.Addr

	for _, entry := range utils.SplitEntries(proxyCell) {
		if isLabelEntry(entry) {
			continue
		}

		addr, err := parseAddr(cleanEntry(entry))
		if err != nil {
			return nil, fmt.Errorf("%w: proxy %q", ErrInvalidIPNotation, entry)
		}

		proxies = append(proxies, addr)
	}

	return proxies, nil
}

// ParseRangeEntry parses one IP notation entry into an inclusive range.
// Supported notations: exact ranges "a.b.c.d-e.f.g.h", CIDR prefixes
// "a.b.c.d/nn", per-octet wildcards and ranges ("194.66.*.*",
// "142.217.193.1-27"), and single addresses.
func ParseRangeEntry(entry string) (models.IPRange, error) {
	cleaned := cleanEntry(entry)
	if cleaned == "" {
		return models.IPRange{}, fmt.Errorf("%w: %q", ErrInvalidIPNotation, entry)
	}

	if strings.Contains(cleaned, "/") {
		return parseCIDR(cleaned, entry)
	}

	// Single address, IPv6 included
	if addr, err := parseAddr(cleaned); err == nil {
		return models.IPRange{Start: addr, End: addr}, nil
	}

	// Exact range with full addresses on both sides
	if i := strings.IndexByte(cleaned, '-'); i >= 0 {
		if start, err := parseAddr(cleaned[:i]); err == nil {
			if end, err2 := parseAddr(cleaned[i+1:]); err2 == nil {
				if end.Less(start) {
					return models.IPRange{}, fmt.Errorf("%w: range end before start in %q", ErrInvalidIPNotation, entry)
				}

				return models.IPRange{Start: start, End: end}, nil
			}
		}
	}

	// Per-octet wildcards and ranges
	return parseOctets(cleaned, entry)
}

// isLabelEntry reports whether an entry is a heading rather than an
// address: IPv4/IPv6 section labels or text with no digits at all.
func isLabelEntry(entry string) bool {
	upper := strings.ToUpper(strings.TrimSpace(entry))
	if strings.HasPrefix(upper, "IPV4") || strings.HasPrefix(upper, "IPV6") {
		return true
	}

	return !strings.ContainsAny(entry, "0123456789")
}

// cleanEntry strips the decoration spreadsheet edits leave behind:
// spaces inside the entry, stray punctuation, and non-ASCII dashes.
func cleanEntry(entry string) string {
	entry = dashReplacer.Replace(strings.TrimSpace(entry))

	var b strings.Builder

	for _, r := range entry {
		switch {
		case r >= '0' && r <= '9',
			r >= 'a' && r <= 'f',
			r >= 'A' && r <= 'F',
			r == '.', r == '*', r == '-', r == '/', r == ':':
			b.WriteRune(r)
		}
	}

	return b.String()
}

func parseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, err
	}

	return addr.Unmap(), nil
}

func parseCIDR(cleaned, entry string) (models.IPRange, error) {
	prefix, err := netip.ParsePrefix(cleaned)
	if err != nil {
		return models.IPRange{}, fmt.Errorf("%w: %q", ErrInvalidIPNotation, entry)
	}

	prefix = prefix.Masked()

	return models.IPRange{Start: prefix.Addr(), End: lastAddr(prefix)}, nil
}

// lastAddr returns the highest address of the prefix.
func lastAddr(prefix netip.Prefix) netip.Addr {
	if prefix.Addr().Is4() {
		addr := prefix.Addr().As4()
		fillHostBits(addr[:], prefix.Bits())

		return netip.AddrFrom4(addr)
	}

	addr := prefix.Addr().As16()
	fillHostBits(addr[:], prefix.Bits())

	return netip.AddrFrom16(addr)
}

// fillHostBits sets every bit after the first bits network bits.
func fillHostBits(addr []byte, bits int) {
	for i := range addr {
		hostBits := 8*(i+1) - bits
		if hostBits <= 0 {
			continue
		}

		if hostBits > 8 {
			hostBits = 8
		}

		addr[i] |= byte(0xFF >> (8 - hostBits))
	}
}

// parseOctets parses the per-octet notation: each dot-separated part is
// a number, a "lo-hi" range, or the "*" wildcard.
func parseOctets(cleaned, entry string) (models.IPRange, error) {
	parts := strings.Split(cleaned, ".")
	if len(parts) != 4 {
		return models.IPRange{}, fmt.Errorf("%w: %q", ErrInvalidIPNotation, entry)
	}

	var start, end [4]byte

	for i, part := range parts {
		lo, hi, err := parseOctetSpec(part)
		if err != nil {
			return models.IPRange{}, fmt.Errorf("%w: %q: octet %d", ErrInvalidIPNotation, entry, i+1)
		}

		start[i], end[i] = lo, hi
	}

	r := models.IPRange{Start: netip.AddrFrom4(start), End: netip.AddrFrom4(end)}
	if r.End.Less(r.Start) {
		return models.IPRange{}, fmt.Errorf("%w: range end before start in %q", ErrInvalidIPNotation, entry)
	}

	return r, nil
}

func parseOctetSpec(spec string) (byte, byte, error) {
	if spec == "*" {
		return 0, 255, nil
	}

	if i := strings.IndexByte(spec, '-'); i >= 0 {
		lo, err := parseOctet(spec[:i])
		if err != nil {
			return 0, 0, err
		}

		hi, err := parseOctet(spec[i+1:])
		if err != nil {
			return 0, 0, err
		}

		return lo, hi, nil
	}

	v, err := parseOctet(spec)

	return v, v, err
}

func parseOctet(s string) (byte, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}

	if n < 0 || n > 255 {
		return 0, fmt.Errorf("octet %d out of range", n)
	}

	return byte(n), nil
}
