// Package matcher decides whether log entries belong to an institution.
package matcher

import (
	"net/netip"

	"usagestats/internal/models"
)

// Matcher answers membership questions for one institution's address
// space. It is read-only after construction and safe for concurrent use.
type Matcher struct {
	inst    *models.Institution
	proxies map[netip.Addr]struct{}
}

// New builds a matcher for the institution.
func New(inst *models.Institution) *Matcher {
	proxies := make(map[netip.Addr]struct{}, len(inst.Proxies))

	for _, p := range inst.Proxies {
		proxies[p.Unmap()] = struct{}{}
	}

	return &Matcher{
		inst:    inst,
		proxies: proxies,
	}
}

// MatchAddr reports whether addr belongs to the institution: inside any
// of its ranges, bounds included, or equal to one of its proxy
// addresses. Proxy membership stands alone; the proxy need not fall in
// any range.
func (m *Matcher) MatchAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}

	addr = addr.Unmap()

	if _, ok := m.proxies[addr]; ok {
		return true
	}

	for _, r := range m.inst.Ranges {
		if r.Contains(addr) {
			return true
		}
	}

	return false
}

// MatchEntry reports whether the entry's client address belongs to the
// institution. Entries without a valid address never match.
func (m *Matcher) MatchEntry(e models.LogEntry) bool {
	return m.MatchAddr(e.ClientIP)
}

// Match filters entries to those belonging to the institution.
func Match(entries []models.LogEntry, inst *models.Institution) []models.LogEntry {
	m := New(inst)

	var matched []models.LogEntry

	for _, e := range entries {
		if m.MatchEntry(e) {
			matched = append(matched, e)
		}
	}

	return matched
}
