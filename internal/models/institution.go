package models

import "net/netip"

// SheetNameLimit is the longest institution identifier a workbook sheet
// name can hold.
const SheetNameLimit = 30

// IPRange is an inclusive IP address range.
type IPRange struct {
	Start netip.Addr `json:"start"`
	End   netip.Addr `json:"end"`
}

// Contains reports whether addr falls inside the range, bounds included.
func (r IPRange) Contains(addr netip.Addr) bool {
	return r.Start.Compare(addr) <= 0 && r.End.Compare(addr) >= 0
}

// String renders the range as "start-end", or the single address when
// both bounds coincide.
func (r IPRange) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return r.Start.String() + "-" + r.End.String()
}

// Institution represents one row of the institution IP table.
type Institution struct {
	Name         string       `json:"name"`
	Abbreviation string       `json:"abbreviation"`
	Ranges       []IPRange    `json:"ranges"`
	Proxies      []netip.Addr `json:"proxies"`
}

// SheetName returns the identifier used for the institution's workbook
// sheet: the full name when it fits the sheet-name limit, the
// abbreviation otherwise.
func (inst *Institution) SheetName() string {
	if len([]rune(inst.Name)) <= SheetNameLimit {
		return inst.Name
	}
	return inst.Abbreviation
}
