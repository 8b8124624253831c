// Package logfilter streams raw access logs and keeps page-view lines.
package logfilter

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"usagestats/internal/config"
	"usagestats/internal/models"
)

// Filter errors.
var (
	ErrMissingInput    = errors.New("missing input file")
	ErrUnparseableLine = errors.New("unparseable log line")
)

// timeLayouts are the accepted forms of the bracketed timestamp field.
var timeLayouts = []string{
	"02/Jan/2006:15:04:05.000",
	"02/Jan/2006:15:04:05 -0700",
	"02/Jan/2006:15:04:05",
	"02/Jan/2006",
}

// Rules holds the retention rules applied to raw log lines.
type Rules struct {
	ViewMarker string
	Server     string
	Frontends  []config.FrontendConfig
	MinFields  int
}

// RulesFromConfig builds the retention rules from the logs section.
func RulesFromConfig(logs config.LogsConfig) Rules {
	return Rules{
		ViewMarker: logs.ViewMarker,
		Server:     logs.Server,
		Frontends:  logs.Frontends,
		MinFields:  logs.MinFields,
	}
}

// FrontendLabelFor resolves a braced request-path capture to its
// configured label. Rules without frontends label nothing.
func (r Rules) FrontendLabelFor(field string) string {
	if field == "" {
		return ""
	}

	for _, fe := range r.Frontends {
		if fe.Pattern == field {
			return fe.Label
		}
	}

	return ""
}

// Retain reports whether a parsed entry is a page view under the rules:
// the request target carries the view marker, the frontend capture is
// one of the configured frontends when any are configured, and the line
// names the configured server when one is set.
func (r Rules) Retain(e models.LogEntry) bool {
	if !strings.Contains(e.Path, r.ViewMarker) {
		return false
	}

	if len(r.Frontends) > 0 && e.Frontend == "" {
		return false
	}

	if r.Server != "" && !containsField(e.Raw, r.Server) {
		return false
	}

	return true
}

// ParseLine parses one raw access-log line. The only structural
// guarantees are a client address field, a bracketed timestamp, and a
// quoted request; everything else on the line is ignored.
func ParseLine(line string, rules Rules) (models.LogEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < rules.MinFields {
		return models.LogEntry{}, fmt.Errorf("%w: %d fields, need %d", ErrUnparseableLine, len(fields), rules.MinFields)
	}

	addr, ok := clientAddr(fields)
	if !ok {
		return models.LogEntry{}, fmt.Errorf("%w: no client address field", ErrUnparseableLine)
	}

	ts, ok := timestamp(line)
	if !ok {
		return models.LogEntry{}, fmt.Errorf("%w: no parseable timestamp field", ErrUnparseableLine)
	}

	request, ok := quoted(line)
	if !ok {
		return models.LogEntry{}, fmt.Errorf("%w: no quoted request field", ErrUnparseableLine)
	}

	return models.LogEntry{
		Timestamp: ts,
		ClientIP:  addr,
		Request:   request,
		Path:      requestPath(request),
		Frontend:  rules.FrontendLabelFor(frontendField(fields)),
		Raw:       line,
	}, nil
}

// clientAddr returns the first field parseable as an address or an
// address:port pair. Unbracketed IPv6 address:port pairs are ambiguous
// and resolve as a bare address.
func clientAddr(fields []string) (netip.Addr, bool) {
	for _, f := range fields {
		if addr, err := netip.ParseAddr(f); err == nil {
			return addr.Unmap(), true
		}

		if ap, err := netip.ParseAddrPort(f); err == nil {
			return ap.Addr().Unmap(), true
		}
	}

	return netip.Addr{}, false
}

// timestamp returns the first bracketed field parseable under the
// accepted layouts.
func timestamp(line string) (time.Time, bool) {
	rest := line

	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			return time.Time{}, false
		}

		length := strings.IndexByte(rest[open+1:], ']')
		if length < 0 {
			return time.Time{}, false
		}

		token := rest[open+1 : open+1+length]
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, token); err == nil {
				return ts, true
			}
		}

		rest = rest[open+1+length+1:]
	}
}

// quoted returns the first double-quoted field.
func quoted(line string) (string, bool) {
	open := strings.IndexByte(line, '"')
	if open < 0 {
		return "", false
	}

	length := strings.IndexByte(line[open+1:], '"')
	if length < 0 {
		return "", false
	}

	return line[open+1 : open+1+length], true
}

// requestPath extracts the request target from a "METHOD target proto"
// request. Requests without a method keep their full text.
func requestPath(request string) string {
	parts := strings.Fields(request)
	if len(parts) >= 2 {
		return parts[1]
	}

	return request
}

// frontendField returns the first braced {..} capture field.
func frontendField(fields []string) string {
	for _, f := range fields {
		if strings.HasPrefix(f, "{") && strings.HasSuffix(f, "}") {
			return f
		}
	}

	return ""
}

// containsField reports whether any whitespace field of line equals want.
func containsField(line, want string) bool {
	for _, f := range strings.Fields(line) {
		if f == want {
			return true
		}
	}

	return false
}
