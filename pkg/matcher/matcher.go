// Package matcher finds issue-tracker ticket references in revision messages.
package matcher

import (
	"fmt"
	"regexp"

	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

// Matcher recognises "<PREFIX>-<ID>" as a whole word, case-insensitively.
// It is not safe for concurrent use.
type Matcher struct {
	prefix   string
	patterns map[int]*regexp.Regexp
}

// New creates a matcher for the project key prefix (e.g. "OPENJPA").
func New(prefix string) *Matcher {
	return &Matcher{prefix: prefix, patterns: map[int]*regexp.Regexp{}}
}

// Prefix returns the project key prefix.
func (m *Matcher) Prefix() string {
	return m.prefix
}

func (m *Matcher) pattern(id int) *regexp.Regexp {
	re, ok := m.patterns[id]
	if !ok {
		re = regexp.MustCompile(fmt.Sprintf(`(?i)\b%s-%d\b`, regexp.QuoteMeta(m.prefix), id))
		m.patterns[id] = re
	}

	return re
}

// References reports whether message mentions the ticket.
func (m *Matcher) References(message string, id int) bool {
	return m.pattern(id).MatchString(message)
}

// MatchTickets returns the tracked ids mentioned in message, in the order of
// ids, each at most once.
func (m *Matcher) MatchTickets(message string, ids []int) []int {
	var (
		out  []int
		seen = map[int]struct{}{}
	)

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}

		if m.References(message, id) {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	return out
}

// MatchResolved returns the resolved defects whose ticket is mentioned in
// message, preserving the order of defects.
func (m *Matcher) MatchResolved(message string, defects []ticket.ResolvedDefect) []ticket.ResolvedDefect {
	var (
		out  []ticket.ResolvedDefect
		seen = map[int]struct{}{}
	)

	for _, d := range defects {
		if _, dup := seen[d.TicketID]; dup {
			continue
		}

		if m.References(message, d.TicketID) {
			seen[d.TicketID] = struct{}{}
			out = append(out, d)
		}
	}

	return out
}

// Flatten renders matched defects in the legacy flat form [IV, FV, ID, ...].
func Flatten(defects []ticket.ResolvedDefect) []int {
	out := make([]int, 0, len(defects)*3)

	for _, d := range defects {
		out = append(out, d.IV, d.FV, d.TicketID)
	}

	return out
}
