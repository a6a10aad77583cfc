package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/defectscope/pkg/matcher"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

func TestMatchTickets(t *testing.T) {
	t.Parallel()

	m := matcher.New("OPENJPA")

	tests := []struct {
		name    string
		message string
		want    []int
	}{
		{"exact", "OPENJPA-12 fix NPE", []int{12}},
		{"case insensitive", "openjpa-12: fix", []int{12}},
		{"whole word only", "OPENJPA-123 refactor", nil},
		{"prefix must be whole word", "XOPENJPA-12", nil},
		{"several", "OPENJPA-7, OPENJPA-12 and OPENJPA-12 again", []int{7, 12}},
		{"none", "cleanup", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, matcher.New("OPENJPA").MatchTickets(tt.message, []int{7, 12, 12}))
		})
	}

	assert.Equal(t, "OPENJPA", m.Prefix())
}

func TestMatchResolvedKeepsOrder(t *testing.T) {
	t.Parallel()

	defects := []ticket.ResolvedDefect{
		{TicketID: 3, IV: 1, FV: 4},
		{TicketID: 9, IV: 2, FV: 3},
		{TicketID: 5, IV: 1, FV: 2},
	}

	got := matcher.New("BOOKKEEPER").MatchResolved("BOOKKEEPER-5 BOOKKEEPER-3", defects)

	assert.Equal(t, []ticket.ResolvedDefect{
		{TicketID: 3, IV: 1, FV: 4},
		{TicketID: 5, IV: 1, FV: 2},
	}, got)
	assert.Equal(t, []int{1, 4, 3, 1, 2, 5}, matcher.Flatten(got))
}

func TestPrefixIsQuoted(t *testing.T) {
	t.Parallel()

	m := matcher.New("A.B")

	assert.True(t, m.References("fix A.B-1", 1))
	assert.False(t, m.References("fix AxB-1", 1))
}
