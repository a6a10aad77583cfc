package ticket

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/defectscope/pkg/release"
)

// Classifier derives OV, FV and IV for tickets against a release timeline.
type Classifier struct {
	timeline   *release.Timeline
	proportion *Proportion
}

// NewClassifier creates a classifier recording samples into proportion.
func NewClassifier(timeline *release.Timeline, proportion *Proportion) *Classifier {
	if proportion == nil {
		proportion = NewProportion()
	}

	return &Classifier{timeline: timeline, proportion: proportion}
}

// Proportion returns the estimator fed by this classifier.
func (c *Classifier) Proportion() *Proportion {
	return c.proportion
}

// Classify resolves OV and FV from the ticket dates and IV from the earliest
// reported affected release dated before the ticket was opened. A proportion
// sample is recorded when the reported IV yields a positive ratio. Tickets
// without a usable reported IV come back deferred.
func (c *Classifier) Classify(t Ticket) (Classification, error) {
	err := t.validate()
	if err != nil {
		return Classification{}, err
	}

	out := Classification{
		TicketID: t.ID,
		OV:       c.timeline.ResolveIndex(t.Created),
		FV:       c.timeline.ResolveIndex(t.Resolved),
	}

	rel, ok := c.timeline.FirstNamedBefore(t.AffectedReleases, t.Created)
	if !ok {
		return out, nil
	}

	out.IV = KnownIV(rel.Index)
	c.proportion.Record(t.ID, out.IV.Index, out.OV, out.FV)

	return out, nil
}

// Estimate fills IV of a deferred ticket from the proportion samples recorded
// so far. Deferred tickets whose FV equals OV carry no range and are skipped.
func (c *Classifier) Estimate(d Deferred) (Classification, bool) {
	if d.FV == d.OV {
		return Classification{}, false
	}

	return Classification{
		TicketID:  d.TicketID,
		OV:        d.OV,
		FV:        d.FV,
		IV:        c.proportion.EstimateIV(d),
		Estimated: true,
	}, true
}

// Index is the result of classifying a ticket set.
type Index struct {
	// Defects are the resolved defect ranges ordered by ticket id.
	Defects []ResolvedDefect
	// Tracked holds the ids of every ticket that passed validation, ordered ascending.
	Tracked []int
	// Classifications holds the final classification of each valid ticket by id.
	Classifications map[int]Classification
	// Samples are the proportion samples recorded from reported releases.
	Samples []ProportionSample
	// Deferred counts tickets that needed a proportion estimate.
	Deferred int
}

// Defect looks up the resolved range of a ticket.
func (idx *Index) Defect(ticketID int) (ResolvedDefect, bool) {
	pos := sort.Search(len(idx.Defects), func(i int) bool {
		return idx.Defects[i].TicketID >= ticketID
	})

	if pos < len(idx.Defects) && idx.Defects[pos].TicketID == ticketID {
		return idx.Defects[pos], true
	}

	return ResolvedDefect{}, false
}

// Resolve classifies every ticket, then estimates IV for deferred tickets in
// ascending id order. Tickets that fail validation are excluded from the
// result; their errors are joined into the returned error while the index
// still carries every other ticket.
func Resolve(timeline *release.Timeline, tickets []Ticket) (*Index, error) {
	classifier := NewClassifier(timeline, nil)

	idx := &Index{Classifications: make(map[int]Classification, len(tickets))}

	var (
		errs     []error
		deferred []Deferred
	)

	seen := make(map[int]struct{}, len(tickets))

	for _, t := range tickets {
		if _, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("ticket %d: %w", t.ID, ErrDuplicate))

			continue
		}

		seen[t.ID] = struct{}{}

		cls, err := classifier.Classify(t)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		idx.Tracked = append(idx.Tracked, t.ID)
		idx.Classifications[t.ID] = cls

		if cls.IsDeferred() {
			deferred = append(deferred, cls.Deferred())

			continue
		}

		if defect, ok := cls.Defect(); ok {
			idx.Defects = append(idx.Defects, defect)
		}
	}

	sort.Slice(deferred, func(i, j int) bool { return deferred[i].TicketID < deferred[j].TicketID })

	idx.Deferred = len(deferred)

	for _, d := range deferred {
		cls, ok := classifier.Estimate(d)
		if !ok {
			continue
		}

		idx.Classifications[d.TicketID] = cls

		if defect, found := cls.Defect(); found {
			idx.Defects = append(idx.Defects, defect)
		}
	}

	sort.Slice(idx.Defects, func(i, j int) bool { return idx.Defects[i].TicketID < idx.Defects[j].TicketID })
	sort.Ints(idx.Tracked)

	idx.Samples = classifier.Proportion().Samples()

	return idx, errors.Join(errs...)
}
