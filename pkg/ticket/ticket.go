// Package ticket classifies issue-tracker defects into release ranges: the
// injected version (IV) through the fixed version (FV), estimating IV with the
// proportion method when the tracker reports no usable affected release.
package ticket

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrMalformedDate = errors.New("ticket has a missing or malformed date")
	ErrDuplicate     = errors.New("duplicate ticket id")
	ErrInvalidID     = errors.New("ticket id must be positive")
)

// Ticket is a resolved defect report as retrieved from the issue tracker.
type Ticket struct {
	ID               int
	Key              string
	Created          time.Time
	Resolved         time.Time
	AffectedReleases []string
}

func (t Ticket) validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, t.ID)
	}

	if t.Created.IsZero() || t.Resolved.IsZero() {
		return fmt.Errorf("ticket %d: %w", t.ID, ErrMalformedDate)
	}

	return nil
}

// InjectedVersion is an optional release index. The zero value means unknown.
type InjectedVersion struct {
	Index int
	Known bool
}

// KnownIV wraps a release index as a known injected version.
func KnownIV(index int) InjectedVersion {
	return InjectedVersion{Index: index, Known: true}
}

// String implements fmt.Stringer.
func (iv InjectedVersion) String() string {
	if !iv.Known {
		return "unknown"
	}

	return fmt.Sprintf("%d", iv.Index)
}

// ResolvedDefect is a ticket whose defect lived in releases [IV, FV).
// IV < FV always holds.
type ResolvedDefect struct {
	TicketID int
	IV       int
	FV       int
}

// Contains reports whether the release index lies in [IV, FV).
func (d ResolvedDefect) Contains(index int) bool {
	return index >= d.IV && index < d.FV
}

// Deferred is a ticket without a usable affected-release list, waiting for a
// proportion estimate of its IV.
type Deferred struct {
	TicketID int
	OV       int
	FV       int
}

// Classification is the outcome of classifying one ticket.
type Classification struct {
	TicketID int
	OV       int
	FV       int
	IV       InjectedVersion
	// Estimated is set when IV came from the proportion estimator.
	Estimated bool
}

// Defect returns the resolved defect range when IV is known and strictly before FV.
func (c Classification) Defect() (ResolvedDefect, bool) {
	return newDefect(c.TicketID, c.IV, c.FV)
}

// IsDeferred reports whether IV could not be derived from reported releases.
func (c Classification) IsDeferred() bool {
	return !c.IV.Known
}

// Deferred returns the ticket as a deferred entry.
func (c Classification) Deferred() Deferred {
	return Deferred{TicketID: c.TicketID, OV: c.OV, FV: c.FV}
}

func newDefect(id int, iv InjectedVersion, fv int) (ResolvedDefect, bool) {
	if !iv.Known || iv.Index == fv || iv.Index > fv {
		return ResolvedDefect{}, false
	}

	return ResolvedDefect{TicketID: id, IV: iv.Index, FV: fv}, true
}
