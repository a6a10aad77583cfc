package ticket

import (
	"math"
	"sort"
)

// ProportionSample is the observed ratio (FV-IV)/(FV-OV) of a ticket whose IV
// came from its reported affected releases.
type ProportionSample struct {
	TicketID int
	Ratio    float64
}

// Proportion collects samples from tickets with reported affected releases and
// estimates IV for tickets without them.
type Proportion struct {
	samples []ProportionSample
}

// NewProportion returns an empty estimator.
func NewProportion() *Proportion {
	return &Proportion{}
}

// Ratio computes (FV-IV)/(FV-OV). It reports false when the inputs are
// degenerate: FV equal to OV or IV, or FV before IV.
func Ratio(iv, ov, fv int) (float64, bool) {
	if fv == ov || fv == iv || fv < iv {
		return 0, false
	}

	return float64(fv-iv) / float64(fv-ov), true
}

// Record stores a sample for the ticket when the ratio is defined and positive.
func (p *Proportion) Record(ticketID, iv, ov, fv int) (ProportionSample, bool) {
	ratio, ok := Ratio(iv, ov, fv)
	if !ok || ratio <= 0 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return ProportionSample{}, false
	}

	sample := ProportionSample{TicketID: ticketID, Ratio: ratio}

	pos := sort.Search(len(p.samples), func(i int) bool {
		return p.samples[i].TicketID >= ticketID
	})

	p.samples = append(p.samples, ProportionSample{})
	copy(p.samples[pos+1:], p.samples[pos:])
	p.samples[pos] = sample

	return sample, true
}

// Samples returns the recorded samples ordered by ticket id.
func (p *Proportion) Samples() []ProportionSample {
	out := make([]ProportionSample, len(p.samples))
	copy(out, p.samples)

	return out
}

// LegacyProportionIncrement is the historical "proportion increment" average:
// the sample count divided by the sum of ratios. It is not an arithmetic mean.
func LegacyProportionIncrement(count int, sum float64) float64 {
	if count == 0 || sum == 0 {
		return 0
	}

	return float64(count) / sum
}

// Average returns the legacy average over samples from tickets with an id
// strictly lower than ticketID, or 0 when there are none.
func (p *Proportion) Average(ticketID int) float64 {
	count := 0
	sum := 0.0

	for _, s := range p.samples {
		if s.TicketID >= ticketID {
			break
		}

		count++
		sum += s.Ratio
	}

	return LegacyProportionIncrement(count, sum)
}

// EstimateIV estimates the injected version of a deferred ticket:
// IV = FV - (FV-OV)*round(avg), clamped to 1, or OV when the rounded average
// is not positive.
func (p *Proportion) EstimateIV(d Deferred) InjectedVersion {
	rounded := int(math.Round(p.Average(d.TicketID)))

	if rounded <= 0 {
		return KnownIV(d.OV)
	}

	iv := d.FV - (d.FV-d.OV)*rounded
	if iv < 1 {
		iv = 1
	}

	return KnownIV(iv)
}
