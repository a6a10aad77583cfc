package observability

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ResourceAttributes returns the string attributes of the resource a run
// with cfg would export under.
func ResourceAttributes(cfg Config) (map[string]string, error) {
	res, err := buildResource(cfg)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]string, res.Len())
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}

	return attrs, nil
}

// SampledRoots asks the sampler chosen for cfg about n parentless spans with
// distinct high-entropy trace ids and returns how many it keeps.
func SampledRoots(cfg Config, n int) int {
	sampler := selectSampler(cfg)
	kept := 0

	for i := range n {
		var id trace.TraceID

		id[0] = 1
		id[8] = byte(i%255) + 1

		res := sampler.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       id,
			Name:          "defectscope.run",
			Kind:          trace.SpanKindInternal,
		})
		if res.Decision == sdktrace.RecordAndSample {
			kept++
		}
	}

	return kept
}
