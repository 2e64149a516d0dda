// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics counts dedup and reflink outcomes, grounded on
// gcsfuse's common/otel_metrics.go meter/counter-with-attribute-set
// idiom, reduced to the one counter-set this module needs.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReasonKey annotates why a pair was skipped or rejected.
const ReasonKey = "reason"

// Handle is the counter surface the driver and reflink path report
// through. A no-op implementation (New) is always safe to use;
// NewOTelHandle wires a real meter.
type Handle interface {
	DedupAccepted(ctx context.Context)
	DedupSkipped(ctx context.Context, reason string)
	DedupRejected(ctx context.Context, reason string)
	ReflinkAccepted(ctx context.Context)
	ReflinkRejected(ctx context.Context, reason string)
}

type noopHandle struct{}

// New returns a Handle that discards every measurement, the default until
// a caller wires NewOTelHandle (grounded on common/noop_metrics.go).
func New() Handle { return noopHandle{} }

func (noopHandle) DedupAccepted(context.Context)           {}
func (noopHandle) DedupSkipped(context.Context, string)    {}
func (noopHandle) DedupRejected(context.Context, string)   {}
func (noopHandle) ReflinkAccepted(context.Context)         {}
func (noopHandle) ReflinkRejected(context.Context, string) {}

var reasonAttributeSet sync.Map

func getReasonAttributeSet(reason string) metric.MeasurementOption {
	if v, ok := reasonAttributeSet.Load(reason); ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(attribute.String(ReasonKey, reason)))
	v, _ := reasonAttributeSet.LoadOrStore(reason, opt)
	return v.(metric.MeasurementOption)
}

// otelHandle is the real Handle, backed by otel counters.
type otelHandle struct {
	dedupAccepted   metric.Int64Counter
	dedupSkipped    metric.Int64Counter
	dedupRejected   metric.Int64Counter
	reflinkAccepted metric.Int64Counter
	reflinkRejected metric.Int64Counter
}

var dedupMeter = otel.Meter("dedup")

// NewOTelHandle constructs a Handle backed by the global otel meter
// provider. Callers install a provider (e.g. via
// go.opentelemetry.io/otel/sdk/metric) before calling this, the way
// gcsfuse's cmd/root.go wires telemetry at startup.
func NewOTelHandle() (Handle, error) {
	dedupAccepted, err1 := dedupMeter.Int64Counter("dedup/accepted_count",
		metric.WithDescription("The cumulative number of dedup pairs committed."))
	dedupSkipped, err2 := dedupMeter.Int64Counter("dedup/skipped_count",
		metric.WithDescription("The cumulative number of dedup pairs skipped (per-pair error, driver continues)."))
	dedupRejected, err3 := dedupMeter.Int64Counter("dedup/rejected_count",
		metric.WithDescription("The cumulative number of dedup inputs rejected outright (Unsupported)."))
	reflinkAccepted, err4 := dedupMeter.Int64Counter("reflink/accepted_count",
		metric.WithDescription("The cumulative number of whole-file reflinks committed."))
	reflinkRejected, err5 := dedupMeter.Int64Counter("reflink/rejected_count",
		metric.WithDescription("The cumulative number of whole-file reflinks rejected."))

	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return nil, err
		}
	}

	return &otelHandle{
		dedupAccepted:   dedupAccepted,
		dedupSkipped:    dedupSkipped,
		dedupRejected:   dedupRejected,
		reflinkAccepted: reflinkAccepted,
		reflinkRejected: reflinkRejected,
	}, nil
}

func (h *otelHandle) DedupAccepted(ctx context.Context) {
	h.dedupAccepted.Add(ctx, 1)
}

func (h *otelHandle) DedupSkipped(ctx context.Context, reason string) {
	h.dedupSkipped.Add(ctx, 1, getReasonAttributeSet(reason))
}

func (h *otelHandle) DedupRejected(ctx context.Context, reason string) {
	h.dedupRejected.Add(ctx, 1, getReasonAttributeSet(reason))
}

func (h *otelHandle) ReflinkAccepted(ctx context.Context) {
	h.reflinkAccepted.Add(ctx, 1)
}

func (h *otelHandle) ReflinkRejected(ctx context.Context, reason string) {
	h.reflinkRejected.Add(ctx, 1, getReasonAttributeSet(reason))
}

var _ Handle = noopHandle{}
var _ Handle = (*otelHandle)(nil)
