// Package metrics records checkout and settlement outcomes.
package metrics

import "time"

// Collector is implemented by every metrics backend the services accept.
type Collector interface {
	RecordOperationDuration(operation string, d time.Duration)
	RecordOperationResult(operation, result string)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordError(operation, kind string)
	RecordCharge(feeType, rail string, grossMinorUnits int64)
	RecordSettlement(feeType, outcome string)
}

// NoopCollector discards everything.
type NoopCollector struct{}

func (n *NoopCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopCollector) RecordOperationResult(string, string)          {}
func (n *NoopCollector) RecordCacheHit(string)                         {}
func (n *NoopCollector) RecordCacheMiss(string)                        {}
func (n *NoopCollector) RecordError(string, string)                    {}
func (n *NoopCollector) RecordCharge(string, string, int64)            {}
func (n *NoopCollector) RecordSettlement(string, string)               {}
