// Package logger provides a stats collector that writes metrics to zap.
package logger

import (
	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/stats"
)

// Collector implements stats.Collector by logging each update at debug level.
type Collector struct {
	logger *zap.Logger
}

var _ stats.Collector = (*Collector)(nil)

// New creates a logging collector. A nil logger discards everything.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger.Named("stats")}
}

// IncCounter logs a counter increment.
func (c *Collector) IncCounter(name string, delta int64) {
	c.logger.Debug("counter", zap.String("metric", name), zap.Int64("delta", delta))
}

// SetGauge logs a gauge value.
func (c *Collector) SetGauge(name string, value int64) {
	c.logger.Debug("gauge", zap.String("metric", name), zap.Int64("value", value))
}

// ObserveHistogram logs a histogram observation.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.logger.Debug("histogram", zap.String("metric", name), zap.Float64("value", value))
}
