package observability

import (
	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/core"
)

// LogObserver writes pipeline events to a logger. Routine cache and admission
// decisions log at debug; anything that degrades a result logs at warn.
type LogObserver struct {
	Logger Logger
}

// NewLogObserver returns an observer writing to logger. A nil logger yields an
// observer that discards events.
func NewLogObserver(logger Logger) *LogObserver {
	return &LogObserver{Logger: logger}
}

// Observe implements core.Observer.
func (o *LogObserver) Observe(e core.Event) {
	if o == nil || o.Logger == nil {
		return
	}

	fields := eventFields(e)
	switch e.Kind {
	case core.EventCacheHit, core.EventCacheMiss, core.EventAdmitted:
		o.Logger.Debug("pagespeed "+string(e.Kind), fields...)
	case core.EventUpstream:
		if e.Err != nil {
			o.Logger.Warn("pagespeed upstream failed", fields...)
			return
		}
		o.Logger.Debug("pagespeed upstream", fields...)
	case core.EventDenied:
		o.Logger.Info("pagespeed request denied", fields...)
	case core.EventCredentialMissing:
		o.Logger.Info("pagespeed api key not configured", fields...)
	case core.EventBackoff:
		o.Logger.Warn("pagespeed backoff active", fields...)
	case core.EventFallback:
		o.Logger.Warn("using fallback estimate", fields...)
	case core.EventPersistFailed:
		o.Logger.Warn("failed to persist limiter state", fields...)
	default:
		o.Logger.Debug("pagespeed event", fields...)
	}
}

func eventFields(e core.Event) []zap.Field {
	fields := []zap.Field{zap.String("event", string(e.Kind))}
	if e.Target != "" {
		fields = append(fields, zap.String("url", e.Target))
	}
	if e.Variant != "" {
		fields = append(fields, zap.String("strategy", string(e.Variant)))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if e.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", e.StatusCode))
	}
	if e.Wait > 0 {
		fields = append(fields, zap.Duration("wait", e.Wait))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("duration", e.Duration))
	}
	if e.RequestsUsed > 0 {
		fields = append(fields, zap.Int("count", e.RequestsUsed))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	return fields
}
