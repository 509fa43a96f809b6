package alert

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notifier is the outbound alert sink. The pipeline only raises the
// signal; formatting and delivery belong to whatever implements this.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string, fields map[string]interface{})
}

// LogNotifier writes alerts to the structured log. It is the default sink
// when no external alerting is wired up.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, severity Severity, message string, fields map[string]interface{}) {
	event := log.Warn()
	if severity == SeverityCritical {
		event = log.Error()
	}
	event.Str("severity", string(severity)).Fields(fields).Msg(message)
}
