package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/infra/i18n"
	"edtech-enrollment/internal/infra/logging"
)

var _ adapter.Notifier = (*LogNotifier)(nil)

// LogNotifier writes alerts to the application log. It is always enabled so that
// deployments without Telegram still get a record of billing changes.
type LogNotifier struct {
	log *zerolog.Logger
	tr  *i18n.Translator
	dev bool
}

func NewLogNotifier(logger *zerolog.Logger, tr *i18n.Translator, dev bool) *LogNotifier {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	compLog := logger.With().Str("component", "LogNotifier").Logger()
	return &LogNotifier{log: &compLog, tr: tr, dev: dev}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(ctx context.Context, n adapter.Notification) error {
	l.log.Info().
		Str("kind", string(n.Kind)).
		Str("key", n.Key).
		Str("enrollment_ref", n.EnrollmentRef).
		Str("email", logging.Redact(n.Email, l.dev)).
		Int64("amount", n.Amount).
		Str("currency", n.Currency).
		Msg(firstLine(Render(l.tr, n)))
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
