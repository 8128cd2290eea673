package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes account business events as structured zerolog entries tagged audit=true.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record matches the account service audit hook. Events with result=error are
// written at warn level, everything else at info.
func (l *Logger) Record(action string, fields map[string]string) {
	evt := l.log.Info()
	if fields["result"] == "error" {
		evt = l.log.Warn()
	}
	evt = evt.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		evt = evt.Str(k, v)
	}
	evt.Msg("audit " + action)
}

// maskEmail keeps the first two characters of the local part and the domain.
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email[:2] + "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
