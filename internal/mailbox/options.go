package mailbox

import (
	"time"

	"github.com/biobot-lab/biobot/internal/event"
	"github.com/biobot-lab/biobot/internal/logging"
)

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithBus attaches an event bus. Successful writes publish a
// MessageWrittenEvent; identical resends also publish a MessageDriftEvent.
func WithBus(bus *event.Bus) Option {
	return func(m *Mailbox) {
		m.bus = bus
	}
}

// WithLogger sets the logger used for drift warnings.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Mailbox) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPollInterval sets how often Wait re-checks the store. Zero or negative
// values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(m *Mailbox) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}
