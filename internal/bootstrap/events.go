package bootstrap

import (
	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
)

// RunEventPrefix prefixes the type of every run event on the event stream.
const RunEventPrefix = "run:"

// runEventData is the payload of a run event.
type runEventData struct {
	*generator.Progress
	Error string `json:"error,omitempty"`
}

// runEvents publishes generator lifecycle events to the event broker.
type runEvents struct {
	broker *sse.Broker
	log    infralogger.Logger
}

func (r runEvents) Observe(event generator.RunEvent, progress *generator.Progress, err error) {
	data := runEventData{Progress: progress}
	if err != nil {
		data.Error = err.Error()
	}

	if publishErr := r.broker.Publish(sse.Event{Type: RunEventPrefix + string(event), Data: data}); publishErr != nil {
		r.log.Debug("Run event dropped",
			infralogger.String("event", string(event)),
			infralogger.Error(publishErr),
		)
	}
}
