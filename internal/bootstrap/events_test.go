//nolint:testpackage // tests the unexported run event adapter
package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
)

func TestRunEvents_Observe(t *testing.T) {
	t.Parallel()

	broker := sse.NewBroker(sse.Config{}, infralogger.NewNop())
	broker.Start(context.Background())
	defer broker.Stop()

	events, unsubscribe, err := broker.Subscribe(sse.TypePrefix(RunEventPrefix))
	require.NoError(t, err)
	defer unsubscribe()

	observer := runEvents{broker: broker, log: infralogger.NewNop()}
	observer.Observe(generator.RunFailed, &generator.Progress{RunID: "run-1"}, errors.New("flush failed"))

	select {
	case e := <-events:
		assert.Equal(t, "run:failed", e.Type)
		data, ok := e.Data.(runEventData)
		require.True(t, ok)
		assert.Equal(t, "run-1", data.RunID)
		assert.Equal(t, "flush failed", data.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run event")
	}
}
