package observability

import (
	"os"
	"testing"

	testlogger "github.com/seqledger/seqledger/internal/testutils/logger"
	"github.com/seqledger/seqledger/observability"
)

/*
NOP creates an observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create
any logs, traces or metrics.
*/
func NOP() *observability.Observability {
	return observability.NOPObservability()
}

/*
Default creates an observability implementation for test t. The logger
sends its output to the test log; trace and metrics exporters are off
unless the SL_TEST_TRACER / SL_TEST_METRICS environment variables name
one (see observability.New for supported values).
*/
func Default(t *testing.T) *observability.Observability {
	obs, err := observability.New(os.Getenv("SL_TEST_METRICS"), os.Getenv("SL_TEST_TRACER"), testlogger.New(t))
	if err != nil {
		t.Fatalf("creating observability: %v", err)
	}
	t.Cleanup(func() {
		if err := obs.Shutdown(); err != nil {
			t.Logf("shutting down observability: %v", err)
		}
	})
	return obs
}
