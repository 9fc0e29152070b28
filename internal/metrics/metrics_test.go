package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUpstream(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		label      string
	}{
		{"http status", 200, nil, "200"},
		{"upstream failure status", 503, errors.New("boom"), "503"},
		{"transport error", 0, errors.New("refused"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := UpstreamRequestsTotal.WithLabelValues("test_upstream", tt.label)
			before := testutil.ToFloat64(counter)

			RecordUpstream("test_upstream", tt.statusCode, 10*time.Millisecond, tt.err)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestRecordNarrative(t *testing.T) {
	counter := NarrativesTotal.WithLabelValues(NarrativeStale)
	before := testutil.ToFloat64(counter)

	RecordNarrative(NarrativeStale)
	RecordNarrative(NarrativeStale)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestAppInfo(t *testing.T) {
	assert.Equal(t, 1.0, testutil.ToFloat64(AppInfo))
	assert.Greater(t, testutil.ToFloat64(AppStartTime), 0.0)
}
