package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMirrorWrite(t *testing.T) {
	before := testutil.ToFloat64(MirrorWritesTotal.WithLabelValues("external", ResultSkipped))
	RecordMirrorWrite("external", ResultSkipped, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(MirrorWritesTotal.WithLabelValues("external", ResultSkipped)))
}

func TestRecordStoreOperation(t *testing.T) {
	ok := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_op", ResultSuccess))
	failed := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_op", ResultError))

	RecordStoreOperation("test_op", nil)
	RecordStoreOperation("test_op", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_op", ResultSuccess)))
	assert.Equal(t, failed+1, testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("test_op", ResultError)))
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("GET", "/health", "200", 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")))
}
