package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewNFSMetricsNilWhenDisabled(t *testing.T) {
	enabled.Store(false)
	require.Nil(t, NewNFSMetrics())
}

func TestNewNFSMetricsRecordsWhenEnabled(t *testing.T) {
	InitRegistry()
	m := NewNFSMetrics()
	require.NotNil(t, m)

	m.RecordRequest("nfs", "WRITE", 5*time.Millisecond, "NFS3_OK")
	m.RecordBytesTransferred("write", 4096)
	m.SetActiveConnections(3)
	m.RecordConnectionAccepted("tcp")
	m.RecordConnectionClosed("tcp")
	m.RecordCacheHit("attr")
	m.RecordCacheMiss("content")
	m.RecordQuotaRejection()
}

func TestNilReceiverMethodsAreNoops(t *testing.T) {
	var m *prometheusMetrics
	m.RecordRequest("nfs", "READ", time.Second, "NFS3_OK")
	m.RecordBytesTransferred("read", 1)
	m.SetActiveConnections(1)
	m.RecordConnectionAccepted("udp")
	m.RecordConnectionClosed("udp")
	m.RecordCacheHit("attr")
	m.RecordCacheMiss("attr")
	m.RecordQuotaRejection()
}
