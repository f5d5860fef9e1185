package metrics

import "time"

// NFSMetrics observes RPC-level traffic across the NFS, Mount, and
// Portmap programs this server answers. Pass nil to disable collection.
type NFSMetrics interface {
	// RecordRequest records one completed RPC call.
	RecordRequest(program string, procedure string, duration time.Duration, status string)

	// RecordBytesTransferred records payload bytes moved by a READ or WRITE.
	RecordBytesTransferred(direction string, bytes uint64)

	// SetActiveConnections updates the current TCP connection gauge.
	SetActiveConnections(count int)

	// RecordConnectionAccepted increments the accepted-connections counter.
	RecordConnectionAccepted(transport string)

	// RecordConnectionClosed increments the closed-connections counter.
	RecordConnectionClosed(transport string)

	// RecordCacheHit records a content or attribute cache hit.
	RecordCacheHit(cacheType string)

	// RecordCacheMiss records a content or attribute cache miss.
	RecordCacheMiss(cacheType string)

	// RecordQuotaRejection records a WRITE rejected by the quota table.
	RecordQuotaRejection()
}
