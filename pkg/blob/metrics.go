package blob

import (
	"github.com/paninifs/panini/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the blob package
type M struct {
	Volume struct {
		Blobs blobMetrics       `group:"blobs" description:"metrics about stored blobs"`
		IO    metrics.IOMetrics `group:"io" description:"metrics about blob IO operations"`
		Cache cacheUsage        `group:"cache" description:"metrics about the blob read cache"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the blob package"`
}

type blobMetrics struct {
	BlobsCount     *stats.Int64Measure `metric:"blobs" extraviews:"sum" tags:"kind,bucket" description:"number of blobs written"`
	DuplicateCount *stats.Int64Measure `metric:"duplicateBlobs" extraviews:"sum" tags:"kind,bucket" description:"number of puts resolved to an existing blob"`
	BlobSize       *stats.Int64Measure `metric:"blobsSize" unit:"sumbytes" tags:"kind,bucket" description:"cumulated size of written blobs"`
	Swept          *stats.Int64Measure `metric:"swept" extraviews:"sum" tags:"kind,bucket" description:"number of reclaimed blobs"`
}

func (*blobMetrics) tags(bucket string) map[string]string {
	return map[string]string{"kind": "blob", "bucket": bucket}
}

func (m *blobMetrics) IncBlob(bucket string, size int64) {
	metrics.Inc(m.BlobsCount, m.tags(bucket))
	metrics.Int64(m.BlobSize, size, m.tags(bucket))
}

func (m *blobMetrics) IncDuplicate(bucket string) {
	metrics.Inc(m.DuplicateCount, m.tags(bucket))
}

func (m *blobMetrics) IncSwept(bucket string) {
	metrics.Inc(m.Swept, m.tags(bucket))
}

type cacheUsage struct {
	CacheHits   *stats.Int64Measure `metric:"cacheHits" tags:"operation"`
	CacheMisses *stats.Int64Measure `metric:"cacheMisses" tags:"operation"`
}

func (u *cacheUsage) Hit(hit bool) {
	tags := map[string]string{"operation": "Get"}
	if hit {
		metrics.Inc(u.CacheHits, tags)
		return
	}
	metrics.Inc(u.CacheMisses, tags)
}
