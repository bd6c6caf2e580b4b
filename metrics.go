package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caching-balancer/lru"
)

// statsSource is the part of a cache the collector reads.
type statsSource interface {
	Stats() lru.Stats
	Len() int
	Cap() int
}

// cacheCollector exports the response cache counters to Prometheus.
type cacheCollector struct {
	cache statsSource

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	entries   *prometheus.Desc
	capacity  *prometheus.Desc
}

func newCacheCollector(namespace string, cache statsSource) *cacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", name),
			help, nil, nil,
		)
	}

	return &cacheCollector{
		cache:     cache,
		hits:      desc("hits_total", "Cache lookups that found a response."),
		misses:    desc("misses_total", "Cache lookups that found nothing."),
		evictions: desc("evictions_total", "Responses evicted to make room."),
		entries:   desc("entries", "Responses currently cached."),
		capacity:  desc("capacity", "Maximum number of cached responses."),
	}
}

// Describe implements prometheus.Collector.
func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.entries
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.cache.Stats()

	ch <- prometheus.MustNewConstMetric(
		c.hits, prometheus.CounterValue, float64(stats.Hits),
	)
	ch <- prometheus.MustNewConstMetric(
		c.misses, prometheus.CounterValue, float64(stats.Misses),
	)
	ch <- prometheus.MustNewConstMetric(
		c.evictions, prometheus.CounterValue, float64(stats.Evictions),
	)
	ch <- prometheus.MustNewConstMetric(
		c.entries, prometheus.GaugeValue, float64(c.cache.Len()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.capacity, prometheus.GaugeValue, float64(c.cache.Cap()),
	)
}

// metricsHandler returns an HTTP handler serving everything in reg.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
