package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "lootrota")
				So(manager.enabled, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(
				WithNamespace("guild"),
				WithSubsystem("raid"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every option should be applied", func() {
				So(manager.namespace, ShouldEqual, "guild")
				So(manager.subsystem, ShouldEqual, "raid")
				So(manager.metricPrefix, ShouldEqual, "test")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.enabled, ShouldBeFalse)
				So(manager.refreshInterval, ShouldEqual, 3*time.Second)
			})

			Convey("And collectors should be registered under the prefixed names", func() {
				manager.queueBuilds.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "guild_raid_test_queue_builds_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When options carry empty values", func() {
			manager := NewMetricsManager(
				WithNamespace(""),
				WithRefreshInterval(0),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "lootrota")
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestDomainMetrics(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When a distribution is recorded", func() {
			before := testutil.ToFloat64(globalManager.cascadeSkips)
			RecordDistribution("acquire", 2, 1.5)

			Convey("Then the skip counter should grow by the cascade length", func() {
				So(testutil.ToFloat64(globalManager.cascadeSkips)-before, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.distributions.WithLabelValues("acquire")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When roster totals are updated", func() {
			UpdateRosterTotals(12, 4, 30)
			UpdateWorklistSize(3)
			UpdateLiveSubscribers(2)

			Convey("Then the gauges should reflect the values", func() {
				So(testutil.ToFloat64(globalManager.playersTotal), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.itemsTotal), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.eventsTotal), ShouldEqual, 30)
				So(testutil.ToFloat64(globalManager.worklistSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.liveSubscribers), ShouldEqual, 2)
			})
		})

		Convey("When the remaining recorders are called", func() {
			So(func() {
				RecordQueueBuild(0.2)
				RecordDistributionError("not_in_queue")
				RecordDuplicateRequest()
				RecordStoreLatency("apply_batch", 3.0)
				RecordStoreError("apply_batch")
				RecordLiveDropped()
				RecordHTTPRequest("/api/v1/players", "GET", "200")
				RecordHTTPRequestDuration("/api/v1/players", "GET", "200", 4.0)
				RecordErrorByType("validation", "warning")
				RecordErrorByEndpoint("/api/v1/distributions", "POST", "not_in_queue")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordDuplicateRequest()
		handler := promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})

		Convey("When it is scraped", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			Convey("Then service metrics should be exposed without default collectors", func() {
				body := rec.Body.String()
				So(rec.Code, ShouldEqual, 200)
				So(body, ShouldContainSubstring, "lootrota_rotation_duplicate_requests_total")
				So(strings.Contains(body, "go_gc_duration_seconds"), ShouldBeFalse)
			})
		})

		Convey("And the refresh interval should have a default", func() {
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
