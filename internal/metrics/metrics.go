package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SuccessfulRequests *prometheus.CounterVec
	BadRequests        *prometheus.CounterVec
	ServerErrors       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	PostsCreated       prometheus.Counter
	PostsEdited        prometheus.Counter
	CommentsCreated    prometheus.Counter
	FollowRequests     prometheus.Counter
	UnfollowRequests   prometheus.Counter
}

// InitMetrics creates the collectors and registers them with reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SuccessfulRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_request",
				Help: "Total number of successful (2xx/3xx) HTTP requests",
			},
			[]string{"route"},
		),
		BadRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unsuccessful_request",
				Help: "Total number of unsuccessful (4xx) HTTP requests",
			},
			[]string{"route"},
		),
		ServerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "server_error_request",
				Help: "Total number of failed (5xx) HTTP requests",
			},
			[]string{"route"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "successful_post",
			Help: "Total number of successfully created posts",
		}),
		PostsEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "successful_post_edit",
			Help: "Total number of successfully edited posts",
		}),
		CommentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "successful_comment",
			Help: "Total number of successfully created comments",
		}),
		FollowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "successful_follows",
			Help: "Total number of successfully sent follow requests",
		}),
		UnfollowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "successful_unfollows",
			Help: "Total number of successfully sent unfollow requests",
		}),
	}

	reg.MustRegister(
		m.SuccessfulRequests,
		m.BadRequests,
		m.ServerErrors,
		m.RequestDuration,
		m.PostsCreated,
		m.PostsEdited,
		m.CommentsCreated,
		m.FollowRequests,
		m.UnfollowRequests,
	)

	return m
}

// ObserveStatus files a finished request under the counter matching its status.
func (m *Metrics) ObserveStatus(route string, status int) {
	switch {
	case status >= 500:
		m.ServerErrors.WithLabelValues(route).Inc()
	case status >= 400:
		m.BadRequests.WithLabelValues(route).Inc()
	default:
		m.SuccessfulRequests.WithLabelValues(route).Inc()
	}
}
