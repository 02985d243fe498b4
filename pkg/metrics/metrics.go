package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quickauth"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SignInStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "signin_started_total", Help: "Sign-in attempts redirected to a provider."},
		[]string{"provider"},
	)
	CallbackOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "callback_outcomes_total", Help: "OAuth callbacks by provider and result code."},
		[]string{"provider", "result"},
	)
	SessionValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "session_validations_total", Help: "Session lookups by result (valid, invalid, error)."},
		[]string{"result"},
	)
	SessionsRevoked = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "sessions_revoked_total", Help: "Sessions removed by sign-out."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SignInStarted)
	reg.MustRegister(CallbackOutcomes)
	reg.MustRegister(SessionValidations)
	reg.MustRegister(SessionsRevoked)
}
