// Package metrics holds the Prometheus instruments shared by the ledger,
// the referral consumer and the ranking service.  All collectors are
// registered with the global registry, so mounting promhttp.Handler() on
// /metrics is enough to expose them.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
)

var (
    CreditGrantsTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "credit_grants_total",
            Help: "Featured credit grants recorded together with their audit entry.",
        })

    CreditRevokesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "credit_revokes_total",
            Help: "Featured credit revokes that changed a grant.",
        })

    CreditLedgerFailuresTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "credit_ledger_failures_total",
            Help: "Ledger mutations that failed to persist, by operation.",
        }, []string{"op"})

    ReferralRewardRetriesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "referral_reward_retries_total",
            Help: "Referral reward messages requeued after a transient failure.",
        })

    ReferralRewardsDroppedTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "referral_rewards_dropped_total",
            Help: "Referral rewards given up on, by reason.",
        }, []string{"reason"})

    RankingRequestsTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "ranking_requests_total",
            Help: "Listing ranking computations served.",
        })

    RankingDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Name:    "ranking_duration_seconds",
            Help:    "Time spent loading and ranking listings for one location.",
            Buckets: prometheus.DefBuckets,
        })
)

func init() {
    prometheus.MustRegister(
        CreditGrantsTotal,
        CreditRevokesTotal,
        CreditLedgerFailuresTotal,
        ReferralRewardRetriesTotal,
        ReferralRewardsDroppedTotal,
        RankingRequestsTotal,
        RankingDuration,
    )
}
