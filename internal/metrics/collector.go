// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 编排引擎指标收集器
type Collector struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	routerTotal   *prometheus.CounterVec
	approvalTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器；reg 为 nil 时使用默认注册表
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of orchestration runs",
		},
		[]string{"domain", "strategy", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Orchestration run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"domain", "strategy"},
	)

	c.stepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of recorded workflow steps",
		},
		[]string{"agent_id", "status"},
	)

	c.stepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_execution_duration_seconds",
			Help:      "Agent execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent_id"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_retries_total",
			Help:      "Total number of validation-driven retries",
		},
		[]string{"domain", "agent_id"},
	)

	c.routerTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_decisions_total",
			Help:      "Total number of router decisions by outcome",
		},
		[]string{"domain", "outcome"},
	)

	c.approvalTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Total number of human-in-the-loop approval decisions",
		},
		[]string{"decision"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordRun 记录一次编排运行
func (c *Collector) RecordRun(domain, strategy, status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(domain, strategy, status).Inc()
	c.runDuration.WithLabelValues(domain, strategy).Observe(duration.Seconds())
}

// RecordStep 记录一个工作流步骤
func (c *Collector) RecordStep(agentID, status string, duration time.Duration) {
	c.stepsTotal.WithLabelValues(agentID, status).Inc()
	c.stepDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

// RecordRetry 记录一次验证重试
func (c *Collector) RecordRetry(domain, agentID string) {
	c.retriesTotal.WithLabelValues(domain, agentID).Inc()
}

// RecordRouterDecision 记录一次路由决策
func (c *Collector) RecordRouterDecision(domain, outcome string) {
	c.routerTotal.WithLabelValues(domain, outcome).Inc()
}

// RecordApproval 记录一次人工审批决定
func (c *Collector) RecordApproval(decision string) {
	c.approvalTotal.WithLabelValues(decision).Inc()
}
