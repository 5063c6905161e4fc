package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor 监控服务，统计下单/流转/错误，同时导出 Prometheus 指标
type Monitor struct {
	mu sync.RWMutex

	// 业务统计
	OrdersCreated     int64
	OrdersRejected    int64
	OrdersCanceled    int64
	Transitions       int64
	StateConflicts    int64
	InsufficientStock int64

	// 错误统计
	StorageErrors int64
	PublishErrors int64
	Retries       int64

	LastOrderTime  time.Time
	LastStorageErr time.Time
	LastPublishErr time.Time

	orders      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	globalMonitor *Monitor
	monitorOnce   sync.Once
)

// GetMonitor 获取注册在默认 Registerer 上的全局监控实例
func GetMonitor() *Monitor {
	monitorOnce.Do(func() {
		globalMonitor = NewMonitor(prometheus.DefaultRegisterer)
	})
	return globalMonitor
}

// NewMonitor 创建监控实例，reg 为 nil 时不注册指标
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "order",
			Name:      "created_total",
			Help:      "Order creation attempts by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "order",
			Name:      "transitions_total",
			Help:      "Order status transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "order",
			Name:      "errors_total",
			Help:      "Infrastructure errors on the order path.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookstore",
			Subsystem: "order",
			Name:      "duration_ms",
			Help:      "Order operation latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.orders, m.transitions, m.failures, m.latency)
	}
	return m
}

// RecordOrderCreated 记录下单成功
func (m *Monitor) RecordOrderCreated(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersCreated++
	m.LastOrderTime = time.Now()
	m.orders.WithLabelValues("created").Inc()
	m.latency.WithLabelValues("create").Observe(float64(d.Milliseconds()))
}

// RecordOrderRejected 记录下单被拒（校验、库存不足、找不到图书等）
func (m *Monitor) RecordOrderRejected(insufficient bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersRejected++
	outcome := "rejected"
	if insufficient {
		m.InsufficientStock++
		outcome = "insufficient_stock"
	}
	m.orders.WithLabelValues(outcome).Inc()
}

// RecordTransition 记录状态流转结果
func (m *Monitor) RecordTransition(action string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch outcome {
	case "ok":
		m.Transitions++
		if action == "cancel" {
			m.OrdersCanceled++
		}
	case "conflict":
		m.StateConflicts++
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

// RecordStorageError 记录存储层错误
func (m *Monitor) RecordStorageError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StorageErrors++
	m.LastStorageErr = time.Now()
	m.failures.WithLabelValues("storage").Inc()
}

// RecordRetry 记录整单事务重试
func (m *Monitor) RecordRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries++
	m.failures.WithLabelValues("retry").Inc()
}

// RecordPublishError 记录事件发布失败
func (m *Monitor) RecordPublishError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishErrors++
	m.LastPublishErr = time.Now()
	m.failures.WithLabelValues("publish").Inc()
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	successRate := float64(0)
	if attempts := m.OrdersCreated + m.OrdersRejected; attempts > 0 {
		successRate = float64(m.OrdersCreated) / float64(attempts) * 100
	}

	return map[string]interface{}{
		"orders": map[string]interface{}{
			"created":            m.OrdersCreated,
			"rejected":           m.OrdersRejected,
			"insufficient_stock": m.InsufficientStock,
			"canceled":           m.OrdersCanceled,
			"transitions":        m.Transitions,
			"state_conflicts":    m.StateConflicts,
			"success_rate":       successRate,
		},
		"errors": map[string]interface{}{
			"storage": m.StorageErrors,
			"publish": m.PublishErrors,
			"retries": m.Retries,
		},
		"last_events": map[string]interface{}{
			"order":         m.LastOrderTime,
			"storage_error": m.LastStorageErr,
			"publish_error": m.LastPublishErr,
		},
	}
}

// Reset 重置内存统计（Prometheus 计数器单调递增，不受影响）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersCreated = 0
	m.OrdersRejected = 0
	m.OrdersCanceled = 0
	m.Transitions = 0
	m.StateConflicts = 0
	m.InsufficientStock = 0
	m.StorageErrors = 0
	m.PublishErrors = 0
	m.Retries = 0
}
