// 本文件用于 Prometheus 指标聚合与导出 将负载目标、接口请求与面板轮询指标统一收口

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"schwer/internal/models"
)

var pollDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Collector 聚合运行期指标，并以 Prometheus 文本格式输出。
type Collector struct {
	cpuTargetPct   atomic.Int64
	memTargetMB    atomic.Int64
	cpuCores       atomic.Int64
	wsSubscribers  atomic.Int64
	wsBroadcastErr atomic.Uint64

	mu              sync.RWMutex
	loadUpdates     map[string]uint64
	httpRequests    map[requestKey]uint64
	polls           map[pollKey]uint64
	formSubmissions map[string]uint64
	pollDurationSec *histogram
}

type requestKey struct {
	path   string
	status int
}

type pollKey struct {
	resource string
	outcome  string
}

type histogram struct {
	buckets []float64
	counts  []uint64 // 累计桶计数
	count   uint64
	sum     float64
}

var (
	globalCollector = NewCollector()
)

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	return &Collector{
		loadUpdates:     make(map[string]uint64),
		httpRequests:    make(map[requestKey]uint64),
		polls:           make(map[pollKey]uint64),
		formSubmissions: make(map[string]uint64),
		pollDurationSec: newHistogram(pollDurationBuckets),
	}
}

func newHistogram(buckets []float64) *histogram {
	clean := make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		if bucket <= 0 {
			continue
		}
		clean = append(clean, bucket)
	}
	sort.Float64s(clean)
	return &histogram{
		buckets: clean,
		counts:  make([]uint64, len(clean)),
	}
}

func (h *histogram) observe(v float64) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		if v <= bound {
			h.counts[idx]++
		}
	}
	h.count++
	h.sum += v
}

func (h *histogram) writePrometheus(builder *strings.Builder, metric string, labels map[string]string) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		bucketLabels := mergeLabels(labels, map[string]string{
			"le": trimFloat(bound),
		})
		builder.WriteString(metric)
		builder.WriteString("_bucket")
		writeLabels(builder, bucketLabels)
		builder.WriteByte(' ')
		builder.WriteString(strconv.FormatUint(h.counts[idx], 10))
		builder.WriteByte('\n')
	}
	infLabels := mergeLabels(labels, map[string]string{
		"le": "+Inf",
	})
	builder.WriteString(metric)
	builder.WriteString("_bucket")
	writeLabels(builder, infLabels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_sum")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(trimFloat(h.sum))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_count")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')
}

// SetLoadSettings 刷新当前负载目标。
func (c *Collector) SetLoadSettings(settings models.LoadSettings) {
	if c == nil {
		return
	}
	c.cpuTargetPct.Store(settings.CPUPct)
	c.memTargetMB.Store(settings.MemSizeMB)
	c.cpuCores.Store(int64(settings.Cores))
}

// IncLoadUpdate 记录一次负载调整，resource 取值 cpu 或 mem。
func (c *Collector) IncLoadUpdate(resource string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(resource)
	c.mu.Lock()
	c.loadUpdates[key]++
	c.mu.Unlock()
}

// ObserveHTTPRequest 记录一次接口请求及其状态码。
func (c *Collector) ObserveHTTPRequest(path string, status int) {
	if c == nil {
		return
	}
	key := requestKey{path: normalizeMetricLabel(path), status: status}
	c.mu.Lock()
	c.httpRequests[key]++
	c.mu.Unlock()
}

// SetWSSubscribers 刷新实时推送订阅数。
func (c *Collector) SetWSSubscribers(n int) {
	if c == nil {
		return
	}
	c.wsSubscribers.Store(int64(n))
}

// IncWSBroadcastError 记录推送失败次数。
func (c *Collector) IncWSBroadcastError() {
	if c == nil {
		return
	}
	c.wsBroadcastErr.Add(1)
}

// ObservePoll 记录面板一次轮询的结果与耗时。
func (c *Collector) ObservePoll(resource, outcome string, latency time.Duration) {
	if c == nil {
		return
	}
	key := pollKey{resource: normalizeMetricLabel(resource), outcome: normalizeMetricLabel(outcome)}
	c.mu.Lock()
	c.polls[key]++
	c.pollDurationSec.observe(latency.Seconds())
	c.mu.Unlock()
}

// IncFormSubmission 记录一次表单提交。
func (c *Collector) IncFormSubmission(form string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(form)
	c.mu.Lock()
	c.formSubmissions[key]++
	c.mu.Unlock()
}

// RenderPrometheus 以 text exposition 格式导出指标。
func (c *Collector) RenderPrometheus() string {
	if c == nil {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(2048)

	writeMetricHeader(&builder, "schwer_cpu_load_target_pct", "gauge", "Requested CPU load percentage per core.")
	writeGaugeInt(&builder, "schwer_cpu_load_target_pct", c.cpuTargetPct.Load(), nil)

	writeMetricHeader(&builder, "schwer_mem_load_target_mb", "gauge", "Requested memory allocation size in megabytes.")
	writeGaugeInt(&builder, "schwer_mem_load_target_mb", c.memTargetMB.Load(), nil)

	writeMetricHeader(&builder, "schwer_cpu_cores", "gauge", "Number of CPU load goroutines.")
	writeGaugeInt(&builder, "schwer_cpu_cores", c.cpuCores.Load(), nil)

	writeMetricHeader(&builder, "schwer_ws_subscribers", "gauge", "Current live stream subscribers.")
	writeGaugeInt(&builder, "schwer_ws_subscribers", c.wsSubscribers.Load(), nil)

	writeMetricHeader(&builder, "schwer_ws_broadcast_errors_total", "counter", "Total failed live stream writes.")
	writeCounter(&builder, "schwer_ws_broadcast_errors_total", c.wsBroadcastErr.Load(), nil)

	loadUpdates := make(map[string]uint64)
	httpRequests := make(map[requestKey]uint64)
	polls := make(map[pollKey]uint64)
	forms := make(map[string]uint64)
	var pollDurationCopy histogram
	c.mu.RLock()
	for k, v := range c.loadUpdates {
		loadUpdates[k] = v
	}
	for k, v := range c.httpRequests {
		httpRequests[k] = v
	}
	for k, v := range c.polls {
		polls[k] = v
	}
	for k, v := range c.formSubmissions {
		forms[k] = v
	}
	pollDurationCopy = cloneHistogram(c.pollDurationSec)
	c.mu.RUnlock()

	writeMetricHeader(&builder, "schwer_load_updates_total", "counter", "Load target updates grouped by resource.")
	// 始终输出 cpu/mem 两个 resource，避免零流量时缺失时序
	for _, resource := range []string{"cpu", "mem"} {
		if _, ok := loadUpdates[resource]; !ok {
			loadUpdates[resource] = 0
		}
	}
	for _, resource := range sortedStringKeysFromUintMap(loadUpdates) {
		writeCounter(&builder, "schwer_load_updates_total", loadUpdates[resource], map[string]string{
			"resource": resource,
		})
	}

	writeMetricHeader(&builder, "schwer_http_requests_total", "counter", "HTTP requests grouped by path and status.")
	reqKeys := make([]requestKey, 0, len(httpRequests))
	for k := range httpRequests {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].path != reqKeys[j].path {
			return reqKeys[i].path < reqKeys[j].path
		}
		return reqKeys[i].status < reqKeys[j].status
	})
	for _, k := range reqKeys {
		writeCounter(&builder, "schwer_http_requests_total", httpRequests[k], map[string]string{
			"path":   k.path,
			"status": strconv.Itoa(k.status),
		})
	}

	writeMetricHeader(&builder, "schwer_dashboard_polls_total", "counter", "Dashboard polls grouped by resource and outcome.")
	pollKeys := make([]pollKey, 0, len(polls))
	for k := range polls {
		pollKeys = append(pollKeys, k)
	}
	sort.Slice(pollKeys, func(i, j int) bool {
		if pollKeys[i].resource != pollKeys[j].resource {
			return pollKeys[i].resource < pollKeys[j].resource
		}
		return pollKeys[i].outcome < pollKeys[j].outcome
	})
	for _, k := range pollKeys {
		writeCounter(&builder, "schwer_dashboard_polls_total", polls[k], map[string]string{
			"resource": k.resource,
			"outcome":  k.outcome,
		})
	}

	writeMetricHeader(&builder, "schwer_dashboard_poll_duration_seconds", "histogram", "Dashboard poll latency distribution in seconds.")
	pollDurationCopy.writePrometheus(&builder, "schwer_dashboard_poll_duration_seconds", nil)

	writeMetricHeader(&builder, "schwer_dashboard_form_submissions_total", "counter", "Dashboard form submissions grouped by form.")
	for _, form := range sortedStringKeysFromUintMap(forms) {
		writeCounter(&builder, "schwer_dashboard_form_submissions_total", forms[form], map[string]string{
			"form": form,
		})
	}

	return builder.String()
}

func cloneHistogram(h *histogram) histogram {
	if h == nil {
		return histogram{}
	}
	copyHist := histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
	return copyHist
}

func writeMetricHeader(builder *strings.Builder, metric, metricType, help string) {
	builder.WriteString("# HELP ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(help)
	builder.WriteByte('\n')
	builder.WriteString("# TYPE ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(metricType)
	builder.WriteByte('\n')
}

func writeCounter(builder *strings.Builder, metric string, value uint64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(value, 10))
	builder.WriteByte('\n')
}

func writeGaugeInt(builder *strings.Builder, metric string, value int64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatInt(value, 10))
	builder.WriteByte('\n')
}

func writeLabels(builder *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder.WriteByte('{')
	for idx, key := range keys {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(key)
		builder.WriteString("=\"")
		builder.WriteString(escapeLabelValue(labels[key]))
		builder.WriteByte('"')
	}
	builder.WriteByte('}')
}

func mergeLabels(base, ext map[string]string) map[string]string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(ext))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range ext {
		merged[key] = value
	}
	return merged
}

func normalizeMetricLabel(value string) string {
	clean := strings.TrimSpace(strings.ToLower(value))
	if clean == "" {
		return "unknown"
	}
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 120 {
		clean = clean[:120]
	}
	return clean
}

func escapeLabelValue(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
	)
	return replacer.Replace(value)
}

func sortedStringKeysFromUintMap(items map[string]uint64) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func trimFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ResetForTest 仅用于测试，避免跨用例污染。
func (c *Collector) ResetForTest() {
	if c == nil {
		return
	}
	c.cpuTargetPct.Store(0)
	c.memTargetMB.Store(0)
	c.cpuCores.Store(0)
	c.wsSubscribers.Store(0)
	c.wsBroadcastErr.Store(0)

	c.mu.Lock()
	c.loadUpdates = make(map[string]uint64)
	c.httpRequests = make(map[requestKey]uint64)
	c.polls = make(map[pollKey]uint64)
	c.formSubmissions = make(map[string]uint64)
	c.pollDurationSec = newHistogram(pollDurationBuckets)
	c.mu.Unlock()
}

// NewTestCollector 提供干净的测试 Collector。
func NewTestCollector() *Collector {
	collector := NewCollector()
	collector.ResetForTest()
	return collector
}

// SnapshotString 仅用于本地调试。
func (c *Collector) SnapshotString() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf(
		"cpu=%d%% mem=%dMB cores=%d subscribers=%d",
		c.cpuTargetPct.Load(),
		c.memTargetMB.Load(),
		c.cpuCores.Load(),
		c.wsSubscribers.Load(),
	)
}
