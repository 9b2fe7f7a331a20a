// 本文件用于提交负载配置表单
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"schwer/internal/logger"
	"schwer/internal/metrics"
)

// Alerter 展示表单提交后服务端返回的原文
type Alerter interface {
	Alert(msg string)
}

// AlerterFunc 函数适配器
type AlerterFunc func(msg string)

func (f AlerterFunc) Alert(msg string) { f(msg) }

// WriterAlerter 将响应原文逐行写到 W
type WriterAlerter struct {
	W io.Writer
}

func (a WriterAlerter) Alert(msg string) {
	_, _ = fmt.Fprintln(a.W, msg)
}

// Form 表单：提交时向 Action 发送一次 POST，不跟随重定向
type Form struct {
	ID     string
	Action string

	mu      sync.Mutex
	fields  url.Values
	client  *http.Client
	alerter Alerter
	metrics *metrics.Collector
}

// NewForm 创建表单
func NewForm(id, action string, client *http.Client, alerter Alerter, collector *metrics.Collector) *Form {
	return &Form{
		ID:      id,
		Action:  action,
		fields:  url.Values{},
		client:  noRedirect(client),
		alerter: alerter,
		metrics: collector,
	}
}

// Client 返回提交使用的客户端，重定向策略已关闭
func (f *Form) Client() *http.Client {
	return f.client
}

// Set 设置字段值
func (f *Form) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields.Set(key, value)
}

// Fields 返回字段副本
func (f *Form) Fields() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(url.Values, len(f.fields))
	for k, v := range f.fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Submit 以 form 编码提交一次，并把响应原文交给 Alerter。
// 不做客户端校验，也不区分成功与失败状态码
func (f *Form) Submit(ctx context.Context) (string, error) {
	body := f.Fields().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Action, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("构造表单请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f.metrics.IncFormSubmission(f.ID)
	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warn("表单 %s 提交失败: %v", f.ID, err)
		return "", fmt.Errorf("提交表单 %s 失败: %w", f.ID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取表单 %s 响应失败: %w", f.ID, err)
	}
	msg := string(data)
	logger.Debug("表单 %s 提交完成，状态码 %d", f.ID, resp.StatusCode)
	if f.alerter != nil {
		f.alerter.Alert(msg)
	}
	return msg, nil
}

// noRedirect 复制客户端并关闭重定向跟随，提交后停留在当前页面
func noRedirect(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}
