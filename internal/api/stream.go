package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"schwer/internal/logger"
	"schwer/internal/metrics"
	"schwer/internal/models"
)

const streamWriteTimeout = 5 * time.Second

// SampleMessage is pushed to live stream subscribers on every tick.
type SampleMessage struct {
	Type string           `json:"type"`
	CPU  models.CPULevels `json:"cpu"`
	Mem  models.MemStats  `json:"mem"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Stream pushes CPU and memory samples to websocket subscribers.
type Stream struct {
	lc       LoadController
	metrics  *metrics.Collector
	interval time.Duration
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]bool
}

// NewStream builds a live sample stream that ticks every interval.
func NewStream(lc LoadController, collector *metrics.Collector, interval time.Duration) *Stream {
	if interval <= 0 {
		interval = time.Second
	}
	return &Stream{
		lc:          lc,
		metrics:     collector,
		interval:    interval,
		subscribers: make(map[*subscriber]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and keeps it subscribed until the peer goes away.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade 失败: %v", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{conn: conn}
	s.addSubscriber(sub)
	defer s.removeSubscriber(sub)

	if data, err := s.sample(); err == nil {
		if err := sub.write(data); err != nil {
			return
		}
	}

	// 客户端不发送业务消息，读循环只用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run broadcasts a sample every interval until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

// CloseAll disconnects every subscriber.
func (s *Stream) CloseAll() {
	for _, sub := range s.snapshot() {
		_ = sub.conn.Close()
	}
}

// Subscribers returns the current subscriber count.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Stream) sample() ([]byte, error) {
	return json.Marshal(SampleMessage{
		Type: "sample",
		CPU:  s.lc.CPUUsage(),
		Mem:  s.lc.MemUsage(),
	})
}

func (s *Stream) broadcast() {
	subs := s.snapshot()
	if len(subs) == 0 {
		return
	}
	data, err := s.sample()
	if err != nil {
		logger.Error("序列化采样数据失败: %v", err)
		return
	}
	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			s.metrics.IncWSBroadcastError()
			logger.Debug("推送采样数据失败: %v", err)
			_ = sub.conn.Close()
		}
	}
}

func (s *Stream) snapshot() []*subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

func (s *Stream) addSubscriber(sub *subscriber) {
	s.mu.Lock()
	s.subscribers[sub] = true
	n := len(s.subscribers)
	s.mu.Unlock()
	s.metrics.SetWSSubscribers(n)
}

func (s *Stream) removeSubscriber(sub *subscriber) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	n := len(s.subscribers)
	s.mu.Unlock()
	s.metrics.SetWSSubscribers(n)
}
