package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogChannel 告警写入结构化日志。
type LogChannel struct {
	log *zap.Logger
}

func NewLogChannel(log *zap.Logger) *LogChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogChannel{log: log.Named("alert")}
}

func (c *LogChannel) Send(alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+1)
	fields = append(fields, zap.Time("alert_time", alert.Timestamp))
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	lvl := zapcore.WarnLevel
	switch alert.Level {
	case LevelInfo:
		lvl = zapcore.InfoLevel
	case LevelError, LevelCritical:
		lvl = zapcore.ErrorLevel
	}
	if ce := c.log.Check(lvl, alert.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (c *LogChannel) Name() string { return "log" }

// WebhookChannel 以 JSON POST 推送告警（Slack / 运维网关之类）。
type WebhookChannel struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

type webhookPayload struct {
	Level     Level                  `json:"level"`
	Text      string                 `json:"text"`
	Timestamp string                 `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (c *WebhookChannel) Send(alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Level:     alert.Level,
		Text:      fmt.Sprintf("[%s] %s", alert.Level, alert.Message),
		Timestamp: alert.Timestamp.UTC().Format(time.RFC3339),
		Fields:    alert.Fields,
	})
	if err != nil {
		return err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func (c *WebhookChannel) Name() string { return "webhook" }
