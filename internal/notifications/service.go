package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"labtriage/internal/config"
)

const userAgent = "labtriage/0.1.0"

// Event identifies the workflow milestone being announced.
type Event string

const (
	EventCriticalResult Event = "critical_result"
	EventPassCompleted  Event = "pass_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
}

// IsAlert reports whether a result should page someone: the risk level is
// Critical or the matched tier is one of the configured alert tiers.
func IsAlert(alertTiers []string, riskLevel, tier string) bool {
	if strings.EqualFold(strings.TrimSpace(riskLevel), "critical") {
		return true
	}
	tier = strings.Join(strings.Fields(tier), " ")
	if tier == "" {
		return false
	}
	for _, candidate := range alertTiers {
		if strings.EqualFold(strings.Join(strings.Fields(candidate), " "), tier) {
			return true
		}
	}
	return false
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil {
		return nil
	}
	msg, ok := n.buildMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) buildMessage(event Event, payload Payload) (message, bool) {
	switch event {
	case EventCriticalResult:
		if !n.settings.Critical {
			return message{}, false
		}
		risk := payload.str("riskLevel")
		tier := payload.str("policyTier")
		var body strings.Builder
		fmt.Fprintf(&body, "🚨 %s (%s): %s - %s", risk, tier, payload.str("patientName"), payload.str("testName"))
		if summary := payload.str("summary"); summary != "" {
			body.WriteString("\n")
			body.WriteString(summary)
		}
		if citation := payload.str("citation"); citation != "" {
			body.WriteString("\nPolicy: ")
			body.WriteString(citation)
		}
		priority := "high"
		if strings.EqualFold(risk, "critical") {
			priority = "urgent"
		}
		return message{
			title:    "labtriage - " + risk + " Result",
			body:     body.String(),
			tags:     []string{"labtriage", "result", strings.ToLower(risk)},
			priority: priority,
		}, true
	case EventPassCompleted:
		if !n.settings.Pass {
			return message{}, false
		}
		processed := payload.integer("processed")
		failed := payload.integer("failed")
		skipped := payload.integer("skipped")
		if processed+failed == 0 {
			return message{}, false
		}
		duration := formatDuration(payload.duration("duration"))
		title := "labtriage - Pass Complete"
		body := fmt.Sprintf("Triage pass complete: %d items processed in %s", processed, duration)
		if failed > 0 || skipped > 0 {
			title = "labtriage - Pass Complete (with failures)"
			body = fmt.Sprintf("Triage pass complete: %d processed, %d failed, %d skipped in %s", processed, failed, skipped, duration)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"labtriage", "pass", "completed"},
		}, true
	case EventError:
		if !n.settings.Errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.str("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if errText := payload.str("error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "labtriage - Error",
			body:     builder.String(),
			tags:     []string{"labtriage", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "labtriage - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"labtriage", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) str(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) integer(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

func formatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)
	if duration <= 0 {
		return "0s"
	}
	return duration.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
