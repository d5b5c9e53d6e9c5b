package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"interact/internal/config"
)

const userAgent = "Interact-Go/0.1.0"

// Event identifies a job milestone worth telling the user about.
type Event string

const (
	EventJobStarted   Event = "job_started"
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventJobCancelled Event = "job_cancelled"
	EventTest         Event = "test"
)

// Payload carries event fields. Known keys: user, project, jobID, stage,
// failed, error.
type Payload map[string]any

// Service defines the notification surface exposed to job components.
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
		enabled: map[Event]bool{
			EventJobStarted:   true,
			EventJobCompleted: cfg.Notifications.JobCompleted,
			EventJobFailed:    cfg.Notifications.JobFailed,
			EventJobCancelled: cfg.Notifications.JobCancelled,
			EventTest:         true,
		},
	}
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	job := jobLabel(payload)
	switch event {
	case EventJobStarted:
		return message{
			title: "inSPIRE - Job Started",
			body:  fmt.Sprintf("Started: %s", job),
			tags:  []string{"inspire", "job", "started"},
		}, true
	case EventJobCompleted:
		body := fmt.Sprintf("Completed: %s", job)
		if failed := payload.number("failed"); failed > 0 {
			body = fmt.Sprintf("%s (%d optional stage(s) failed)", body, failed)
		}
		return message{
			title:    "inSPIRE - Job Complete",
			body:     body,
			tags:     []string{"inspire", "job", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		var b strings.Builder
		b.WriteString("Failed: ")
		b.WriteString(job)
		if stage := payload.text("stage"); stage != "" {
			b.WriteString(" during ")
			b.WriteString(stage)
		}
		if errText := payload.text("error"); errText != "" {
			b.WriteString(": ")
			b.WriteString(errText)
		}
		return message{
			title:    "inSPIRE - Job Failed",
			body:     b.String(),
			tags:     []string{"inspire", "job", "error"},
			priority: "high",
		}, true
	case EventJobCancelled:
		return message{
			title: "inSPIRE - Job Cancelled",
			body:  fmt.Sprintf("Cancelled: %s", job),
			tags:  []string{"inspire", "job", "cancelled"},
		}, true
	case EventTest:
		return message{
			title:    "inSPIRE - Test",
			body:     "Notification system test",
			tags:     []string{"inspire", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func jobLabel(payload Payload) string {
	user := payload.text("user")
	project := payload.text("project")
	label := strings.Trim(user+"/"+project, "/")
	if label == "" {
		label = "unknown project"
	}
	if id := payload.number("jobID"); id > 0 {
		label = fmt.Sprintf("%s (job %d)", label, id)
	}
	return label
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) number(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNoop returns a Service that drops every event.
func NewNoop() Service { return noopService{} }
