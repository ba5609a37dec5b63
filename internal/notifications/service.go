package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dramamerge/internal/config"
)

const userAgent = "dramamerge/0.1.0"

// JobSummary describes a finished merge job.
type JobSummary struct {
	Title     string
	Season    int
	Status    string
	Succeeded int
	Failed    int
	Cancelled int
	Total     int
	OutputDir string
	Elapsed   time.Duration
}

// Service defines the notification surface exposed to the job coordinator.
type Service interface {
	NotifyJobFinished(ctx context.Context, summary JobSummary) error
	NotifyJobFailed(ctx context.Context, title string, err error) error
	TestNotification(ctx context.Context) error
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
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobFinished(ctx context.Context, summary JobSummary) error {
	label := seriesLabel(summary.Title, summary.Season)
	elapsed := summary.Elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	data := payload{tags: []string{"dramamerge", "merge", summary.Status}}
	switch summary.Status {
	case "success":
		data.title = "dramamerge - Merge Complete"
		data.message = fmt.Sprintf("✅ %s: %d files merged in %s", label, summary.Total, elapsed)
	case "partial":
		data.title = "dramamerge - Merge Complete (with errors)"
		data.message = fmt.Sprintf("⚠️ %s: %d of %d files merged, %d failed, %d cancelled",
			label, summary.Succeeded, summary.Total, summary.Failed, summary.Cancelled)
		data.priority = "high"
	default:
		data.title = "dramamerge - Merge Failed"
		data.message = fmt.Sprintf("❌ %s: no file merged (%d failed, %d cancelled)", label, summary.Failed, summary.Cancelled)
		data.priority = "high"
	}
	if dir := strings.TrimSpace(summary.OutputDir); dir != "" {
		data.message += "\nOutput: " + dir
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Merge aborted")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(" for ")
		builder.WriteString(title)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "dramamerge - Error",
		message:  builder.String(),
		tags:     []string{"dramamerge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "dramamerge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"dramamerge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func seriesLabel(title string, season int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled"
	}
	if season > 0 {
		return fmt.Sprintf("%s S%02d", title, season)
	}
	return title
}

type noopService struct{}

func (noopService) NotifyJobFinished(context.Context, JobSummary) error  { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
