package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ac3mux/internal/config"
)

const userAgent = "ac3mux/0.1"

// BatchReport summarises one convert run.
type BatchReport struct {
	Root         string
	Converted    int
	Skipped      int
	Failed       int
	SwapFailures int
	Duration     time.Duration
	DryRun       bool
}

// Service is the notification surface used by the CLI.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, report BatchReport) error
	NotifySwapFailed(ctx context.Context, path string, err error) error
	NotifyTrailersCompleted(ctx context.Context, downloaded, skipped, failed int) error
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// NewService builds an ntfy-backed service, or a no-op when
// notifications.ntfy_topic is empty.
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

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, report BatchReport) error {
	duration := report.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	data := payload{
		title: "ac3mux - Batch Complete",
		message: fmt.Sprintf("%s: %d converted, %d skipped, %d failed in %s",
			strings.TrimSpace(report.Root), report.Converted, report.Skipped, report.Failed, duration),
		tags: []string{"ac3mux", "batch", "completed"},
	}
	switch {
	case report.SwapFailures > 0:
		data.title = "ac3mux - Batch Needs Attention"
		data.message += fmt.Sprintf("\n%d swap(s) left files in an intermediate state; run ac3mux recover", report.SwapFailures)
		data.tags = []string{"ac3mux", "batch", "alert"}
		data.priority = "high"
	case report.Failed > 0:
		data.title = "ac3mux - Batch Complete (with errors)"
	}
	if report.DryRun {
		data.title += " [dry run]"
		data.priority = "low"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySwapFailed(ctx context.Context, path string, err error) error {
	var builder strings.Builder
	builder.WriteString("Swap failed for ")
	builder.WriteString(strings.TrimSpace(path))
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "ac3mux - Swap Failed",
		message:  builder.String(),
		tags:     []string{"ac3mux", "swap", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyTrailersCompleted(ctx context.Context, downloaded, skipped, failed int) error {
	title := "ac3mux - Trailers Complete"
	if failed > 0 {
		title = "ac3mux - Trailers Complete (with errors)"
	}
	return n.send(ctx, payload{
		title:   title,
		message: fmt.Sprintf("%d downloaded, %d skipped, %d failed", downloaded, skipped, failed),
		tags:    []string{"ac3mux", "trailers", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "ac3mux - Test",
		message:  "Notification system test",
		tags:     []string{"ac3mux", "test"},
		priority: "low",
	})
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

type noopService struct{}

func (noopService) Enabled() bool                                                { return false }
func (noopService) NotifyBatchCompleted(context.Context, BatchReport) error      { return nil }
func (noopService) NotifySwapFailed(context.Context, string, error) error        { return nil }
func (noopService) NotifyTrailersCompleted(context.Context, int, int, int) error { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
