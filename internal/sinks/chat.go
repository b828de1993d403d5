package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
	"github.com/ttone18/gpu-inspector/internal/models"
)

// messageBlock is one line of a post-style chat message body.
type messageBlock struct {
	Tag    string `json:"tag"`
	Text   string `json:"text,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type postBody struct {
	Title   string           `json:"title"`
	Content [][]messageBlock `json:"content"`
}

type postPayload struct {
	ZhCN postBody `json:"zh_cn"`
}

type postMessage struct {
	Post postPayload `json:"post"`
}

type webhookMessage struct {
	MsgType string      `json:"msg_type"`
	Content postMessage `json:"content"`
}

// ChatSink delivers group-routed alert messages over webhook URLs keyed by
// models.Group, grounded in _send_feishu_alert / send_daily_p3_summary.
type ChatSink struct {
	client      *http.Client
	webhookURLs map[models.Group]string
}

// NewChatSink builds a ChatSink. webhookURLs is typically
// config.AppConfig.WebhookURLs.
func NewChatSink(secure *SecureClient, webhookURLs map[models.Group]string) *ChatSink {
	return &ChatSink{
		client:      secure.HTTPClient(ChatWebhookTimeout),
		webhookURLs: webhookURLs,
	}
}

// Send delivers one Dispatch to its priority's chat group. A RESOLVED
// transition is always sent immediately, independent of priority; a
// NEW/CHANGED transition was already filtered by alertengine for P3 (see
// Engine.processFailure), so Send never needs to check priority itself.
func (s *ChatSink) Send(ctx context.Context, d alertengine.Dispatch) error {
	url := s.webhookURLs[d.Meta.Group]
	if url == "" {
		return fmt.Errorf("sinks: no webhook configured for group %q", d.Meta.Group)
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	node := d.Record.Hostname
	if node == "" {
		node = d.Record.Host
	}

	var title string
	var blocks [][]messageBlock
	switch d.Transition {
	case alertengine.TransitionResolved:
		title = fmt.Sprintf("[RESOLVED] %s - %s", d.Meta.Title, node)
		blocks = [][]messageBlock{
			{{Tag: "text", Text: "node: " + node}},
			{{Tag: "text", Text: "ip: " + d.Record.Host}},
			{{Tag: "text", Text: "priority: " + string(d.Meta.Priority)}},
			{{Tag: "text", Text: "resolved type: " + d.Record.Type}},
			{{Tag: "text", Text: "resolved at: " + now}},
		}
	case alertengine.TransitionDuplicate:
		// Low-cost repeat notice for a failure arriving again inside the
		// debounce window: no at-all mention even at P0/P1, since the
		// standard alert already paged whoever needed paging.
		title = fmt.Sprintf("[DUPLICATE] %s - %s", d.Meta.Title, node)
		blocks = [][]messageBlock{
			{{Tag: "text", Text: "node: " + node}},
			{{Tag: "text", Text: "type: " + d.Record.Type}},
			{{Tag: "text", Text: "detail: " + d.Record.Extra}},
			{{Tag: "text", Text: "seen again at: " + now}},
		}
	default:
		title = fmt.Sprintf("[%s] %s - %s", d.Meta.Priority, d.Meta.Title, node)
		descLine := []messageBlock{{Tag: "text", Text: "detail: " + d.Record.Extra}}
		if d.Meta.Priority == models.PriorityP0 || d.Meta.Priority == models.PriorityP1 {
			descLine = append(descLine, messageBlock{Tag: "at", UserID: "all"})
		}
		blocks = [][]messageBlock{
			{{Tag: "text", Text: "node: " + node}},
			{{Tag: "text", Text: "ip: " + d.Record.Host}},
			{{Tag: "text", Text: "priority: " + string(d.Meta.Priority)}},
			{{Tag: "text", Text: "type: " + d.Record.Type}},
			descLine,
			{{Tag: "text", Text: "time: " + now}},
		}
	}

	return s.post(ctx, url, title, blocks)
}

// SendDigest delivers the daily P3 rollup to the analytics group,
// grounded in send_daily_p3_summary, including an explicit heartbeat line
// when there is nothing to report.
func (s *ChatSink) SendDigest(ctx context.Context, summary alertengine.Summary) error {
	url := s.webhookURLs[models.GroupAnalytics]
	if url == "" {
		return fmt.Errorf("sinks: no webhook configured for analytics group")
	}

	title := fmt.Sprintf("P3 daily digest - %s", time.Now().Format("2006-01-02"))

	var blocks [][]messageBlock
	if summary.Empty {
		blocks = [][]messageBlock{
			{{Tag: "text", Text: "No P3-priority events currently active."}},
		}
	} else {
		for _, host := range summary.Hosts {
			blocks = append(blocks, []messageBlock{{Tag: "text", Text: "node: " + host.Hostname}})
			for _, issue := range host.Issues {
				blocks = append(blocks, []messageBlock{{Tag: "text", Text: "  - " + issue.Type + ": " + issue.Extra}})
			}
		}
	}

	return s.post(ctx, url, title, blocks)
}

func (s *ChatSink) post(ctx context.Context, url, title string, blocks [][]messageBlock) error {
	msg := webhookMessage{
		MsgType: "post",
		Content: postMessage{Post: postPayload{ZhCN: postBody{Title: title, Content: blocks}}},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sinks: encode chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sinks: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("title", title).Msg("chat webhook delivery failed")
		return fmt.Errorf("sinks: chat webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sinks: chat webhook returned status %s", strings.TrimSpace(resp.Status))
	}
	log.Info().Str("title", title).Msg("chat notification delivered")
	return nil
}
