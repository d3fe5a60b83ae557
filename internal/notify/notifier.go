package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trm-report/internal/stats"
)

// Notification is the headline of a generated report.
type Notification struct {
	Title       string
	GeneratedAt time.Time
	Filename    string
	Summary     stats.Summary
}

// Notifier delivers a report headline.
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// TelegramNotifier posts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify calls sendMessage once; failures are returned, never retried.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("filename", note.Filename).
		Str("direction", stats.Direction(note.Summary.DayChangePct)).
		Msg("report headline sent")
	return nil
}

// RenderMessage formats the plain-text headline.
func RenderMessage(note Notification) string {
	s := note.Summary
	title := note.Title
	if title == "" {
		title = "TRM Report"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s]\n", title))
	builder.WriteString(fmt.Sprintf("Latest (%s): %s COP\n", s.LatestDate.Format("2006-01-02"), thousands(s.Latest)))
	builder.WriteString(fmt.Sprintf("Day: %s%% (%s)\n", s.DayChangePct.StringFixed(4), stats.Direction(s.DayChangePct)))
	builder.WriteString(fmt.Sprintf("Week: %s%%\n", s.WeekChangePct.StringFixed(4)))
	builder.WriteString(fmt.Sprintf("Month: %s%%\n", s.MonthChangePct.StringFixed(4)))
	builder.WriteString(fmt.Sprintf("Range: %s / %s\n", thousands(s.Min), thousands(s.Max)))
	if note.Filename != "" {
		builder.WriteString(fmt.Sprintf("File: %s\n", note.Filename))
	}
	if !note.GeneratedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Generated: %s UTC\n", note.GeneratedAt.UTC().Format("2006-01-02 15:04")))
	}
	return builder.String()
}

func thousands(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.Round(2).InexactFloat64(), 2)
}

var _ Notifier = (*TelegramNotifier)(nil)
