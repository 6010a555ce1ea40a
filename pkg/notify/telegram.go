package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultTelegramAPIURL is the Bot API base URL.
	DefaultTelegramAPIURL = "https://api.telegram.org"
	// MaxCaptionRunes is Telegram's photo caption limit.
	MaxCaptionRunes = 1024
	// DefaultSendAttempts is the total number of delivery attempts.
	DefaultSendAttempts = 3
)

// TelegramSink sends alerts through a Telegram bot.
type TelegramSink struct {
	httpClient   *http.Client
	apiURL       string
	token        string
	chatID       string
	withPhoto    bool
	attempts     uint64
	retryBackoff time.Duration
}

// TelegramOption configures a TelegramSink.
type TelegramOption func(*TelegramSink)

// WithTelegramAPIURL overrides the Bot API base URL.
func WithTelegramAPIURL(url string) TelegramOption {
	return func(s *TelegramSink) {
		if url != "" {
			s.apiURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithTelegramHTTPClient sets the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(s *TelegramSink) {
		s.httpClient = c
	}
}

// WithScreenshot sends the analyzed frame as a photo with the alert as its
// caption.
func WithScreenshot(enabled bool) TelegramOption {
	return func(s *TelegramSink) {
		s.withPhoto = enabled
	}
}

// WithRetry sets the attempt count and the base Fibonacci backoff.
func WithRetry(attempts uint64, backoff time.Duration) TelegramOption {
	return func(s *TelegramSink) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff > 0 {
			s.retryBackoff = backoff
		}
	}
}

// NewTelegramSink creates a sink for one chat.
func NewTelegramSink(token, chatID string, opts ...TelegramOption) (*TelegramSink, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	s := &TelegramSink{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		apiURL:       DefaultTelegramAPIURL,
		token:        token,
		chatID:       chatID,
		attempts:     DefaultSendAttempts,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

// Send posts the alert, retrying network failures, 429, and 5xx responses.
func (s *TelegramSink) Send(ctx context.Context, alert Alert) error {
	text := BuildMessage(alert)

	b := retry.WithMaxRetries(s.attempts-1, retry.NewFibonacci(s.retryBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if s.withPhoto && !alert.Sample.Empty() {
			return s.sendPhoto(ctx, alert, text)
		}
		return s.sendMessage(ctx, text)
	})
}

func (s *TelegramSink) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *TelegramSink) sendPhoto(ctx context.Context, alert Alert, text string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", s.chatID); err != nil {
		return err
	}
	if err := w.WriteField("caption", truncateCaption(text)); err != nil {
		return err
	}
	filename := "frame.jpg"
	if alert.Sample.MediaType == "image/png" {
		filename = "frame.png"
	}
	part, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := part.Write(alert.Sample.Data); err != nil {
		return fmt.Errorf("failed to write photo part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *TelegramSink) endpoint(method string) string {
	return s.apiURL + "/bot" + s.token + "/" + method
}

// do sends the request and classifies the outcome for retry.Do.
func (s *TelegramSink) do(req *http.Request) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return retry.RetryableError(fmt.Errorf("telegram request failed: %w", redactToken(err, s.token)))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("failed to read telegram response: %w", err))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(respBody, &result)

	if resp.StatusCode == http.StatusOK && result.OK {
		return nil
	}

	err = fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, result.Description)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.RetryableError(err)
	}
	return err
}

func truncateCaption(s string) string {
	if utf8.RuneCountInString(s) <= MaxCaptionRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxCaptionRunes-1]) + "…"
}

// redactToken keeps the bot token out of logged URL errors.
func redactToken(err error, token string) error {
	msg := err.Error()
	if token == "" || !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<token>"))
}
