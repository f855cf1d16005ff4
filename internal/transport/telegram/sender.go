package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "habitbot/pkg/logx"
)

const defaultAPIURL = "https://api.telegram.org"

type Config struct {
	Token      string
	APIURL     string // default https://api.telegram.org
	Timeout    time.Duration
	RatePerSec int // <=0 disables the limiter
}

// DeliveryError is a non-2xx answer from the Bot API.
type DeliveryError struct {
	StatusCode  int
	Description string
}

func (e *DeliveryError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram delivery failed: %s (http=%d)", e.Description, e.StatusCode)
	}
	return fmt.Sprintf("telegram delivery failed: http=%d", e.StatusCode)
}

// Sender sends reminder texts through the Bot API sendMessage method.
type Sender struct {
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	b, err := tele.NewBot(tele.Settings{
		URL:   apiURL,
		Token: cfg.Token,
		// no getMe round-trip at construction; this bot only sends
		Offline: true,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: statusCheck{next: http.DefaultTransport},
		},
	})
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Sender{bot: b, limiter: limiter, log: log}, nil
}

// Send delivers text to chatID. Any non-2xx answer is returned as a
// *DeliveryError.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Send(tele.ChatID(chatID), text)
	if err != nil {
		err = asDeliveryError(err)
		s.log.Debug("sendMessage failed", logx.Int64("chat_id", chatID), logx.Duration("took", time.Since(start)), logx.Err(err))
		return err
	}
	s.log.Debug("sendMessage ok", logx.Int64("chat_id", chatID), logx.Duration("took", time.Since(start)))
	return nil
}

func asDeliveryError(err error) error {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	var te *tele.Error
	if errors.As(err, &te) {
		return &DeliveryError{StatusCode: te.Code, Description: te.Description}
	}
	return err
}

// statusCheck turns non-2xx Bot API answers into *DeliveryError before
// telebot parses the body, so an unexpected payload can never pass as success.
type statusCheck struct {
	next http.RoundTripper
}

func (t statusCheck) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var out struct {
		Description string `json:"description"`
	}
	_ = json.NewDecoder(bytes.NewReader(body)).Decode(&out)
	desc := out.Description
	if desc == "" {
		desc = strings.TrimSpace(string(body))
		if len(desc) > 200 {
			desc = desc[:200]
		}
	}
	return nil, &DeliveryError{StatusCode: resp.StatusCode, Description: desc}
}
