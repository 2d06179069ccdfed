package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type TelegramConfig struct {
	Enabled    bool
	Token      string
	ChatID     int64
	RatePerSec int
}

// TelegramChannel is the short "summary" channel: one line per run.
//
// The bot client is dialed lazily on first delivery so a misconfigured
// token degrades into a per-run DeliveryResult failure instead of taking
// the whole process down at startup.
type TelegramChannel struct {
	cfg     TelegramConfig
	log     logx.Logger
	limiter *rate.Limiter

	mu  sync.Mutex
	bot *tele.Bot
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) *TelegramChannel {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &TelegramChannel{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (c *TelegramChannel) ID() string    { return "telegram" }
func (c *TelegramChannel) Enabled() bool { return c.cfg.Enabled }

func (c *TelegramChannel) Deliver(ctx context.Context, rep report.RunReport) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate wait: %w", err)
	}
	b, err := c.ensureBot()
	if err != nil {
		return err
	}
	chat := &tele.Chat{ID: c.cfg.ChatID}
	_, err = b.Send(chat, Summary(rep), &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (c *TelegramChannel) ensureBot() (*tele.Bot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return c.bot, nil
	}
	// The poller is never started; this channel only sends.
	b, err := tele.NewBot(tele.Settings{
		Token:  c.cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	c.bot = b
	return b, nil
}
