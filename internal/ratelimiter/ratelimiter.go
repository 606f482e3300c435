// Package ratelimiter paces outgoing Telegram messages through a
// single queue so that per-chat send rate limits are respected no
// matter how many handlers or cycle workers want to send at once.
package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// The bot only ever messages private chats.
	perChatRate = time.Second
	queueSize   = 256
)

type request struct {
	message  tgbotapi.MessageConfig
	response chan error
}

type Limiter struct {
	api      *tgbotapi.BotAPI
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(api *tgbotapi.BotAPI, log *slog.Logger) *Limiter {
	ctx, cancel := context.WithCancel(context.Background())

	l := &Limiter{
		api:      api,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go l.processQueue()

	return l
}

// SendText queues one plain-text message and waits until the transport
// accepts or rejects it.
func (l *Limiter) SendText(ctx context.Context, chatID int64, text string) error {
	req := request{
		message:  tgbotapi.NewMessage(chatID, text),
		response: make(chan error, 1),
	}

	select {
	case l.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return l.ctx.Err()
	}

	select {
	case err := <-req.response:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return l.ctx.Err()
	}
}

func (l *Limiter) Stop() {
	l.cancel()
}

func (l *Limiter) processQueue() {
	for {
		select {
		case req := <-l.queue:
			l.handleRequest(req)
		case <-l.ctx.Done():
			l.drainQueue()

			return
		}
	}
}

// drainQueue fails pending requests after shutdown. The channel is
// never closed: a producer that slips a request in afterwards gets its
// answer from the done check in SendText.
func (l *Limiter) drainQueue() {
	for {
		select {
		case req := <-l.queue:
			req.response <- l.ctx.Err()
		default:
			return
		}
	}
}

func (l *Limiter) handleRequest(req request) {
	if l.ctx.Err() != nil {
		req.response <- l.ctx.Err()
		return
	}

	chatID := req.message.ChatID

	l.mu.Lock()
	lastSent, exists := l.lastSent[chatID]
	l.mu.Unlock()

	if exists {
		if delay := sendDelay(lastSent, time.Now()); delay > 0 {
			l.log.DebugContext(l.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"queueLen", len(l.queue))

			select {
			case <-time.After(delay):
			case <-l.ctx.Done():
				req.response <- l.ctx.Err()
				return
			}
		}
	}

	_, err := l.api.Send(req.message)

	l.mu.Lock()
	l.lastSent[chatID] = time.Now()
	l.mu.Unlock()

	req.response <- err
}

func sendDelay(lastSent time.Time, now time.Time) time.Duration {
	return max(perChatRate-now.Sub(lastSent), 0)
}
