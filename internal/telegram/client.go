// Package telegram wraps a gotd/td client configured for read-only
// update dispatch: it watches a fixed set of channels for incoming
// documents and has no need for gotgproto's bot-command-routing
// machinery, so it talks to gotd/td directly, the way
// mephi-learn-telegram-chat-parser's internal/telegram/client.go does.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// floodMiddleware mirrors the teacher's GetFloodMiddleware: a
// conservative waiter plus a steady-state rate limit so a burst of
// channel backlog on startup never trips Telegram's own flood control.
func floodMiddleware() []telegram.Middleware {
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(10)
	limiter := ratelimit.New(rate.Every(33*time.Millisecond), 15) // ~30 req/s, burst 15
	return []telegram.Middleware{waiter, limiter}
}

// Client is a read-only Telegram listener: it authenticates once, then
// dispatches new-channel-message updates to a caller-supplied handler.
type Client struct {
	raw        *telegram.Client
	dispatcher tg.UpdateDispatcher
	log        *zap.Logger
}

// Options configures New.
type Options struct {
	APIID       int
	APIHash     string
	SessionPath string
}

// New constructs a Client using file-backed session storage, the
// minimal session.FileStorage pattern (no gotgproto session layer is
// needed for a read-only listener).
func New(opts Options, log *zap.Logger) *Client {
	dispatcher := tg.NewUpdateDispatcher()
	raw := telegram.NewClient(opts.APIID, opts.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: opts.SessionPath},
		UpdateHandler:  dispatcher,
		Middlewares:    floodMiddleware(),
	})
	return &Client{raw: raw, dispatcher: dispatcher, log: log.Named("telegram")}
}

// API exposes the raw client for callers that need direct RPC access
// (the downloader stage's file-location resolution, for instance).
func (c *Client) API() *tg.Client {
	return c.raw.API()
}

// OnNewChannelMessage registers handler for incoming channel messages.
func (c *Client) OnNewChannelMessage(handler func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error) {
	c.dispatcher.OnNewChannelMessage(handler)
}

// Run connects using the stored session and runs f while connected,
// dispatching updates to the registered handlers meanwhile; it returns
// when f returns or ctx is cancelled, following gotd/td's own
// run-until-cancelled client lifecycle. It performs no login flow.
func (c *Client) Run(ctx context.Context, f func(ctx context.Context) error) error {
	if err := c.raw.Run(ctx, f); err != nil {
		return fmt.Errorf("telegram: run: %w", err)
	}
	return nil
}
