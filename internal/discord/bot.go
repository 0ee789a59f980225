// Package discord owns the discordgo.Session lifecycle shared by the panel
// detector (which listens for message edits) and the publisher (which posts
// status lines, embeds, and attachments). It carries no command-routing or
// voice-channel logic — this service only observes text-channel edits and
// posts messages.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds the connection settings for the Discord gateway.
type Config struct {
	// Token is the bot token (without the "Bot " prefix).
	Token string
}

// Bot owns a connected discordgo.Session. Handlers (panel detection) are
// registered by callers via AddHandler before calling Run.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Bot and opens the gateway connection. The returned Bot's
// Session is ready to have handlers registered via AddHandler.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	return &Bot{
		session: session,
		done:    make(chan struct{}),
	}, nil
}

// Session returns the underlying discordgo session for registering handlers
// or performing channel operations.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// AddHandler registers a gateway event handler. It is a thin pass-through to
// the underlying session, kept here so callers need not reach into Session()
// just to subscribe.
func (b *Bot) AddHandler(handler any) func() {
	return b.Session().AddHandler(handler)
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
	})
	return closeErr
}
