// Package discord adapts the claim core to a Discord gateway session. It turns
// prefix commands and button presses into services events and renders the
// resulting Response back as messages, embeds and components.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/services"
)

// Session is the subset of *discordgo.Session the bot uses.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Fetcher returns a random post for a tag, or nil when there is none.
type Fetcher interface {
	FetchRandomPost(ctx context.Context, tag string) (*domain.Post, error)
}

// EventHandler processes core events.
type EventHandler interface {
	Handle(ctx context.Context, ev services.Event) (services.Response, error)
}

// Limiter gates commands per key.
type Limiter interface {
	Allow(key string) bool
}

// Options configures a Bot.
type Options struct {
	Session      Session
	Fetcher      Fetcher
	Events       EventHandler
	Offers       *services.OfferBook
	Limiter      Limiter // optional
	Prefix       string
	FetchTimeout time.Duration
}

// Bot routes gateway events.
type Bot struct {
	session      Session
	fetcher      Fetcher
	events       EventHandler
	offers       *services.OfferBook
	limiter      Limiter
	prefix       string
	fetchTimeout time.Duration
	log          zerolog.Logger
}

// NewBot builds a Bot from opts.
func NewBot(opts Options) *Bot {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "!"
	}
	offers := opts.Offers
	if offers == nil {
		offers = services.NewOfferBook(1000)
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bot{
		session:      opts.Session,
		fetcher:      opts.Fetcher,
		events:       opts.Events,
		offers:       offers,
		limiter:      opts.Limiter,
		prefix:       prefix,
		fetchTimeout: timeout,
		log:          log.With().Str("component", "discord").Logger(),
	}
}

// NewSession creates a gateway session for a bot token with the intents the
// bot needs (guild and direct messages, message content).
func NewSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	dg, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return dg, nil
}

// Run registers the handlers on dg, opens the gateway and blocks until ctx is
// done. Events are handled on discordgo's goroutines.
func (b *Bot) Run(ctx context.Context, dg *discordgo.Session) error {
	removeReady := dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected to discord")
	})
	removeMsg := dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.HandleMessage(ctx, m.Message)
	})
	removeInt := dg.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.HandleInteraction(ctx, i.Interaction)
	})
	defer func() {
		removeReady()
		removeMsg()
		removeInt()
	}()

	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	<-ctx.Done()
	b.log.Info().Msg("closing discord session")
	if err := dg.Close(); err != nil {
		return fmt.Errorf("discord close: %w", err)
	}
	return nil
}

// allow applies the per-user command limit.
func (b *Bot) allow(userID string) bool {
	if b.limiter == nil {
		return true
	}
	return b.limiter.Allow("discord:" + userID)
}

// actor returns the id of the user behind an interaction. Guild interactions
// carry it on Member, direct messages on User.
func actor(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
