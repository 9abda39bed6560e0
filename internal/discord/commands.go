package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/claimbot/internal/services"
)

// Command names, without the prefix.
const (
	cmdDanbooru = "danbooru"
	cmdMyClaims = "myclaims"
)

const msgSlowDown = "⏳ Slow down a little and try again in a moment."

// HandleMessage runs a prefix command contained in m. Other messages,
// including everything sent by bots, are ignored.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	name, arg, ok := parseCommand(b.prefix, m.Content)
	if !ok {
		return
	}
	switch name {
	case cmdDanbooru, cmdMyClaims:
	default:
		return
	}

	if !b.allow(m.Author.ID) {
		b.send(m.ChannelID, msgSlowDown)
		return
	}

	switch name {
	case cmdDanbooru:
		b.cmdDanbooru(ctx, m, arg)
	case cmdMyClaims:
		b.cmdMyClaims(ctx, m)
	}
}

// parseCommand splits "<prefix>name rest" into a lowercased name and the
// trimmed rest.
func parseCommand(prefix, content string) (name, arg string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	body := strings.TrimSpace(content[len(prefix):])
	if body == "" {
		return "", "", false
	}
	name, arg, _ = strings.Cut(body, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func (b *Bot) cmdDanbooru(ctx context.Context, m *discordgo.Message, tag string) {
	fctx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
	defer cancel()

	post, err := b.fetcher.FetchRandomPost(fctx, tag)
	if err != nil {
		b.log.Warn().Err(errors.Join(services.ErrUpstreamFetch, err)).Str("tag", tag).Msg("fetch failed")
	}
	if err != nil || post == nil {
		b.send(m.ChannelID, services.MsgNoResults)
		return
	}

	sent, err := b.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{postEmbed(*post)},
		Components: claimComponents(false),
	})
	if err != nil {
		b.log.Error().Err(err).Str("channel_id", m.ChannelID).Msg("post offer not sent")
		return
	}
	b.offers.Put(sent.ID, *post)
	b.log.Debug().Str("message_id", sent.ID).Str("tag", tag).Msg("post offered")
}

func (b *Bot) cmdMyClaims(ctx context.Context, m *discordgo.Message) {
	resp, err := b.events.Handle(ctx, services.BrowserOpen{UserID: m.Author.ID})
	if err != nil {
		b.log.Error().Err(err).Str("user_id", m.Author.ID).Msg("open collection")
	}
	if resp.View == nil {
		b.send(m.ChannelID, resp.Message)
		return
	}
	if _, err := b.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{browserEmbed(*resp.View)},
		Components: browserComponents(*resp.View),
	}); err != nil {
		b.log.Error().Err(err).Str("channel_id", m.ChannelID).Msg("collection view not sent")
	}
}

func (b *Bot) send(channelID, content string) {
	if content == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		b.log.Error().Err(err).Str("channel_id", channelID).Msg("message not sent")
	}
}
