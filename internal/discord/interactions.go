package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/services"
)

// Component custom ids.
const (
	claimID      = "claim"
	browsePrefix = "browse"
	actionClear  = "clear"
)

// browseID builds the custom id of a browser control.
func browseID(sessionID, action string) string {
	return browsePrefix + ":" + sessionID + ":" + action
}

// parseBrowseID splits "browse:<session>:<action>".
func parseBrowseID(id string) (sessionID, action string, ok bool) {
	rest, found := strings.CutPrefix(id, browsePrefix+":")
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// HandleInteraction handles a button press. Other interaction types are
// ignored.
func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	userID := actor(i)
	customID := i.MessageComponentData().CustomID

	switch {
	case customID == claimID:
		b.onClaim(ctx, i, userID)
	case strings.HasPrefix(customID, browsePrefix+":"):
		b.onBrowse(ctx, i, userID, customID)
	default:
		b.log.Debug().Str("custom_id", customID).Msg("unknown component")
	}
}

func (b *Bot) onClaim(ctx context.Context, i *discordgo.Interaction, userID string) {
	if i.Message == nil {
		return
	}
	msgID := i.Message.ID
	post, ok := b.offers.Get(msgID)
	if !ok {
		post = postFromMessage(i.Message)
	}

	resp, err := b.events.Handle(ctx, services.ClaimRequested{MessageID: msgID, UserID: userID, Post: post})
	if err != nil {
		b.log.Error().Err(err).Str("message_id", msgID).Str("user_id", userID).Msg("claim")
	}
	if resp.Outcome == services.OutcomeClaimed {
		b.offers.Delete(msgID)
	}

	if !resp.DisableClaim {
		b.replyEphemeral(i, resp.Message)
		return
	}

	// Disable the button in place, then tell the actor privately.
	if err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    i.Message.Content,
			Embeds:     i.Message.Embeds,
			Components: claimComponents(true),
		},
	}); err != nil {
		b.log.Error().Err(err).Str("message_id", msgID).Msg("claim control not disabled")
		return
	}
	if _, err := b.session.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: resp.Message,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.log.Error().Err(err).Str("message_id", msgID).Msg("claim acknowledgment not sent")
	}
}

func (b *Bot) onBrowse(ctx context.Context, i *discordgo.Interaction, userID, customID string) {
	sessionID, action, ok := parseBrowseID(customID)
	if !ok {
		b.replyEphemeral(i, services.MsgInvalidRequest)
		return
	}

	var ev services.Event
	if action == actionClear {
		ev = services.BrowserClear{SessionID: sessionID, UserID: userID}
	} else {
		dir, err := services.ParseDirection(action)
		if err != nil {
			b.replyEphemeral(i, services.MsgInvalidRequest)
			return
		}
		ev = services.BrowserNavigate{SessionID: sessionID, UserID: userID, Direction: dir}
	}

	resp, err := b.events.Handle(ctx, ev)
	if err != nil {
		b.log.Error().Err(err).Str("session_id", sessionID).Str("action", action).Msg("browse")
	}
	if resp.View == nil {
		b.replyEphemeral(i, resp.Message)
		return
	}

	data := &discordgo.InteractionResponseData{}
	if resp.View.Empty {
		data.Content = resp.Message
		data.Embeds = []*discordgo.MessageEmbed{}
		data.Components = []discordgo.MessageComponent{}
	} else {
		data.Embeds = []*discordgo.MessageEmbed{browserEmbed(*resp.View)}
		data.Components = browserComponents(*resp.View)
	}
	if err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}); err != nil {
		b.log.Error().Err(err).Str("session_id", sessionID).Msg("collection view not updated")
		return
	}
	// A failed save still re-renders; the warning goes to the actor only.
	if resp.Message != "" && !resp.View.Empty {
		if _, err := b.session.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
			Content: resp.Message,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); err != nil {
			b.log.Error().Err(err).Msg("browse warning not sent")
		}
	}
}

func (b *Bot) replyEphemeral(i *discordgo.Interaction, content string) {
	if content == "" {
		content = services.MsgInternalFailure
	}
	if err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		b.log.Error().Err(err).Msg("ephemeral reply not sent")
	}
}

// postFromMessage rebuilds a post from an offer's embed when the offer is no
// longer remembered (for example after a restart).
func postFromMessage(m *discordgo.Message) domain.Post {
	var p domain.Post
	if len(m.Embeds) == 0 {
		return p
	}
	e := m.Embeds[0]
	if e.Image != nil {
		p.Image = e.Image.URL
	}
	for _, f := range e.Fields {
		switch f.Name {
		case fieldCharacters:
			p.Characters = f.Value
		case fieldSource:
			p.Source = f.Value
		case fieldArtist:
			p.Artist = f.Value
		}
	}
	if e.Footer != nil {
		p.Date = strings.TrimSpace(strings.TrimPrefix(e.Footer.Text, footerPosted))
	}
	return p
}
