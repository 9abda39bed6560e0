package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/services"
)

const (
	embedColor = 0x9B59B6 // purple

	fieldCharacters = "Characters"
	fieldSource     = "Source"
	fieldArtist     = "Artist"
	footerPosted    = "Posted on "

	// Discord rejects field values longer than this.
	maxFieldLen = 1024
)

var mdEscaper = strings.NewReplacer("*", `\*`, "~", `\~`, "`", "\\`", "|", `\|`)

// humanizeTags turns "hatsune_miku kagamine_rin" into
// "Hatsune Miku, Kagamine Rin", escaped for Discord markdown.
func humanizeTags(s string) string {
	tags := strings.Fields(s)
	if len(tags) == 0 {
		return ""
	}
	// Casers are stateful; one per call.
	caser := cases.Title(language.English)
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, "_", " "))
		if t == "" {
			continue
		}
		out = append(out, mdEscaper.Replace(caser.String(t)))
	}
	return truncateField(strings.Join(out, ", "))
}

func truncateField(s string) string {
	r := []rune(s)
	if len(r) <= maxFieldLen {
		return s
	}
	return string(r[:maxFieldLen-1]) + "…"
}

func postEmbed(p domain.Post) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: "Danbooru Post",
		Color: embedColor,
		Image: &discordgo.MessageEmbedImage{URL: p.Image},
	}
	addField := func(name, raw string) {
		if v := humanizeTags(raw); v != "" {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: name, Value: v})
		}
	}
	addField(fieldCharacters, p.Characters)
	addField(fieldSource, p.Source)
	addField(fieldArtist, p.Artist)
	if p.Date != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: footerPosted + p.Date}
	}
	return e
}

func claimComponents(disabled bool) []discordgo.MessageComponent {
	label := "Claim"
	if disabled {
		label = "Claimed"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    label,
				Style:    discordgo.PrimaryButton,
				CustomID: claimID,
				Disabled: disabled,
			},
		}},
	}
}

func browserEmbed(v services.BrowserView) *discordgo.MessageEmbed {
	e := postEmbed(v.Post)
	e.Title = "Your Collection"
	date := v.Post.Date
	if date == "" {
		date = "Unknown date"
	}
	e.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d/%d · %s%s", v.Page+1, v.MaxPage+1, footerPosted, date),
	}
	return e
}

func browserComponents(v services.BrowserView) []discordgo.MessageComponent {
	nav := func(label, action string, disabled bool) discordgo.Button {
		return discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: browseID(v.SessionID, action),
			Disabled: disabled,
		}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			nav("⏮", services.First.String(), v.AtFirst()),
			nav("◀", services.Prev.String(), v.AtFirst()),
			nav("▶", services.Next.String(), v.AtLast()),
			nav("⏭", services.Last.String(), v.AtLast()),
			discordgo.Button{
				Label:    "Clear",
				Style:    discordgo.DangerButton,
				CustomID: browseID(v.SessionID, actionClear),
			},
		}},
	}
}
