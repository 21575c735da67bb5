package bot

import (
	"sort"

	"github.com/bwmarrin/discordgo"
)

// pickWelcomeChannel returns the text channel with the most recent message the
// bot can post in, then the system channel, then the first sendable text
// channel by position. It returns "" when nothing qualifies.
func pickWelcomeChannel(channels []*discordgo.Channel, systemChannelID string, canSend func(channelID string) bool) string {
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel != nil && channel.Type == discordgo.ChannelTypeGuildText {
			text = append(text, channel)
		}
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })

	sendable := make(map[string]bool, len(text))
	allowed := func(id string) bool {
		ok, seen := sendable[id]
		if !seen {
			ok = canSend(id)
			sendable[id] = ok
		}
		return ok
	}

	var latest *discordgo.Channel
	for _, channel := range text {
		if channel.LastMessageID == "" || !allowed(channel.ID) {
			continue
		}
		if latest == nil || snowflakeLess(latest.LastMessageID, channel.LastMessageID) {
			latest = channel
		}
	}
	if latest != nil {
		return latest.ID
	}

	if systemChannelID != "" {
		for _, channel := range text {
			if channel.ID == systemChannelID && allowed(channel.ID) {
				return channel.ID
			}
		}
	}

	for _, channel := range text {
		if allowed(channel.ID) {
			return channel.ID
		}
	}
	return ""
}

// snowflakeLess compares decimal snowflakes without parsing them.
func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
