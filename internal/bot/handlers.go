package bot

import (
	"context"
	"fmt"
	"strings"

	"modbot/internal/platform"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	username := ""
	if event.User != nil {
		username = event.User.Username
	}
	b.logger.Info("discord ready", zap.String("user", username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Message == nil {
		return
	}
	b.handleMessage(context.Background(), msg.Message)
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.GuildID == "" {
		return
	}
	b.handleMemberJoin(context.Background(), event.GuildID, event.Member)
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || event.Unavailable {
		return
	}
	err := b.store.InitGuild(event.ID)
	platform.Swallow(b.logger, platform.StepInitGuild, err, zap.String("guild_id", event.ID))
}

// handleMessage runs the greeting, auto-moderation and command routing for
// one guild message, in that order.
func (b *Bot) handleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	if msg.Content != "" && !strings.HasPrefix(msg.Content, b.cfg.Prefix) && b.isGreeting(msg.Content) {
		reply := fmt.Sprintf("Hello, %s! I am the moderator bot. \nType %smodhelp to be familiar with my commands.", displayName(msg), b.cfg.Prefix)
		_, err := b.platform.SendMessage(ctx, msg.ChannelID, reply)
		platform.Swallow(b.logger, platform.StepGreeting, err, zap.String("channel_id", msg.ChannelID))
	}

	b.dispatcher.HandleMessage(ctx, msg)
	b.router.Handle(ctx, msg)
}

func (b *Bot) isGreeting(content string) bool {
	phrase := b.cfg.GreetingPhrase
	if phrase == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(content), phrase)
}

func displayName(msg *discordgo.Message) string {
	if msg.Member != nil && msg.Member.Nick != "" {
		return msg.Member.Nick
	}
	if msg.Author.GlobalName != "" {
		return msg.Author.GlobalName
	}
	return msg.Author.Username
}

func (b *Bot) handleMemberJoin(ctx context.Context, guildID string, member *discordgo.Member) {
	if member.User == nil || member.User.Bot {
		return
	}
	logger := b.logger.With(zap.String("guild_id", guildID), zap.String("user_id", member.User.ID))

	guildName := "the server"
	guild, err := b.platform.Guild(ctx, guildID)
	if err == nil && guild != nil && guild.Name != "" {
		guildName = guild.Name
	}

	if b.cfg.Welcome.Enabled {
		if channelID := b.welcomeChannel(ctx, guild, guildID); channelID != "" {
			text := fmt.Sprintf("Welcome to %s, <@%s>!", guildName, member.User.ID)
			_, err := b.platform.SendMessage(ctx, channelID, text)
			platform.Swallow(logger, platform.StepWelcome, err, zap.String("channel_id", channelID))
		} else {
			logger.Debug("no welcome channel")
		}
	}

	if b.cfg.Welcome.DM {
		text := fmt.Sprintf("Welcome to %s! Type %smodhelp in the server to see the moderation commands.", guildName, b.cfg.Prefix)
		platform.Swallow(logger, platform.StepDirectMessage, b.platform.DirectMessage(ctx, member.User.ID, text))
	}

	b.audit.LogAction(ctx, guildID, "Member Joined", fmt.Sprintf("<@%s> joined the server.", member.User.ID))
}

func (b *Bot) welcomeChannel(ctx context.Context, guild *discordgo.Guild, guildID string) string {
	channels, err := b.platform.GuildChannels(ctx, guildID)
	if err != nil {
		b.logger.Warn("list channels for welcome", zap.String("guild_id", guildID), zap.Error(err))
		return ""
	}
	systemChannelID := ""
	if guild != nil {
		systemChannelID = guild.SystemChannelID
	}
	botID := b.platform.BotUserID()
	return pickWelcomeChannel(channels, systemChannelID, func(channelID string) bool {
		perms, err := b.platform.ChannelPermissions(ctx, botID, channelID)
		if err != nil {
			return false
		}
		return perms&discordgo.PermissionAdministrator != 0 || perms&discordgo.PermissionSendMessages != 0
	})
}
