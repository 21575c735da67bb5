package moderation

import (
	"context"
	"fmt"

	"modbot/internal/platform"
	"modbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	DefaultPurgeAmount = 10
	MaxPurgeAmount     = 100
)

// Purge deletes up to amount messages before the command, and the command
// itself. The confirmation removes itself after the configured delay.
func (d *Dispatcher) Purge(ctx context.Context, inv Invocation, amount int) error {
	if err := d.authorize(inv, discordgo.PermissionManageMessages); err != nil {
		return err
	}
	if amount < 1 || amount > MaxPurgeAmount {
		return notice("Amount must be between 1 and %d.", MaxPurgeAmount)
	}
	messages, err := d.platform.ChannelMessages(ctx, inv.ChannelID, amount, inv.MessageID)
	if err != nil {
		return &ActionError{Op: "purge", Err: err}
	}
	ids := make([]string, 0, len(messages)+1)
	if inv.MessageID != "" {
		ids = append(ids, inv.MessageID)
	}
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}
	if err := d.platform.DeleteMessages(ctx, inv.ChannelID, ids); err != nil {
		return &ActionError{Op: "purge", Err: err}
	}

	count := len(messages)
	sent, err := d.platform.SendMessage(ctx, inv.ChannelID, fmt.Sprintf("Deleted %d messages.", count))
	if err != nil {
		d.logger.Warn("reply failed", zap.String("channel_id", inv.ChannelID), zap.Error(err))
	} else if sent != nil {
		channelID, messageID := inv.ChannelID, sent.ID
		d.scheduler.After(d.cfg.PurgeReplyDelay, func() {
			err := d.platform.DeleteMessage(context.Background(), channelID, messageID)
			platform.Swallow(d.logger, platform.StepReplyCleanup, err, zap.String("channel_id", channelID))
		})
	}
	d.audit.LogAction(ctx, inv.GuildID, "Messages Purged", fmt.Sprintf("%s purged %d messages in %s", mention(inv.Author.ID), count, utils.ChannelMention(inv.ChannelID)))
	return nil
}

// Lock denies @everyone sending messages in a channel, the invoking channel
// when channelID is empty.
func (d *Dispatcher) Lock(ctx context.Context, inv Invocation, channelID string) error {
	return d.setChannelLock(ctx, inv, channelID, true)
}

func (d *Dispatcher) Unlock(ctx context.Context, inv Invocation, channelID string) error {
	return d.setChannelLock(ctx, inv, channelID, false)
}

func (d *Dispatcher) setChannelLock(ctx context.Context, inv Invocation, channelID string, locked bool) error {
	if err := d.authorize(inv, discordgo.PermissionManageChannels); err != nil {
		return err
	}
	if channelID == "" {
		channelID = inv.ChannelID
	}
	channel, err := d.platform.Channel(ctx, channelID)
	if err != nil || channel == nil || channel.GuildID != inv.GuildID || !lockable(channel) {
		return badArgument("channel", channelID)
	}

	allow, deny := everyoneOverwrite(channel, inv.GuildID)
	op, title, verb := "unlock", "Channel Unlocked", "Unlocked"
	if locked {
		allow &^= discordgo.PermissionSendMessages
		deny |= discordgo.PermissionSendMessages
		op, title, verb = "lock", "Channel Locked", "Locked"
	} else {
		deny &^= discordgo.PermissionSendMessages
		allow |= discordgo.PermissionSendMessages
	}
	if err := d.platform.SetChannelPermission(ctx, channel.ID, inv.GuildID, discordgo.PermissionOverwriteTypeRole, allow, deny); err != nil {
		return &ActionError{Op: op, Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s %s.", verb, utils.ChannelMention(channel.ID)))
	d.audit.LogAction(ctx, inv.GuildID, title, fmt.Sprintf("%s %sed by %s.", utils.ChannelMention(channel.ID), op, mention(inv.Author.ID)))
	return nil
}

func lockable(channel *discordgo.Channel) bool {
	return channel.Type == discordgo.ChannelTypeGuildText || channel.Type == discordgo.ChannelTypeGuildNews
}

// everyoneOverwrite returns the @everyone overwrite of a channel, whose ID is
// the guild ID.
func everyoneOverwrite(channel *discordgo.Channel, guildID string) (int64, int64) {
	for _, ow := range channel.PermissionOverwrites {
		if ow.ID == guildID && ow.Type == discordgo.PermissionOverwriteTypeRole {
			return ow.Allow, ow.Deny
		}
	}
	return 0, 0
}
