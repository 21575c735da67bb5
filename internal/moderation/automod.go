package moderation

import (
	"context"
	"fmt"

	"modbot/internal/metrics"
	"modbot/internal/platform"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// HandleMessage applies the guild blacklist to msg. On a match it deletes the
// message, records an automatic warning, writes one audit entry and tells the
// author by DM, in that order. Each step runs even if an earlier one failed.
// It reports whether the message triggered.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *discordgo.Message) bool {
	if msg == nil || msg.GuildID == "" || msg.Author == nil {
		return false
	}
	word, ok := d.filter.FindTrigger(msg.GuildID, msg.Content)
	if !ok {
		return false
	}
	metrics.AutomodTriggersTotal.Inc()
	fields := []zap.Field{zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.Author.ID), zap.String("word", word)}
	d.logger.Info("blocked word", fields...)

	platform.Swallow(d.logger, platform.StepDeleteMessage, d.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID), fields...)

	reason := fmt.Sprintf("Auto-moderation: used blocked word '%s'", word)
	if _, err := d.store.AddWarning(msg.GuildID, msg.Author.ID, nil, storage.AutoIssuer, reason); err != nil {
		d.logger.Error("record automatic warning", append(fields, zap.Error(err))...)
	} else {
		metrics.WarningsIssuedTotal.WithLabelValues("auto").Inc()
	}

	d.audit.LogAction(ctx, msg.GuildID, "Auto-moderation", fmt.Sprintf("Deleted message from %s containing blocked word '%s'.", mention(msg.Author.ID), word))

	notice := fmt.Sprintf("Your message in %s was removed for containing a blocked word.", d.guildName(ctx, msg.GuildID))
	platform.Swallow(d.logger, platform.StepDirectMessage, d.platform.DirectMessage(ctx, msg.Author.ID, notice), fields...)
	return true
}

func (d *Dispatcher) guildName(ctx context.Context, guildID string) string {
	guild, err := d.platform.Guild(ctx, guildID)
	if err != nil || guild == nil || guild.Name == "" {
		return "the server"
	}
	return guild.Name
}
