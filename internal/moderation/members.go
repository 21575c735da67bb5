package moderation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"modbot/internal/metrics"
	"modbot/internal/platform"
	"modbot/internal/scheduler"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const mutedDeny = discordgo.PermissionSendMessages | discordgo.PermissionVoiceSpeak | discordgo.PermissionAddReactions

func (d *Dispatcher) Kick(ctx context.Context, inv Invocation, userID, reason string) error {
	if err := d.authorize(inv, discordgo.PermissionKickMembers); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	reason = withDefaultReason(reason)
	if err := d.platform.Kick(ctx, inv.GuildID, member.User.ID, reason); err != nil {
		return &ActionError{Op: "kick", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s has been kicked. Reason: %s", userTag(member.User), reason))
	d.audit.LogAction(ctx, inv.GuildID, "Member Kicked", fmt.Sprintf("%s kicked by %s. Reason: %s", mention(member.User.ID), mention(inv.Author.ID), reason))
	return nil
}

func (d *Dispatcher) Ban(ctx context.Context, inv Invocation, userID, reason string) error {
	if err := d.authorize(inv, discordgo.PermissionBanMembers); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	reason = withDefaultReason(reason)
	if err := d.platform.Ban(ctx, inv.GuildID, member.User.ID, reason); err != nil {
		return &ActionError{Op: "ban", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s has been banned. Reason: %s", userTag(member.User), reason))
	d.audit.LogAction(ctx, inv.GuildID, "Member Banned", fmt.Sprintf("%s banned by %s. Reason: %s", mention(member.User.ID), mention(inv.Author.ID), reason))
	return nil
}

// Unban lifts the ban of the user whose tag is "name#discriminator".
func (d *Dispatcher) Unban(ctx context.Context, inv Invocation, tag string) error {
	if err := d.authorize(inv, discordgo.PermissionBanMembers); err != nil {
		return err
	}
	if strings.TrimSpace(tag) == "" {
		return ErrMissingArgument
	}
	parts := strings.Split(strings.TrimSpace(tag), "#")
	if len(parts) != 2 {
		return notice("Use format: username#discriminator")
	}
	name, discriminator := parts[0], parts[1]

	bans, err := d.platform.Bans(ctx, inv.GuildID)
	if err != nil {
		return &ActionError{Op: "fetch bans", Err: err}
	}
	for _, ban := range bans {
		if ban.User == nil || ban.User.Username != name || ban.User.Discriminator != discriminator {
			continue
		}
		if err := d.platform.Unban(ctx, inv.GuildID, ban.User.ID); err != nil {
			return &ActionError{Op: "unban", Err: err}
		}
		d.reply(ctx, inv.ChannelID, fmt.Sprintf("Unbanned %s", userTag(ban.User)))
		d.audit.LogAction(ctx, inv.GuildID, "Member Unbanned", fmt.Sprintf("%s unbanned by %s", userTag(ban.User), mention(inv.Author.ID)))
		return nil
	}
	return notice("User not found in ban list.")
}

// Mute gives the member the muted role. A positive duration schedules an
// automatic unmute, replacing any earlier one for the member; a zero duration
// or a negative one leaves the mute in place until a moderator lifts it.
func (d *Dispatcher) Mute(ctx context.Context, inv Invocation, userID string, minutes int, reason string) error {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	if int64(minutes) > MaxMuteMinutes {
		return badArgument("duration", fmt.Sprint(minutes))
	}
	role, err := d.ensureMutedRole(ctx, inv.GuildID)
	if err != nil {
		d.logger.Warn("muted role unavailable", zap.String("guild_id", inv.GuildID), zap.Error(err))
		return notice("Unable to create/find %s role. Ensure the bot has Manage Roles permission.", d.cfg.MutedRoleName)
	}
	reason = withDefaultReason(reason)
	if err := d.platform.AddMemberRole(ctx, inv.GuildID, member.User.ID, role.ID, reason); err != nil {
		return &ActionError{Op: "mute", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s has been muted. Reason: %s", mention(member.User.ID), reason))
	d.audit.LogAction(ctx, inv.GuildID, "Member Muted", fmt.Sprintf("%s muted by %s. Reason: %s", mention(member.User.ID), mention(inv.Author.ID), reason))

	key := scheduler.Key{GuildID: inv.GuildID, UserID: member.User.ID}
	if minutes > 0 {
		d.scheduleUnmute(key, role.ID, minutes)
	} else {
		d.scheduler.Cancel(key)
	}
	metrics.PendingUnmutes.Set(float64(d.scheduler.Len()))
	return nil
}

// MaxMuteMinutes is the longest duration that still fits a time.Duration.
const MaxMuteMinutes = math.MaxInt64 / int64(time.Minute)

func (d *Dispatcher) scheduleUnmute(key scheduler.Key, roleID string, minutes int) {
	d.scheduler.Schedule(key, time.Duration(minutes)*time.Minute, func() {
		defer metrics.PendingUnmutes.Set(float64(d.scheduler.Len()))
		ctx := context.Background()
		fields := []zap.Field{zap.String("guild_id", key.GuildID), zap.String("user_id", key.UserID)}

		member, err := d.platform.Member(ctx, key.GuildID, key.UserID)
		if err != nil {
			platform.Swallow(d.logger, platform.StepAutoUnmute, err, fields...)
			return
		}
		if !platform.HasRole(member, roleID) {
			return
		}
		if err := d.platform.RemoveMemberRole(ctx, key.GuildID, key.UserID, roleID, "Auto unmute after duration"); err != nil {
			platform.Swallow(d.logger, platform.StepAutoUnmute, err, fields...)
			return
		}
		d.audit.LogAction(ctx, key.GuildID, "Member Unmuted", fmt.Sprintf("%s auto-unmuted after %d minutes.", mention(key.UserID), minutes))
	})
}

// PendingUnmute returns when the member's scheduled unmute is due.
func (d *Dispatcher) PendingUnmute(guildID, userID string) (time.Time, bool) {
	return d.scheduler.Pending(scheduler.Key{GuildID: guildID, UserID: userID})
}

func (d *Dispatcher) Unmute(ctx context.Context, inv Invocation, userID string) error {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return &ActionError{Op: "unmute", Err: err}
	}
	role := platform.RoleByName(roles, d.cfg.MutedRoleName)
	if role == nil {
		return notice("%s role doesn't exist.", d.cfg.MutedRoleName)
	}
	if err := d.platform.RemoveMemberRole(ctx, inv.GuildID, member.User.ID, role.ID, ""); err != nil {
		return &ActionError{Op: "unmute", Err: err}
	}
	d.scheduler.Cancel(scheduler.Key{GuildID: inv.GuildID, UserID: member.User.ID})
	metrics.PendingUnmutes.Set(float64(d.scheduler.Len()))

	d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s has been unmuted.", mention(member.User.ID)))
	d.audit.LogAction(ctx, inv.GuildID, "Member Unmuted", fmt.Sprintf("%s unmuted by %s.", mention(member.User.ID), mention(inv.Author.ID)))
	return nil
}

// ensureMutedRole finds or creates the muted role. A created role is denied
// speaking in every text and voice channel; channels that refuse the
// overwrite are skipped.
func (d *Dispatcher) ensureMutedRole(ctx context.Context, guildID string) (*discordgo.Role, error) {
	v, err, _ := d.mutedRole.Do(guildID, func() (interface{}, error) {
		roles, err := d.platform.Roles(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
		if role := platform.RoleByName(roles, d.cfg.MutedRoleName); role != nil {
			return role, nil
		}
		role, err := d.platform.CreateRole(ctx, guildID, &discordgo.RoleParams{Name: d.cfg.MutedRoleName}, "Create muted role for moderation bot")
		if err != nil {
			return nil, fmt.Errorf("create role: %w", err)
		}
		d.logger.Info("muted role created", zap.String("guild_id", guildID), zap.String("role_id", role.ID))

		channels, err := d.platform.GuildChannels(ctx, guildID)
		if err != nil {
			platform.Swallow(d.logger, platform.StepMuteOverwrite, err, zap.String("guild_id", guildID))
			return role, nil
		}
		for _, channel := range channels {
			switch channel.Type {
			case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildNews:
			default:
				continue
			}
			err := d.platform.SetChannelPermission(ctx, channel.ID, role.ID, discordgo.PermissionOverwriteTypeRole, 0, mutedDeny)
			platform.Swallow(d.logger, platform.StepMuteOverwrite, err, zap.String("channel_id", channel.ID))
		}
		return role, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discordgo.Role), nil
}
