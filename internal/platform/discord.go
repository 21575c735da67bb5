package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const bulkDeleteLimit = 100

// Discord implements Platform over a discordgo session, preferring the state
// cache for reads and falling back to REST.
type Discord struct {
	session *discordgo.Session
}

func New(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func requestOptions(ctx context.Context, reason string) []discordgo.RequestOption {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	return opts
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// DeleteMessages bulk deletes in chunks. Discord refuses bulk deletion of
// messages older than two weeks, so a failed chunk is retried one by one.
func (d *Discord) DeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	var errs []error
	for start := 0; start < len(messageIDs); start += bulkDeleteLimit {
		end := start + bulkDeleteLimit
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		chunk := messageIDs[start:end]
		if err := d.session.ChannelMessagesBulkDelete(channelID, chunk, discordgo.WithContext(ctx)); err == nil {
			continue
		}
		for _, id := range chunk {
			if err := d.session.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)); err != nil {
				errs = append(errs, fmt.Errorf("delete message %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Discord) ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return d.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
}

func (d *Discord) DirectMessage(ctx context.Context, userID, content string) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil && len(guild.Roles) > 0 {
		return guild.Roles, nil
	}
	return d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) CreateRole(ctx context.Context, guildID string, params *discordgo.RoleParams, reason string) (*discordgo.Role, error) {
	return d.session.GuildRoleCreate(guildID, params, requestOptions(ctx, reason)...)
}

func (d *Discord) EditRole(ctx context.Context, guildID, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	return d.session.GuildRoleEdit(guildID, roleID, params, discordgo.WithContext(ctx))
}

func (d *Discord) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID, requestOptions(ctx, reason)...)
}

func (d *Discord) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID, requestOptions(ctx, reason)...)
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := d.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
}

func (d *Discord) Unban(ctx context.Context, guildID, userID string) error {
	return d.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx))
}

func (d *Discord) Bans(ctx context.Context, guildID string) ([]*discordgo.GuildBan, error) {
	return d.session.GuildBans(guildID, 1000, "", "", discordgo.WithContext(ctx))
}

func (d *Discord) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channel, err := d.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	return d.session.Channel(channelID, discordgo.WithContext(ctx))
}

func (d *Discord) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil && len(guild.Channels) > 0 {
		return guild.Channels, nil
	}
	return d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) CreateTextChannel(ctx context.Context, guildID, name string) (*discordgo.Channel, error) {
	return d.session.GuildChannelCreate(guildID, name, discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx))
}

func (d *Discord) SetChannelPermission(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	return d.session.ChannelPermissionSet(channelID, targetID, targetType, allow, deny, discordgo.WithContext(ctx))
}

func (d *Discord) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil {
		return guild, nil
	}
	return d.session.Guild(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) MemberPermissions(ctx context.Context, guildID, userID string) (int64, error) {
	guild, err := d.Guild(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("load guild: %w", err)
	}
	member, err := d.Member(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("load member: %w", err)
	}
	if len(guild.Roles) == 0 {
		roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return 0, fmt.Errorf("load roles: %w", err)
		}
		copied := *guild
		copied.Roles = roles
		guild = &copied
	}
	return GuildPermissions(guild, member), nil
}

func (d *Discord) ChannelPermissions(ctx context.Context, userID, channelID string) (int64, error) {
	return d.session.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
}

func (d *Discord) BotUserID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}
