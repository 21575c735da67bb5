// Package platform narrows the Discord session to the capabilities the
// moderation code needs, so handlers can run against a fake in tests.
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("not found")

type MessageSink interface {
	SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error)
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// DeleteMessages removes messageIDs from a channel, at most 100 per request.
	DeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
	// ChannelMessages returns up to limit messages older than beforeID, newest first.
	ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	DirectMessage(ctx context.Context, userID, content string) error
}

type RoleManager interface {
	Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error)
	CreateRole(ctx context.Context, guildID string, params *discordgo.RoleParams, reason string) (*discordgo.Role, error)
	EditRole(ctx context.Context, guildID, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
}

type MemberManager interface {
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	Kick(ctx context.Context, guildID, userID, reason string) error
}

type BanManager interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Unban(ctx context.Context, guildID, userID string) error
	Bans(ctx context.Context, guildID string) ([]*discordgo.GuildBan, error)
}

type ChannelManager interface {
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	CreateTextChannel(ctx context.Context, guildID, name string) (*discordgo.Channel, error)
	SetChannelPermission(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error
}

type GuildDirectory interface {
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	// MemberPermissions folds the guild-level permissions of a member.
	MemberPermissions(ctx context.Context, guildID, userID string) (int64, error)
	// ChannelPermissions resolves a member's permissions in one channel,
	// overwrites included.
	ChannelPermissions(ctx context.Context, userID, channelID string) (int64, error)
	BotUserID() string
}

// Platform is everything the bot asks of Discord.
type Platform interface {
	MessageSink
	RoleManager
	MemberManager
	BanManager
	ChannelManager
	GuildDirectory
}

// GuildPermissions folds the @everyone role and the member's roles. The guild
// owner and administrators receive every permission.
func GuildPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

// TopRole returns the highest positioned role the member holds, or nil when it
// only has @everyone.
func TopRole(roles []*discordgo.Role, member *discordgo.Member) *discordgo.Role {
	if member == nil {
		return nil
	}
	held := make(map[string]struct{}, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = struct{}{}
	}
	var top *discordgo.Role
	for _, role := range roles {
		if _, ok := held[role.ID]; !ok {
			continue
		}
		if top == nil || role.Position > top.Position {
			top = role
		}
	}
	return top
}

// RoleByName returns the first role with an exact name match.
func RoleByName(roles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}

func HasRole(member *discordgo.Member, roleID string) bool {
	if member == nil {
		return false
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
