package moderation

import (
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type namedPermission struct {
	name string
	bit  int64
}

// permissionNames lists the permissions setperms understands, in display order.
var permissionNames = []namedPermission{
	{"administrator", discordgo.PermissionAdministrator},
	{"manage_guild", discordgo.PermissionManageServer},
	{"manage_roles", discordgo.PermissionManageRoles},
	{"manage_channels", discordgo.PermissionManageChannels},
	{"manage_messages", discordgo.PermissionManageMessages},
	{"manage_nicknames", discordgo.PermissionManageNicknames},
	{"manage_webhooks", discordgo.PermissionManageWebhooks},
	{"kick_members", discordgo.PermissionKickMembers},
	{"ban_members", discordgo.PermissionBanMembers},
	{"moderate_members", discordgo.PermissionModerateMembers},
	{"view_audit_log", discordgo.PermissionViewAuditLogs},
	{"create_instant_invite", discordgo.PermissionCreateInstantInvite},
	{"change_nickname", discordgo.PermissionChangeNickname},
	{"view_channel", discordgo.PermissionViewChannel},
	{"send_messages", discordgo.PermissionSendMessages},
	{"embed_links", discordgo.PermissionEmbedLinks},
	{"attach_files", discordgo.PermissionAttachFiles},
	{"add_reactions", discordgo.PermissionAddReactions},
	{"read_message_history", discordgo.PermissionReadMessageHistory},
	{"mention_everyone", discordgo.PermissionMentionEveryone},
	{"use_external_emojis", discordgo.PermissionUseExternalEmojis},
	{"connect", discordgo.PermissionVoiceConnect},
	{"speak", discordgo.PermissionVoiceSpeak},
	{"mute_members", discordgo.PermissionVoiceMuteMembers},
	{"deafen_members", discordgo.PermissionVoiceDeafenMembers},
	{"move_members", discordgo.PermissionVoiceMoveMembers},
}

var permissionAliases = map[string]string{
	"manage_server": "manage_guild",
	"read_messages": "view_channel",
	"timeout":       "moderate_members",
}

func allPermissions() int64 {
	var all int64
	for _, p := range permissionNames {
		all |= p.bit
	}
	return all
}

// ParsePermissions reads "all", "clear" or a comma or space separated list of
// permission names into a bit set.
func ParsePermissions(list string) (int64, error) {
	list = strings.ToLower(strings.TrimSpace(list))
	switch list {
	case "":
		return 0, ErrMissingArgument
	case "all":
		return allPermissions(), nil
	case "clear", "none":
		return 0, nil
	}

	lookup := make(map[string]int64, len(permissionNames))
	for _, p := range permissionNames {
		lookup[p.name] = p.bit
	}
	var perms int64
	var unknown []string
	for _, field := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		name := strings.ReplaceAll(field, "-", "_")
		if alias, ok := permissionAliases[name]; ok {
			name = alias
		}
		bit, ok := lookup[name]
		if !ok {
			unknown = append(unknown, field)
			continue
		}
		perms |= bit
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return 0, notice("Unknown permission: %s", strings.Join(unknown, ", "))
	}
	return perms, nil
}

// PermissionNames lists the known permissions set in perms.
func PermissionNames(perms int64) []string {
	var names []string
	for _, p := range permissionNames {
		if perms&p.bit == p.bit {
			names = append(names, p.name)
		}
	}
	return names
}
