// Package platformtest provides an in-memory platform for handler tests.
package platformtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"modbot/internal/platform"

	"github.com/bwmarrin/discordgo"
)

type SentMessage struct {
	ChannelID string
	Content   string
}

type SentEmbed struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
}

type RoleChange struct {
	GuildID string
	UserID  string
	RoleID  string
	Reason  string
}

type Overwrite struct {
	ChannelID string
	TargetID  string
	Type      discordgo.PermissionOverwriteType
	Allow     int64
	Deny      int64
}

// Fake records every mutating call. Failures are injected per method name
// with Fail, e.g. Fail("DirectMessage", err).
type Fake struct {
	mu sync.Mutex

	botID    string
	nextID   int
	guilds   map[string]*discordgo.Guild
	members  map[string]map[string]*discordgo.Member
	bans     map[string][]*discordgo.GuildBan
	history  map[string][]*discordgo.Message
	failures map[string]error

	Sent        []SentMessage
	Embeds      []SentEmbed
	DMs         []SentMessage
	Deleted     []string
	Kicked      []string
	Banned      []string
	Unbanned    []string
	RoleAdds    []RoleChange
	RoleRemoves []RoleChange
	Overwrites  []Overwrite
	Calls       map[string]int
}

var _ platform.Platform = (*Fake)(nil)

func New(botID string) *Fake {
	return &Fake{
		botID:    botID,
		nextID:   1000,
		guilds:   make(map[string]*discordgo.Guild),
		members:  make(map[string]map[string]*discordgo.Member),
		bans:     make(map[string][]*discordgo.GuildBan),
		history:  make(map[string][]*discordgo.Message),
		failures: make(map[string]error),
		Calls:    make(map[string]int),
	}
}

func (f *Fake) newID() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

// Fail makes every later call of method return err. A nil err clears it.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

func (f *Fake) call(method string) error {
	f.Calls[method]++
	return f.failures[method]
}

// AddGuild creates a guild with its @everyone role.
func (f *Fake) AddGuild(id, name, ownerID string) *discordgo.Guild {
	f.mu.Lock()
	defer f.mu.Unlock()
	guild := &discordgo.Guild{
		ID:      id,
		Name:    name,
		OwnerID: ownerID,
		Roles:   []*discordgo.Role{{ID: id, Name: "@everyone", Permissions: discordgo.PermissionSendMessages}},
	}
	f.guilds[id] = guild
	f.members[id] = make(map[string]*discordgo.Member)
	return guild
}

func (f *Fake) AddRole(guildID string, role *discordgo.Role) *discordgo.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	if role.ID == "" {
		role.ID = f.newID()
	}
	guild := f.guilds[guildID]
	guild.Roles = append(guild.Roles, role)
	return role
}

func (f *Fake) AddMember(guildID string, user *discordgo.User, roleIDs ...string) *discordgo.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	member := &discordgo.Member{GuildID: guildID, User: user, Roles: append([]string{}, roleIDs...)}
	f.members[guildID][user.ID] = member
	return member
}

func (f *Fake) AddChannel(guildID string, channel *discordgo.Channel) *discordgo.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel.ID == "" {
		channel.ID = f.newID()
	}
	channel.GuildID = guildID
	guild := f.guilds[guildID]
	guild.Channels = append(guild.Channels, channel)
	return channel
}

func (f *Fake) AddBan(guildID string, user *discordgo.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans[guildID] = append(f.bans[guildID], &discordgo.GuildBan{User: user})
}

// AddHistory appends a message to a channel's history, oldest first.
func (f *Fake) AddHistory(channelID, authorID, content string) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := &discordgo.Message{ID: f.newID(), ChannelID: channelID, Content: content, Author: &discordgo.User{ID: authorID}}
	f.history[channelID] = append(f.history[channelID], msg)
	return msg
}

// MemberRoles returns the role IDs a member currently holds.
func (f *Fake) MemberRoles(guildID, userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	member := f.members[guildID][userID]
	if member == nil {
		return nil
	}
	return append([]string{}, member.Roles...)
}

func (f *Fake) RoleNamed(guildID, name string) *discordgo.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	return platform.RoleByName(f.guilds[guildID].Roles, name)
}

// SentTo returns the contents of messages sent to a channel.
func (f *Fake) SentTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, msg := range f.Sent {
		if msg.ChannelID == channelID {
			out = append(out, msg.Content)
		}
	}
	return out
}

// EmbedTitles lists the titles of every embed sent, in order.
func (f *Fake) EmbedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Embeds))
	for _, e := range f.Embeds {
		out = append(out, e.Embed.Title)
	}
	return out
}

func (f *Fake) SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("SendMessage"); err != nil {
		return nil, err
	}
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, Content: content})
	msg := &discordgo.Message{ID: f.newID(), ChannelID: channelID, Content: content, Author: &discordgo.User{ID: f.botID, Bot: true}}
	f.history[channelID] = append(f.history[channelID], msg)
	return msg, nil
}

func (f *Fake) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("SendEmbed"); err != nil {
		return err
	}
	f.Embeds = append(f.Embeds, SentEmbed{ChannelID: channelID, Embed: embed})
	return nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteMessage"); err != nil {
		return err
	}
	f.deleteLocked(channelID, messageID)
	return nil
}

func (f *Fake) DeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteMessages"); err != nil {
		return err
	}
	for _, id := range messageIDs {
		f.deleteLocked(channelID, id)
	}
	return nil
}

func (f *Fake) deleteLocked(channelID, messageID string) {
	f.Deleted = append(f.Deleted, messageID)
	history := f.history[channelID]
	for i, msg := range history {
		if msg.ID == messageID {
			f.history[channelID] = append(history[:i:i], history[i+1:]...)
			return
		}
	}
}

func (f *Fake) ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ChannelMessages"); err != nil {
		return nil, err
	}
	history := f.history[channelID]
	end := len(history)
	if beforeID != "" {
		for i, msg := range history {
			if msg.ID == beforeID {
				end = i
				break
			}
		}
	}
	var out []*discordgo.Message
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (f *Fake) DirectMessage(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DMs = append(f.DMs, SentMessage{ChannelID: userID, Content: content})
	return f.call("DirectMessage")
}

func (f *Fake) Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Roles"); err != nil {
		return nil, err
	}
	guild := f.guilds[guildID]
	if guild == nil {
		return nil, platform.ErrNotFound
	}
	return append([]*discordgo.Role{}, guild.Roles...), nil
}

func (f *Fake) CreateRole(ctx context.Context, guildID string, params *discordgo.RoleParams, reason string) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateRole"); err != nil {
		return nil, err
	}
	role := &discordgo.Role{ID: f.newID(), Name: params.Name, Position: 1}
	applyParams(role, params)
	guild := f.guilds[guildID]
	guild.Roles = append(guild.Roles, role)
	return role, nil
}

func (f *Fake) EditRole(ctx context.Context, guildID, roleID string, params *discordgo.RoleParams) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EditRole"); err != nil {
		return nil, err
	}
	for _, role := range f.guilds[guildID].Roles {
		if role.ID == roleID {
			applyParams(role, params)
			return role, nil
		}
	}
	return nil, platform.ErrNotFound
}

func applyParams(role *discordgo.Role, params *discordgo.RoleParams) {
	if params.Name != "" {
		role.Name = params.Name
	}
	if params.Color != nil {
		role.Color = *params.Color
	}
	if params.Hoist != nil {
		role.Hoist = *params.Hoist
	}
	if params.Mentionable != nil {
		role.Mentionable = *params.Mentionable
	}
	if params.Permissions != nil {
		role.Permissions = *params.Permissions
	}
}

func (f *Fake) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AddMemberRole"); err != nil {
		return err
	}
	member := f.members[guildID][userID]
	if member == nil {
		return platform.ErrNotFound
	}
	if !platform.HasRole(member, roleID) {
		member.Roles = append(member.Roles, roleID)
	}
	f.RoleAdds = append(f.RoleAdds, RoleChange{GuildID: guildID, UserID: userID, RoleID: roleID, Reason: reason})
	return nil
}

func (f *Fake) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RemoveMemberRole"); err != nil {
		return err
	}
	member := f.members[guildID][userID]
	if member == nil {
		return platform.ErrNotFound
	}
	kept := member.Roles[:0]
	for _, id := range member.Roles {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	member.Roles = kept
	f.RoleRemoves = append(f.RoleRemoves, RoleChange{GuildID: guildID, UserID: userID, RoleID: roleID, Reason: reason})
	return nil
}

func (f *Fake) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Member"); err != nil {
		return nil, err
	}
	member := f.members[guildID][userID]
	if member == nil {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	copied := *member
	copied.Roles = append([]string{}, member.Roles...)
	return &copied, nil
}

func (f *Fake) Kick(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Kick"); err != nil {
		return err
	}
	delete(f.members[guildID], userID)
	f.Kicked = append(f.Kicked, userID)
	return nil
}

func (f *Fake) Ban(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Ban"); err != nil {
		return err
	}
	user := &discordgo.User{ID: userID}
	if member := f.members[guildID][userID]; member != nil && member.User != nil {
		user = member.User
	}
	delete(f.members[guildID], userID)
	f.bans[guildID] = append(f.bans[guildID], &discordgo.GuildBan{Reason: reason, User: user})
	f.Banned = append(f.Banned, userID)
	return nil
}

func (f *Fake) Unban(ctx context.Context, guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Unban"); err != nil {
		return err
	}
	bans := f.bans[guildID]
	for i, ban := range bans {
		if ban.User.ID == userID {
			f.bans[guildID] = append(bans[:i:i], bans[i+1:]...)
			break
		}
	}
	f.Unbanned = append(f.Unbanned, userID)
	return nil
}

func (f *Fake) Bans(ctx context.Context, guildID string) ([]*discordgo.GuildBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Bans"); err != nil {
		return nil, err
	}
	return append([]*discordgo.GuildBan{}, f.bans[guildID]...), nil
}

func (f *Fake) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Channel"); err != nil {
		return nil, err
	}
	for _, guild := range f.guilds {
		for _, channel := range guild.Channels {
			if channel.ID == channelID {
				return channel, nil
			}
		}
	}
	return nil, fmt.Errorf("channel %s: %w", channelID, platform.ErrNotFound)
}

func (f *Fake) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GuildChannels"); err != nil {
		return nil, err
	}
	guild := f.guilds[guildID]
	if guild == nil {
		return nil, platform.ErrNotFound
	}
	return append([]*discordgo.Channel{}, guild.Channels...), nil
}

func (f *Fake) CreateTextChannel(ctx context.Context, guildID, name string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateTextChannel"); err != nil {
		return nil, err
	}
	channel := &discordgo.Channel{ID: f.newID(), GuildID: guildID, Name: name, Type: discordgo.ChannelTypeGuildText}
	guild := f.guilds[guildID]
	guild.Channels = append(guild.Channels, channel)
	return channel, nil
}

func (f *Fake) SetChannelPermission(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("SetChannelPermission"); err != nil {
		return err
	}
	f.Overwrites = append(f.Overwrites, Overwrite{ChannelID: channelID, TargetID: targetID, Type: targetType, Allow: allow, Deny: deny})
	for _, guild := range f.guilds {
		for _, channel := range guild.Channels {
			if channel.ID != channelID {
				continue
			}
			kept := channel.PermissionOverwrites[:0:0]
			for _, ow := range channel.PermissionOverwrites {
				if ow.ID != targetID {
					kept = append(kept, ow)
				}
			}
			channel.PermissionOverwrites = append(kept, &discordgo.PermissionOverwrite{ID: targetID, Type: targetType, Allow: allow, Deny: deny})
		}
	}
	return nil
}

func (f *Fake) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Guild"); err != nil {
		return nil, err
	}
	guild := f.guilds[guildID]
	if guild == nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, platform.ErrNotFound)
	}
	return guild, nil
}

func (f *Fake) MemberPermissions(ctx context.Context, guildID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("MemberPermissions"); err != nil {
		return 0, err
	}
	guild := f.guilds[guildID]
	member := f.members[guildID][userID]
	if guild == nil || member == nil {
		return 0, platform.ErrNotFound
	}
	return platform.GuildPermissions(guild, member), nil
}

// ChannelPermissions ignores overwrites and reports guild-level permissions.
func (f *Fake) ChannelPermissions(ctx context.Context, userID, channelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ChannelPermissions"); err != nil {
		return 0, err
	}
	for guildID, guild := range f.guilds {
		for _, channel := range guild.Channels {
			if channel.ID == channelID {
				return platform.GuildPermissions(guild, f.members[guildID][userID]), nil
			}
		}
	}
	return 0, platform.ErrNotFound
}

func (f *Fake) BotUserID() string {
	return f.botID
}
