package moderation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"modbot/internal/platform"
	"modbot/internal/utils"

	"github.com/bwmarrin/discordgo"
)

// RoleOptions are the optional settings of createrole.
type RoleOptions struct {
	Color       *int
	Hoist       *bool
	Mentionable *bool
}

// ParseRoleArgs splits createrole arguments into the role name and its
// "color:", "hoist:" and "mentionable:" options.
func ParseRoleArgs(args []string) (string, RoleOptions, error) {
	var opts RoleOptions
	var nameParts []string
	for _, arg := range args {
		key, value, found := strings.Cut(arg, ":")
		if !found {
			nameParts = append(nameParts, arg)
			continue
		}
		switch strings.ToLower(key) {
		case "color", "colour":
			color, ok := utils.ParseColor(value)
			if !ok {
				return "", opts, badArgument("color", value)
			}
			opts.Color = &color
		case "hoist":
			hoist, ok := utils.ParseBool(value)
			if !ok {
				return "", opts, badArgument("hoist", value)
			}
			opts.Hoist = &hoist
		case "mentionable":
			mentionable, ok := utils.ParseBool(value)
			if !ok {
				return "", opts, badArgument("mentionable", value)
			}
			opts.Mentionable = &mentionable
		default:
			nameParts = append(nameParts, arg)
		}
	}
	name := strings.Join(nameParts, " ")
	if name == "" {
		return "", opts, ErrMissingArgument
	}
	return name, opts, nil
}

// AddRole gives a member the role with the exact name roleName, creating the
// role first when the guild has none by that name.
func (d *Dispatcher) AddRole(ctx context.Context, inv Invocation, userID, roleName string) error {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	if roleName == "" {
		return ErrMissingArgument
	}
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return &ActionError{Op: "add role", Err: err}
	}
	role := platform.RoleByName(roles, roleName)
	if role == nil {
		role, err = d.platform.CreateRole(ctx, inv.GuildID, &discordgo.RoleParams{Name: roleName}, "Role created by "+userTag(inv.Author))
		if err != nil {
			return &ActionError{Op: "create role", Err: err}
		}
	}
	if err := d.platform.AddMemberRole(ctx, inv.GuildID, member.User.ID, role.ID, ""); err != nil {
		return &ActionError{Op: "add role", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Added role %s to %s.", role.Name, mention(member.User.ID)))
	d.audit.LogAction(ctx, inv.GuildID, "Role Added", fmt.Sprintf("Added role %s to %s by %s.", role.Name, mention(member.User.ID), mention(inv.Author.ID)))
	return nil
}

func (d *Dispatcher) RemoveRole(ctx context.Context, inv Invocation, userID, roleName string) error {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	if roleName == "" {
		return ErrMissingArgument
	}
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return &ActionError{Op: "remove role", Err: err}
	}
	role := platform.RoleByName(roles, roleName)
	if role == nil {
		return notice("Role not found.")
	}
	if err := d.platform.RemoveMemberRole(ctx, inv.GuildID, member.User.ID, role.ID, ""); err != nil {
		return &ActionError{Op: "remove role", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Removed role %s from %s.", role.Name, mention(member.User.ID)))
	d.audit.LogAction(ctx, inv.GuildID, "Role Removed", fmt.Sprintf("Removed role %s from %s by %s.", role.Name, mention(member.User.ID), mention(inv.Author.ID)))
	return nil
}

// Assign gives a member an existing role after checking that both the
// invoker and the bot rank above it.
func (d *Dispatcher) Assign(ctx context.Context, inv Invocation, userID, roleRef string) error {
	member, role, err := d.prepareAssignment(ctx, inv, userID, roleRef)
	if err != nil {
		return err
	}
	if err := d.platform.AddMemberRole(ctx, inv.GuildID, member.User.ID, role.ID, "Assigned by "+userTag(inv.Author)); err != nil {
		return &ActionError{Op: "assign role", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Assigned role %s to %s.", role.Name, mention(member.User.ID)))
	d.audit.LogAction(ctx, inv.GuildID, "Role Assigned", fmt.Sprintf("Assigned role %s to %s by %s.", role.Name, mention(member.User.ID), mention(inv.Author.ID)))
	return nil
}

// Remove takes an existing role from a member under the same checks as Assign.
func (d *Dispatcher) Remove(ctx context.Context, inv Invocation, userID, roleRef string) error {
	member, role, err := d.prepareAssignment(ctx, inv, userID, roleRef)
	if err != nil {
		return err
	}
	if !platform.HasRole(member, role.ID) {
		return notice("%s does not have the role %s.", mention(member.User.ID), role.Name)
	}
	if err := d.platform.RemoveMemberRole(ctx, inv.GuildID, member.User.ID, role.ID, "Removed by "+userTag(inv.Author)); err != nil {
		return &ActionError{Op: "remove role", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Removed role %s from %s.", role.Name, mention(member.User.ID)))
	d.audit.LogAction(ctx, inv.GuildID, "Role Removed", fmt.Sprintf("Removed role %s from %s by %s.", role.Name, mention(member.User.ID), mention(inv.Author.ID)))
	return nil
}

func (d *Dispatcher) prepareAssignment(ctx context.Context, inv Invocation, userID, roleRef string) (*discordgo.Member, *discordgo.Role, error) {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return nil, nil, err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return nil, nil, err
	}
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return nil, nil, fmt.Errorf("list roles: %w", err)
	}
	role, err := resolveRole(roles, roleRef)
	if err != nil {
		return nil, nil, err
	}
	if role.ID == inv.GuildID || role.Managed {
		return nil, nil, notice("The role %s cannot be assigned.", role.Name)
	}
	if err := d.checkHierarchy(ctx, inv, roles, role); err != nil {
		return nil, nil, err
	}
	return member, role, nil
}

// checkHierarchy requires the invoker, unless they own the guild, and the
// bot to each hold a role positioned strictly above target.
func (d *Dispatcher) checkHierarchy(ctx context.Context, inv Invocation, roles []*discordgo.Role, target *discordgo.Role) error {
	guild, err := d.platform.Guild(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("load guild: %w", err)
	}
	if inv.Author.ID != guild.OwnerID {
		invoker, err := d.platform.Member(ctx, inv.GuildID, inv.Author.ID)
		if err != nil {
			return fmt.Errorf("load invoker: %w", err)
		}
		if top := platform.TopRole(roles, invoker); top == nil || top.Position <= target.Position {
			return notice("You can only manage roles below your highest role.")
		}
	}
	botMember, err := d.platform.Member(ctx, inv.GuildID, d.platform.BotUserID())
	if err != nil {
		return fmt.Errorf("load bot member: %w", err)
	}
	if top := platform.TopRole(roles, botMember); top == nil || top.Position <= target.Position {
		return notice("I can only manage roles below my highest role.")
	}
	return nil
}

// resolveRole accepts a role mention, an ID, or a name. Exact name matches
// win over case-insensitive ones.
func resolveRole(roles []*discordgo.Role, ref string) (*discordgo.Role, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrMissingArgument
	}
	if id, ok := utils.ParseRoleID(ref); ok {
		for _, role := range roles {
			if role.ID == id {
				return role, nil
			}
		}
	}
	if role := platform.RoleByName(roles, ref); role != nil {
		return role, nil
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, ref) {
			return role, nil
		}
	}
	return nil, notice("Role not found.")
}

func (d *Dispatcher) CreateRole(ctx context.Context, inv Invocation, name string, opts RoleOptions) error {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return ErrMissingArgument
	}
	params := &discordgo.RoleParams{
		Name:        name,
		Color:       opts.Color,
		Hoist:       opts.Hoist,
		Mentionable: opts.Mentionable,
	}
	role, err := d.platform.CreateRole(ctx, inv.GuildID, params, "Role created by "+userTag(inv.Author))
	if err != nil {
		return &ActionError{Op: "create role", Err: err}
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Created role %s.", role.Name))
	d.audit.LogAction(ctx, inv.GuildID, "Role Created", fmt.Sprintf("Role %s created by %s.", role.Name, mention(inv.Author.ID)))
	return nil
}

// SetPerms replaces a role's permission set.
func (d *Dispatcher) SetPerms(ctx context.Context, inv Invocation, roleRef, list string) error {
	if err := d.authorize(inv, discordgo.PermissionManageRoles); err != nil {
		return err
	}
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	role, err := resolveRole(roles, roleRef)
	if err != nil {
		return err
	}
	perms, err := ParsePermissions(list)
	if err != nil {
		return err
	}
	if err := d.checkHierarchy(ctx, inv, roles, role); err != nil {
		return err
	}
	if _, err := d.platform.EditRole(ctx, inv.GuildID, role.ID, &discordgo.RoleParams{Permissions: &perms}); err != nil {
		return &ActionError{Op: "update permissions", Err: err}
	}
	summary := "none"
	if names := PermissionNames(perms); len(names) > 0 {
		summary = strings.Join(names, ", ")
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Updated permissions for %s: %s", role.Name, summary))
	d.audit.LogAction(ctx, inv.GuildID, "Role Permissions Updated", fmt.Sprintf("Permissions for %s set to %s by %s.", role.Name, summary, mention(inv.Author.ID)))
	return nil
}

// RoleInfo shows a role's settings as an embed.
func (d *Dispatcher) RoleInfo(ctx context.Context, inv Invocation, roleRef string) error {
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	role, err := resolveRole(roles, roleRef)
	if err != nil {
		return err
	}
	perms := "none"
	if role.Permissions&discordgo.PermissionAdministrator != 0 {
		perms = "administrator"
	} else if names := PermissionNames(role.Permissions); len(names) > 0 {
		perms = strings.Join(names, ", ")
	}
	embed := &discordgo.MessageEmbed{
		Title: role.Name,
		Color: role.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "ID", Value: role.ID, Inline: true},
			{Name: "Color", Value: fmt.Sprintf("#%06x", role.Color), Inline: true},
			{Name: "Position", Value: fmt.Sprint(role.Position), Inline: true},
			{Name: "Hoisted", Value: yesNo(role.Hoist), Inline: true},
			{Name: "Mentionable", Value: yesNo(role.Mentionable), Inline: true},
			{Name: "Managed", Value: yesNo(role.Managed), Inline: true},
			{Name: "Permissions", Value: perms},
		},
	}
	if err := d.platform.SendEmbed(ctx, inv.ChannelID, embed); err != nil {
		return &ActionError{Op: "send role info", Err: err}
	}
	return nil
}

// ListRoles lists the guild's roles from highest to lowest, without @everyone.
func (d *Dispatcher) ListRoles(ctx context.Context, inv Invocation) error {
	roles, err := d.platform.Roles(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	sorted := make([]*discordgo.Role, 0, len(roles))
	for _, role := range roles {
		if role.ID != inv.GuildID {
			sorted = append(sorted, role)
		}
	}
	if len(sorted) == 0 {
		d.reply(ctx, inv.ChannelID, "This server has no roles.")
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	var b strings.Builder
	fmt.Fprintf(&b, "Roles (%d):", len(sorted))
	for _, role := range sorted {
		fmt.Fprintf(&b, "\n%s (%s)", role.Name, role.ID)
	}
	d.reply(ctx, inv.ChannelID, b.String())
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
