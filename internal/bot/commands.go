package bot

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"modbot/internal/metrics"
	"modbot/internal/moderation"
	"modbot/internal/platform"
	"modbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type commandFunc func(ctx context.Context, inv moderation.Invocation, args commandArgs) error

type command struct {
	perm int64
	run  commandFunc
}

// Router parses prefix commands and hands them to the dispatcher.
type Router struct {
	prefix     string
	dispatcher *moderation.Dispatcher
	directory  platform.GuildDirectory
	logger     *zap.Logger
	commands   map[string]command
}

func NewRouter(prefix string, dispatcher *moderation.Dispatcher, directory platform.GuildDirectory, logger *zap.Logger) *Router {
	r := &Router{
		prefix:     prefix,
		dispatcher: dispatcher,
		directory:  directory,
		logger:     logger,
	}
	d := dispatcher
	r.commands = map[string]command{
		"kick": {discordgo.PermissionKickMembers, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			return d.Kick(ctx, inv, userID, a.rest(1))
		}},
		"ban": {discordgo.PermissionBanMembers, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			return d.Ban(ctx, inv, userID, a.rest(1))
		}},
		"unban": {discordgo.PermissionBanMembers, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			if a.len() == 0 {
				return moderation.ErrMissingArgument
			}
			return d.Unban(ctx, inv, a.rest(0))
		}},
		"mute": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			// the duration is optional; a non-numeric token starts the reason
			if minutes, err := strconv.Atoi(a.at(1)); err == nil {
				return d.Mute(ctx, inv, userID, minutes, a.rest(2))
			}
			return d.Mute(ctx, inv, userID, 0, a.rest(1))
		}},
		"unmute": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			return d.Unmute(ctx, inv, userID)
		}},
		"warn": {discordgo.PermissionKickMembers, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			return d.Warn(ctx, inv, userID, a.rest(1))
		}},
		"warnings": {discordgo.PermissionKickMembers, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			if a.len() == 0 {
				return d.Warnings(ctx, inv, "")
			}
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			return d.Warnings(ctx, inv, userID)
		}},
		"clearwarns": {discordgo.PermissionKickMembers, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, err := a.user(0)
			if err != nil {
				return err
			}
			return d.ClearWarns(ctx, inv, userID)
		}},
		"purge": {discordgo.PermissionManageMessages, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			amount := moderation.DefaultPurgeAmount
			if a.len() > 0 {
				parsed, err := strconv.Atoi(a.at(0))
				if err != nil {
					return &moderation.ArgumentError{Name: "amount", Value: a.at(0)}
				}
				amount = parsed
			}
			return d.Purge(ctx, inv, amount)
		}},
		"lock": {discordgo.PermissionManageChannels, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			channelID, err := a.optionalChannel(0)
			if err != nil {
				return err
			}
			return d.Lock(ctx, inv, channelID)
		}},
		"unlock": {discordgo.PermissionManageChannels, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			channelID, err := a.optionalChannel(0)
			if err != nil {
				return err
			}
			return d.Unlock(ctx, inv, channelID)
		}},
		"addrole": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, roleName, err := a.userAndRest()
			if err != nil {
				return err
			}
			return d.AddRole(ctx, inv, userID, roleName)
		}},
		"removerole": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, roleName, err := a.userAndRest()
			if err != nil {
				return err
			}
			return d.RemoveRole(ctx, inv, userID, roleName)
		}},
		"assign": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, role, err := a.userAndRest()
			if err != nil {
				return err
			}
			return d.Assign(ctx, inv, userID, role)
		}},
		"remove": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			userID, role, err := a.userAndRest()
			if err != nil {
				return err
			}
			return d.Remove(ctx, inv, userID, role)
		}},
		"createrole": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			name, opts, err := moderation.ParseRoleArgs(a.fields)
			if err != nil {
				return err
			}
			return d.CreateRole(ctx, inv, name, opts)
		}},
		"setperms": {discordgo.PermissionManageRoles, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			if a.len() < 2 {
				return moderation.ErrMissingArgument
			}
			return d.SetPerms(ctx, inv, a.at(0), a.rest(1))
		}},
		"roleinfo": {0, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			if a.len() == 0 {
				return moderation.ErrMissingArgument
			}
			return d.RoleInfo(ctx, inv, a.rest(0))
		}},
		"listroles": {0, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			return d.ListRoles(ctx, inv)
		}},
		"blacklist": {discordgo.PermissionManageServer, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			switch a.at(0) {
			case "add":
				if a.len() < 2 {
					return moderation.ErrMissingArgument
				}
				return d.BlacklistAdd(ctx, inv, a.rest(1))
			case "remove":
				if a.len() < 2 {
					return moderation.ErrMissingArgument
				}
				return d.BlacklistRemove(ctx, inv, a.rest(1))
			default:
				return d.BlacklistList(ctx, inv)
			}
		}},
		"modhelp": {0, func(ctx context.Context, inv moderation.Invocation, a commandArgs) error {
			return d.ModHelp(ctx, inv)
		}},
	}
	return r
}

// Handle runs msg as a command. It reports false for messages that do not
// start with the prefix or name an unknown command.
func (r *Router) Handle(ctx context.Context, msg *discordgo.Message) bool {
	if msg == nil || msg.Author == nil || msg.GuildID == "" || !strings.HasPrefix(msg.Content, r.prefix) {
		return false
	}
	body := strings.TrimPrefix(msg.Content, r.prefix)
	args := parseArgs(body)
	if args.len() == 0 {
		return false
	}
	name := args.at(0)
	cmd, ok := r.commands[name]
	if !ok {
		return false
	}
	args = parseArgs(args.rest(1))

	inv := moderation.Invocation{
		CommandID: uuid.NewString(),
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Author:    msg.Author,
	}
	perms, err := r.directory.MemberPermissions(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		r.logger.Warn("resolve permissions", zap.String("command_id", inv.CommandID), zap.String("user_id", msg.Author.ID), zap.Error(err))
	}
	inv.Permissions = perms

	start := time.Now()
	if cmd.perm != 0 && !inv.Has(cmd.perm) {
		err = moderation.ErrMissingPermission
	} else {
		err = cmd.run(ctx, inv, args)
	}
	result := moderation.Classify(err)
	metrics.CommandsTotal.WithLabelValues(name, result).Inc()
	r.logger.Info("command",
		zap.String("command_id", inv.CommandID),
		zap.String("command", name),
		zap.String("guild_id", inv.GuildID),
		zap.String("user_id", inv.Author.ID),
		zap.String("result", result),
		zap.Duration("elapsed", time.Since(start)),
	)
	r.dispatcher.Report(ctx, inv, name, err)
	return true
}

// commandArgs keeps both the split tokens and the raw text, so trailing
// free-text arguments such as reasons keep their spacing.
type commandArgs struct {
	raw     string
	fields  []string
	offsets []int
}

func parseArgs(raw string) commandArgs {
	args := commandArgs{raw: raw}
	start := -1
	for i, r := range raw {
		if unicode.IsSpace(r) {
			if start >= 0 {
				args.fields = append(args.fields, raw[start:i])
				args.offsets = append(args.offsets, start)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		args.fields = append(args.fields, raw[start:])
		args.offsets = append(args.offsets, start)
	}
	return args
}

func (a commandArgs) len() int { return len(a.fields) }

func (a commandArgs) at(i int) string {
	if i < 0 || i >= len(a.fields) {
		return ""
	}
	return a.fields[i]
}

// rest returns the raw text from token i to the end.
func (a commandArgs) rest(i int) string {
	if i < 0 || i >= len(a.fields) {
		return ""
	}
	return strings.TrimSpace(a.raw[a.offsets[i]:])
}

func (a commandArgs) user(i int) (string, error) {
	value := a.at(i)
	if value == "" {
		return "", moderation.ErrMissingArgument
	}
	id, ok := utils.ParseUserID(value)
	if !ok {
		return "", &moderation.ArgumentError{Name: "member", Value: value}
	}
	return id, nil
}

func (a commandArgs) userAndRest() (string, string, error) {
	userID, err := a.user(0)
	if err != nil {
		return "", "", err
	}
	rest := a.rest(1)
	if rest == "" {
		return "", "", moderation.ErrMissingArgument
	}
	return userID, rest, nil
}

func (a commandArgs) optionalChannel(i int) (string, error) {
	value := a.at(i)
	if value == "" {
		return "", nil
	}
	id, ok := utils.ParseChannelID(value)
	if !ok {
		return "", &moderation.ArgumentError{Name: "channel", Value: value}
	}
	return id, nil
}
