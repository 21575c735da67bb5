// Package moderation carries out moderation actions: the auto-moderation
// response to blacklisted words and every explicit moderator command.
//
// Each command authorizes the invoker, performs its platform effect, and on
// success sends one confirmation and writes exactly one audit entry. Failures
// are returned as errors and turned into replies by Report.
package moderation

import (
	"context"
	"fmt"
	"time"

	"modbot/internal/platform"
	"modbot/internal/scheduler"
	"modbot/internal/storage"
	"modbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultReason        = "No reason provided"
	DefaultMutedRoleName = "Muted"
	messageLimit         = 2000
)

type Store interface {
	AddWarning(guildID, userID string, issuerID *int64, issuerName, reason string) (storage.WarningEntry, error)
	ListWarnings(guildID, userID string) []storage.WarningEntry
	ListWarnedUsers(guildID string) []storage.WarnedUser
	ClearWarnings(guildID, userID string) (bool, error)
	Blacklist(guildID string) []string
	AddBlacklistWord(guildID, word string) (bool, error)
	RemoveBlacklistWord(guildID, word string) (bool, error)
}

type TriggerFinder interface {
	FindTrigger(guildID, text string) (string, bool)
}

type ActionLogger interface {
	LogAction(ctx context.Context, guildID, title, description string)
}

type Config struct {
	Prefix          string
	MutedRoleName   string
	PurgeReplyDelay time.Duration
}

// Invocation describes who ran a command and where.
type Invocation struct {
	CommandID   string
	GuildID     string
	ChannelID   string
	MessageID   string
	Author      *discordgo.User
	Permissions int64
}

// Has reports whether the invoker holds every bit of perm. Administrators
// hold all permissions.
func (inv Invocation) Has(perm int64) bool {
	if inv.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return inv.Permissions&perm == perm
}

type Dispatcher struct {
	cfg       Config
	platform  platform.Platform
	store     Store
	filter    TriggerFinder
	audit     ActionLogger
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
	now       func() time.Time
	mutedRole singleflight.Group
}

func New(cfg Config, p platform.Platform, store Store, filter TriggerFinder, audit ActionLogger, sched *scheduler.Scheduler, logger *zap.Logger) *Dispatcher {
	if cfg.MutedRoleName == "" {
		cfg.MutedRoleName = DefaultMutedRoleName
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.PurgeReplyDelay <= 0 {
		cfg.PurgeReplyDelay = 5 * time.Second
	}
	if sched == nil {
		sched = scheduler.New()
	}
	return &Dispatcher{
		cfg:       cfg,
		platform:  p,
		store:     store,
		filter:    filter,
		audit:     audit,
		scheduler: sched,
		logger:    logger,
		now:       time.Now,
	}
}

func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}

// Report turns a command error into a reply. Unexpected errors are also
// written to the audit channel.
func (d *Dispatcher) Report(ctx context.Context, inv Invocation, command string, err error) {
	if err == nil {
		return
	}
	message, unexpected := describe(err)
	if unexpected {
		d.logger.Error("command failed", zap.String("command", command), zap.String("command_id", inv.CommandID), zap.String("guild_id", inv.GuildID), zap.Error(err))
		d.audit.LogAction(ctx, inv.GuildID, "Command Error", fmt.Sprintf("Error running command %s: %v", command, err))
	} else {
		d.logger.Debug("command refused", zap.String("command", command), zap.String("command_id", inv.CommandID), zap.Error(err))
	}
	d.reply(ctx, inv.ChannelID, message)
}

func (d *Dispatcher) authorize(inv Invocation, perm int64) error {
	if !inv.Has(perm) {
		return ErrMissingPermission
	}
	return nil
}

// reply sends content in as many messages as the length limit requires.
func (d *Dispatcher) reply(ctx context.Context, channelID, content string) {
	for _, chunk := range utils.ChunkText(content, messageLimit) {
		if _, err := d.platform.SendMessage(ctx, channelID, chunk); err != nil {
			d.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
			return
		}
	}
}

// member loads a guild member named in a command argument.
func (d *Dispatcher) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if userID == "" {
		return nil, ErrMissingArgument
	}
	member, err := d.platform.Member(ctx, guildID, userID)
	if err != nil || member == nil || member.User == nil {
		return nil, badArgument("member", userID)
	}
	return member, nil
}

func withDefaultReason(reason string) string {
	if reason == "" {
		return DefaultReason
	}
	return reason
}

// userTag renders a user the way Discord shows it in plain text.
func userTag(user *discordgo.User) string {
	if user == nil {
		return "unknown"
	}
	if user.Discriminator == "" || user.Discriminator == "0" {
		return user.Username
	}
	return user.Username + "#" + user.Discriminator
}

func mention(userID string) string {
	return utils.UserMention(userID)
}
