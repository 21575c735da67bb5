package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modbot/internal/metrics"
	"modbot/internal/platform"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultChannelName = "mod-log"
	// DefaultColor is Discord blurple.
	DefaultColor = 0x5865F2
)

var errNoChannel = errors.New("audit channel unavailable")

// Channels is the slice of the platform the audit logger writes through.
type Channels interface {
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	CreateTextChannel(ctx context.Context, guildID, name string) (*discordgo.Channel, error)
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// Logger posts moderation events to a per-guild log channel, creating the
// channel on first use. It never returns an error to its callers.
type Logger struct {
	channels    Channels
	logger      *zap.Logger
	channelName string
	color       int
	now         func() time.Time
	creating    singleflight.Group
}

func NewLogger(channels Channels, channelName string, color int, logger *zap.Logger) *Logger {
	if channelName == "" {
		channelName = DefaultChannelName
	}
	if color == 0 {
		color = DefaultColor
	}
	return &Logger{
		channels:    channels,
		logger:      logger,
		channelName: channelName,
		color:       color,
		now:         time.Now,
	}
}

func (l *Logger) SetNow(now func() time.Time) {
	l.now = now
}

func (l *Logger) ChannelName() string {
	return l.channelName
}

// LogAction writes one audit entry for guildID.
func (l *Logger) LogAction(ctx context.Context, guildID, title, description string) {
	metrics.AuditEntriesTotal.Inc()
	l.logger.Info("audit", zap.String("guild_id", guildID), zap.String("title", title), zap.String("description", description))

	channelID, err := l.resolveChannel(ctx, guildID)
	if err != nil {
		platform.Swallow(l.logger, platform.StepAuditChannel, err, zap.String("guild_id", guildID))
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       l.color,
		Timestamp:   l.now().UTC().Format(time.RFC3339),
	}
	if err := l.channels.SendEmbed(ctx, channelID, embed); err != nil {
		platform.Swallow(l.logger, platform.StepAuditSend, err, zap.String("guild_id", guildID), zap.String("channel_id", channelID))
	}
}

// resolveChannel finds the log channel by name or creates it. Concurrent
// callers for one guild share a single lookup and creation.
func (l *Logger) resolveChannel(ctx context.Context, guildID string) (string, error) {
	v, err, _ := l.creating.Do(guildID, func() (interface{}, error) {
		channels, err := l.channels.GuildChannels(ctx, guildID)
		if err != nil {
			return "", fmt.Errorf("list channels: %w", err)
		}
		for _, channel := range channels {
			if channel.Type == discordgo.ChannelTypeGuildText && channel.Name == l.channelName {
				return channel.ID, nil
			}
		}
		created, err := l.channels.CreateTextChannel(ctx, guildID, l.channelName)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", l.channelName, err)
		}
		if created == nil {
			return "", errNoChannel
		}
		l.logger.Info("audit channel created", zap.String("guild_id", guildID), zap.String("channel_id", created.ID))
		return created.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
