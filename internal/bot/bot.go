package bot

import (
	"context"

	"modbot/internal/config"
	"modbot/internal/moderation"
	"modbot/internal/modules/audit"
	"modbot/internal/modules/filter"
	"modbot/internal/platform"
	"modbot/internal/scheduler"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	platform   platform.Platform
	audit      *audit.Logger
	dispatcher *moderation.Dispatcher
	router     *Router
	session    *discordgo.Session
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b := newBot(cfg, logger, store, platform.New(session), scheduler.New())
	b.session = session
	return b, nil
}

// newBot wires the moderation stack over any platform.
func newBot(cfg config.Config, logger *zap.Logger, store *storage.Store, p platform.Platform, sched *scheduler.Scheduler) *Bot {
	auditLogger := audit.NewLogger(p, cfg.LogChannelName, cfg.EmbedColor, logger.Named("audit"))
	dispatcher := moderation.New(moderation.Config{
		Prefix:          cfg.Prefix,
		MutedRoleName:   cfg.MutedRoleName,
		PurgeReplyDelay: cfg.PurgeReplyDelay(),
	}, p, store, filter.New(store), auditLogger, sched, logger.Named("moderation"))

	return &Bot{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		platform:   p,
		audit:      auditLogger,
		dispatcher: dispatcher,
		router:     NewRouter(cfg.Prefix, dispatcher, p, logger.Named("commands")),
	}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildCreate)

	return b.session.Open()
}

// Close disconnects the session, giving up once ctx is done.
func (b *Bot) Close(ctx context.Context) error {
	if b.session == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- b.session.Close()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
