package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (d *Dispatcher) BlacklistList(ctx context.Context, inv Invocation) error {
	if err := d.authorize(inv, discordgo.PermissionManageServer); err != nil {
		return err
	}
	words := d.store.Blacklist(inv.GuildID)
	if len(words) == 0 {
		d.reply(ctx, inv.ChannelID, "No blacklisted words.")
		return nil
	}
	d.reply(ctx, inv.ChannelID, "Blacklisted words: "+strings.Join(words, ", "))
	return nil
}

func (d *Dispatcher) BlacklistAdd(ctx context.Context, inv Invocation, word string) error {
	if err := d.authorize(inv, discordgo.PermissionManageServer); err != nil {
		return err
	}
	if word == "" {
		return ErrMissingArgument
	}
	added, err := d.store.AddBlacklistWord(inv.GuildID, word)
	if err != nil {
		return fmt.Errorf("save blacklist: %w", err)
	}
	if !added {
		return notice("Word already blacklisted.")
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Added '%s' to blacklist.", word))
	d.audit.LogAction(ctx, inv.GuildID, "Blacklist Added", fmt.Sprintf("'%s' added to blacklist by %s", word, mention(inv.Author.ID)))
	return nil
}

func (d *Dispatcher) BlacklistRemove(ctx context.Context, inv Invocation, word string) error {
	if err := d.authorize(inv, discordgo.PermissionManageServer); err != nil {
		return err
	}
	if word == "" {
		return ErrMissingArgument
	}
	removed, err := d.store.RemoveBlacklistWord(inv.GuildID, word)
	if err != nil {
		return fmt.Errorf("save blacklist: %w", err)
	}
	if !removed {
		return notice("Word not found in blacklist.")
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Removed '%s' from blacklist.", word))
	d.audit.LogAction(ctx, inv.GuildID, "Blacklist Removed", fmt.Sprintf("'%s' removed from blacklist by %s", word, mention(inv.Author.ID)))
	return nil
}

// ModHelp lists the command surface.
func (d *Dispatcher) ModHelp(ctx context.Context, inv Invocation) error {
	p := d.cfg.Prefix
	text := fmt.Sprintf("Moderation commands (prefix %s):\n", p) +
		"kick/ban/unban/mute/unmute/warn/warnings/clearwarns\n" +
		"purge/lock/unlock/addrole/removerole\n" +
		"assign/remove/createrole/setperms/roleinfo/listroles\n" +
		"blacklist add/remove/list\n" +
		fmt.Sprintf("Example: %smute @user 10 spamming", p)
	d.reply(ctx, inv.ChannelID, text)
	return nil
}
