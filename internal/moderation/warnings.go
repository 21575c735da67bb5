package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"modbot/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
)

// Warn records a moderator warning against a member.
func (d *Dispatcher) Warn(ctx context.Context, inv Invocation, userID, reason string) error {
	if err := d.authorize(inv, discordgo.PermissionKickMembers); err != nil {
		return err
	}
	member, err := d.member(ctx, inv.GuildID, userID)
	if err != nil {
		return err
	}
	reason = withDefaultReason(reason)

	var issuerID *int64
	if id, err := strconv.ParseInt(inv.Author.ID, 10, 64); err == nil {
		issuerID = &id
	}
	entry, err := d.store.AddWarning(inv.GuildID, member.User.ID, issuerID, inv.Author.Username, reason)
	if err != nil {
		return fmt.Errorf("record warning: %w", err)
	}
	metrics.WarningsIssuedTotal.WithLabelValues("moderator").Inc()

	d.audit.LogAction(ctx, inv.GuildID, "Warn Issued", fmt.Sprintf("%s was warned by %s: %s", mention(member.User.ID), entry.IssuerName, reason))
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s has been warned. Reason: %s", mention(member.User.ID), reason))
	return nil
}

// Warnings lists the warnings of one user, or every warned member of the
// guild when userID is empty.
func (d *Dispatcher) Warnings(ctx context.Context, inv Invocation, userID string) error {
	if err := d.authorize(inv, discordgo.PermissionKickMembers); err != nil {
		return err
	}
	if userID == "" {
		d.reply(ctx, inv.ChannelID, d.warnedUsersText(inv.GuildID))
		return nil
	}

	entries := d.store.ListWarnings(inv.GuildID, userID)
	if len(entries) == 0 {
		d.reply(ctx, inv.ChannelID, fmt.Sprintf("%s has no warnings.", mention(userID)))
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Warnings for %s:", mention(userID))
	for i, entry := range entries {
		by := entry.IssuerName
		if by == "" {
			by = "Unknown"
		}
		fmt.Fprintf(&b, "\n%d. %s - by %s at %s", i+1, entry.Reason, by, entry.Time)
		if issued, err := entry.IssuedAt(); err == nil {
			fmt.Fprintf(&b, " (%s)", humanize.RelTime(issued, d.now().UTC(), "ago", "from now"))
		}
	}
	d.reply(ctx, inv.ChannelID, b.String())
	return nil
}

func (d *Dispatcher) warnedUsersText(guildID string) string {
	users := d.store.ListWarnedUsers(guildID)
	if len(users) == 0 {
		return "No members have warnings."
	}
	var b strings.Builder
	b.WriteString("Warned members:")
	for i, user := range users {
		noun := "warnings"
		if user.Count == 1 {
			noun = "warning"
		}
		fmt.Fprintf(&b, "\n%d. %s - %d %s", i+1, mention(user.UserID), user.Count, noun)
	}
	return b.String()
}

func (d *Dispatcher) ClearWarns(ctx context.Context, inv Invocation, userID string) error {
	if err := d.authorize(inv, discordgo.PermissionKickMembers); err != nil {
		return err
	}
	if userID == "" {
		return ErrMissingArgument
	}
	cleared, err := d.store.ClearWarnings(inv.GuildID, userID)
	if err != nil {
		return fmt.Errorf("clear warnings: %w", err)
	}
	if !cleared {
		return notice("No warnings to clear.")
	}
	d.reply(ctx, inv.ChannelID, fmt.Sprintf("Cleared warnings for %s.", mention(userID)))
	d.audit.LogAction(ctx, inv.GuildID, "Warnings Cleared", fmt.Sprintf("Warnings for %s cleared by %s.", mention(userID), mention(inv.Author.ID)))
	return nil
}
