package moderation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"modbot/internal/modules/filter"
	"modbot/internal/platform/platformtest"
	"modbot/internal/scheduler"
	"modbot/internal/scheduler/schedulertest"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const modPerms = discordgo.PermissionKickMembers | discordgo.PermissionBanMembers | discordgo.PermissionManageRoles |
	discordgo.PermissionManageMessages | discordgo.PermissionManageChannels | discordgo.PermissionManageServer

type auditEntry struct {
	GuildID     string
	Title       string
	Description string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAudit) LogAction(ctx context.Context, guildID, title, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{GuildID: guildID, Title: title, Description: description})
}

func (r *recordingAudit) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Title)
	}
	return out
}

func (r *recordingAudit) last() auditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return auditEntry{}
	}
	return r.entries[len(r.entries)-1]
}

type harness struct {
	d     *Dispatcher
	fake  *platformtest.Fake
	store *storage.Store
	audit *recordingAudit
	clock *schedulertest.Clock
	inv   Invocation
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := platformtest.New("bot")
	fake.AddGuild("g1", "Test Guild", "owner")
	fake.AddRole("g1", &discordgo.Role{ID: "helper", Name: "Helper", Position: 2})
	fake.AddRole("g1", &discordgo.Role{ID: "mod", Name: "Mod", Position: 5, Permissions: modPerms})
	fake.AddRole("g1", &discordgo.Role{ID: "senior", Name: "Senior", Position: 7})
	fake.AddRole("g1", &discordgo.Role{ID: "botrole", Name: "Bot", Position: 10, Permissions: discordgo.PermissionAdministrator})
	fake.AddMember("g1", &discordgo.User{ID: "bot", Username: "modbot", Bot: true}, "botrole")
	fake.AddMember("g1", &discordgo.User{ID: "100", Username: "mod"}, "mod")
	fake.AddMember("g1", &discordgo.User{ID: "200", Username: "target", Discriminator: "0"})
	fake.AddChannel("g1", &discordgo.Channel{ID: "chan", Name: "general", Type: discordgo.ChannelTypeGuildText})

	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "warnings.json"), filepath.Join(dir, "blacklist.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	clock := schedulertest.NewClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	store.WithClock(clock)
	sched := scheduler.New()
	sched.WithClock(clock)
	audit := &recordingAudit{}
	d := New(Config{}, fake, store, filter.New(store), audit, sched, zap.NewNop())
	d.SetNow(clock.Now)

	return &harness{
		d:     d,
		fake:  fake,
		store: store,
		audit: audit,
		clock: clock,
		inv: Invocation{
			CommandID:   "cmd-1",
			GuildID:     "g1",
			ChannelID:   "chan",
			MessageID:   "cmd",
			Author:      &discordgo.User{ID: "100", Username: "mod"},
			Permissions: modPerms,
		},
	}
}

func (h *harness) replies() []string {
	return h.fake.SentTo("chan")
}

func (h *harness) lastReply() string {
	replies := h.replies()
	if len(replies) == 0 {
		return ""
	}
	return replies[len(replies)-1]
}

func TestAutomodEndToEnd(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.AddBlacklistWord("g1", "spam"); err != nil {
		t.Fatalf("add word: %v", err)
	}
	h.fake.Fail("DirectMessage", errors.New("cannot send messages to this user"))

	msg := &discordgo.Message{ID: "m1", ChannelID: "chan", GuildID: "g1", Content: "no spamming here", Author: &discordgo.User{ID: "200"}}
	if !h.d.HandleMessage(context.Background(), msg) {
		t.Fatalf("expected message to trigger")
	}

	if len(h.fake.Deleted) != 1 || h.fake.Deleted[0] != "m1" {
		t.Fatalf("expected message deletion, got %v", h.fake.Deleted)
	}
	warnings := h.store.ListWarnings("g1", "200")
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
	if warnings[0].IssuerID != nil || warnings[0].IssuerName != storage.AutoIssuer {
		t.Fatalf("expected automatic issuer, got %+v", warnings[0])
	}
	if warnings[0].Reason != "Auto-moderation: used blocked word 'spam'" {
		t.Fatalf("unexpected reason %q", warnings[0].Reason)
	}
	titles := h.audit.titles()
	if len(titles) != 1 || titles[0] != "Auto-moderation" {
		t.Fatalf("expected one auto-moderation audit entry, got %v", titles)
	}
	if h.audit.last().Description != "Deleted message from <@200> containing blocked word 'spam'." {
		t.Fatalf("unexpected audit description %q", h.audit.last().Description)
	}
	if len(h.fake.DMs) != 1 || h.fake.DMs[0].Content != "Your message in Test Guild was removed for containing a blocked word." {
		t.Fatalf("expected DM attempt, got %+v", h.fake.DMs)
	}
}

func TestAutomodContinuesWhenDeleteFails(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.AddBlacklistWord("g1", "Spam"); err != nil {
		t.Fatalf("add word: %v", err)
	}
	h.fake.Fail("DeleteMessage", errors.New("unknown message"))

	msg := &discordgo.Message{ID: "m1", ChannelID: "chan", GuildID: "g1", Content: "SPAM", Author: &discordgo.User{ID: "200"}}
	if !h.d.HandleMessage(context.Background(), msg) {
		t.Fatalf("expected message to trigger")
	}
	if got := len(h.store.ListWarnings("g1", "200")); got != 1 {
		t.Fatalf("expected warning despite failed delete, got %d", got)
	}
	if len(h.audit.titles()) != 1 || len(h.fake.DMs) != 1 {
		t.Fatalf("expected audit and DM despite failed delete")
	}
}

func TestAutomodIgnoresCleanMessages(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.AddBlacklistWord("g1", "spam"); err != nil {
		t.Fatalf("add word: %v", err)
	}
	msg := &discordgo.Message{ID: "m1", ChannelID: "chan", GuildID: "g1", Content: "clean", Author: &discordgo.User{ID: "200"}}
	if h.d.HandleMessage(context.Background(), msg) {
		t.Fatalf("did not expect trigger")
	}
	dm := &discordgo.Message{ID: "m2", ChannelID: "dm", Content: "spam", Author: &discordgo.User{ID: "200"}}
	if h.d.HandleMessage(context.Background(), dm) {
		t.Fatalf("did not expect direct messages to be filtered")
	}
	if len(h.fake.Deleted) != 0 || len(h.audit.titles()) != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestMuteWithoutDurationNeverSchedules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.Mute(ctx, h.inv, "200", 0, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}
	role := h.fake.RoleNamed("g1", "Muted")
	if role == nil {
		t.Fatalf("expected muted role to be created")
	}
	if len(h.fake.Overwrites) != 1 || h.fake.Overwrites[0].Deny != mutedDeny || h.fake.Overwrites[0].TargetID != role.ID {
		t.Fatalf("expected muted overwrite on the text channel, got %+v", h.fake.Overwrites)
	}
	if _, ok := h.d.PendingUnmute("g1", "200"); ok {
		t.Fatalf("did not expect a scheduled unmute")
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("expected no timers, got %d", h.clock.Pending())
	}

	h.clock.Advance(24 * time.Hour)
	if roles := h.fake.MemberRoles("g1", "200"); len(roles) != 1 || roles[0] != role.ID {
		t.Fatalf("expected member to stay muted, got %v", roles)
	}
	if titles := h.audit.titles(); len(titles) != 1 || titles[0] != "Member Muted" {
		t.Fatalf("unexpected audit entries %v", titles)
	}
	if h.lastReply() != "<@200> has been muted. Reason: No reason provided" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
}

func TestManualUnmuteCancelsScheduledUnmute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.Mute(ctx, h.inv, "200", 5, "spamming"); err != nil {
		t.Fatalf("mute: %v", err)
	}
	due, ok := h.d.PendingUnmute("g1", "200")
	if !ok || !due.Equal(h.clock.Now().Add(5*time.Minute)) {
		t.Fatalf("expected unmute due in 5 minutes, got %v %v", due, ok)
	}
	if err := h.d.Unmute(ctx, h.inv, "200"); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if _, ok := h.d.PendingUnmute("g1", "200"); ok {
		t.Fatalf("expected pending unmute to be cancelled")
	}

	h.clock.Advance(10 * time.Minute)
	if len(h.fake.RoleRemoves) != 1 {
		t.Fatalf("expected only the manual removal, got %+v", h.fake.RoleRemoves)
	}
	titles := h.audit.titles()
	if len(titles) != 2 || titles[0] != "Member Muted" || titles[1] != "Member Unmuted" {
		t.Fatalf("unexpected audit entries %v", titles)
	}
	if h.audit.last().Description != "<@200> unmuted by <@100>." {
		t.Fatalf("unexpected unmute description %q", h.audit.last().Description)
	}
}

func TestMuteAutoUnmutes(t *testing.T) {
	h := newHarness(t)
	if err := h.d.Mute(context.Background(), h.inv, "200", 5, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}

	h.clock.Advance(4 * time.Minute)
	if len(h.fake.MemberRoles("g1", "200")) != 1 {
		t.Fatalf("expected member to still be muted")
	}
	h.clock.Advance(time.Minute)
	if len(h.fake.MemberRoles("g1", "200")) != 0 {
		t.Fatalf("expected muted role to be removed")
	}
	if h.fake.RoleRemoves[0].Reason != "Auto unmute after duration" {
		t.Fatalf("unexpected reason %q", h.fake.RoleRemoves[0].Reason)
	}
	last := h.audit.last()
	if last.Title != "Member Unmuted" || last.Description != "<@200> auto-unmuted after 5 minutes." {
		t.Fatalf("unexpected audit entry %+v", last)
	}
}

func TestMuteRejectsOverflowingDuration(t *testing.T) {
	h := newHarness(t)
	err := h.d.Mute(context.Background(), h.inv, "200", 200000000, "")
	if !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected bad argument, got %v", err)
	}
	h.clock.Advance(time.Second)
	if roles := h.fake.MemberRoles("g1", "200"); len(roles) != 0 {
		t.Fatalf("expected no mute, got roles %v", roles)
	}
	if titles := h.audit.titles(); len(titles) != 0 {
		t.Fatalf("expected no audit entries, got %v", titles)
	}

	if err := h.d.Mute(context.Background(), h.inv, "200", int(MaxMuteMinutes), ""); err != nil {
		t.Fatalf("mute at the limit: %v", err)
	}
	due, ok := h.d.PendingUnmute("g1", "200")
	if !ok || !due.After(h.clock.Now()) {
		t.Fatalf("expected unmute due in the future, got %v %v", due, ok)
	}
}

func TestMuteNegativeDurationIsIndefinite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.d.Mute(ctx, h.inv, "200", 5, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if err := h.d.Mute(ctx, h.inv, "200", -3, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if _, ok := h.d.PendingUnmute("g1", "200"); ok {
		t.Fatalf("did not expect a scheduled unmute")
	}
	h.clock.Advance(time.Hour)
	if len(h.fake.MemberRoles("g1", "200")) != 1 {
		t.Fatalf("expected member to stay muted")
	}
}

func TestAutoUnmuteSkipsWhenRoleAlreadyGone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.d.Mute(ctx, h.inv, "200", 5, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}
	role := h.fake.RoleNamed("g1", "Muted")
	if err := h.fake.RemoveMemberRole(ctx, "g1", "200", role.ID, "removed in client"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	h.clock.Advance(5 * time.Minute)
	if len(h.fake.RoleRemoves) != 1 {
		t.Fatalf("expected no further removal, got %+v", h.fake.RoleRemoves)
	}
	if titles := h.audit.titles(); len(titles) != 1 {
		t.Fatalf("expected no auto-unmute entry, got %v", titles)
	}
}

func TestRemuteReplacesPendingUnmute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.d.Mute(ctx, h.inv, "200", 5, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if err := h.d.Mute(ctx, h.inv, "200", 10, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if h.fake.Calls["CreateRole"] != 1 {
		t.Fatalf("expected muted role to be created once, got %d", h.fake.Calls["CreateRole"])
	}

	h.clock.Advance(5 * time.Minute)
	if len(h.fake.MemberRoles("g1", "200")) != 1 {
		t.Fatalf("expected the first schedule to be replaced")
	}
	h.clock.Advance(5 * time.Minute)
	if len(h.fake.MemberRoles("g1", "200")) != 0 {
		t.Fatalf("expected unmute after the second duration")
	}
	if h.audit.last().Description != "<@200> auto-unmuted after 10 minutes." {
		t.Fatalf("unexpected audit description %q", h.audit.last().Description)
	}
}

func TestMuteWithoutRole(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail("CreateRole", errors.New("missing permissions"))

	err := h.d.Mute(context.Background(), h.inv, "200", 0, "")
	var noticeErr *NoticeError
	if !errors.As(err, &noticeErr) || !strings.HasPrefix(noticeErr.Message, "Unable to create/find Muted role") {
		t.Fatalf("expected muted role notice, got %v", err)
	}
	if len(h.audit.titles()) != 0 {
		t.Fatalf("expected no audit entry")
	}
}

func TestUnmuteWithoutRole(t *testing.T) {
	h := newHarness(t)
	err := h.d.Unmute(context.Background(), h.inv, "200")
	h.d.Report(context.Background(), h.inv, "unmute", err)
	if h.lastReply() != "Muted role doesn't exist." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
}

func TestKick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.Kick(ctx, h.inv, "200", ""); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(h.fake.Kicked) != 1 || h.fake.Kicked[0] != "200" {
		t.Fatalf("expected kick, got %v", h.fake.Kicked)
	}
	if h.lastReply() != "target has been kicked. Reason: No reason provided" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	last := h.audit.last()
	if last.Title != "Member Kicked" || last.Description != "<@200> kicked by <@100>. Reason: No reason provided" {
		t.Fatalf("unexpected audit entry %+v", last)
	}
}

func TestCommandFailuresDoNotAudit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	denied := h.inv
	denied.Permissions = discordgo.PermissionSendMessages
	err := h.d.Ban(ctx, denied, "200", "")
	if !errors.Is(err, ErrMissingPermission) {
		t.Fatalf("expected missing permission, got %v", err)
	}
	h.d.Report(ctx, denied, "ban", err)
	if h.lastReply() != "You do not have permission to use this command." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}

	h.fake.Fail("Kick", errors.New("403 Forbidden"))
	err = h.d.Kick(ctx, h.inv, "200", "rude")
	var actionErr *ActionError
	if !errors.As(err, &actionErr) || actionErr.Op != "kick" {
		t.Fatalf("expected kick action error, got %v", err)
	}
	h.d.Report(ctx, h.inv, "kick", err)
	if h.lastReply() != "Failed to kick: 403 Forbidden" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}

	err = h.d.Kick(ctx, h.inv, "999", "")
	if !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected bad argument for unknown member, got %v", err)
	}
	h.d.Report(ctx, h.inv, "kick", err)
	if h.lastReply() != "Bad argument type passed." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}

	if titles := h.audit.titles(); len(titles) != 0 {
		t.Fatalf("expected no audit entries, got %v", titles)
	}
}

func TestReportUnexpectedError(t *testing.T) {
	h := newHarness(t)
	h.d.Report(context.Background(), h.inv, "warn", errors.New("disk full"))

	last := h.audit.last()
	if last.Title != "Command Error" || last.Description != "Error running command warn: disk full" {
		t.Fatalf("unexpected audit entry %+v", last)
	}
	if h.lastReply() != "An error occurred: disk full" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
}

func TestBan(t *testing.T) {
	h := newHarness(t)
	if err := h.d.Ban(context.Background(), h.inv, "200", "raiding"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if len(h.fake.Banned) != 1 || h.fake.Banned[0] != "200" {
		t.Fatalf("expected ban, got %v", h.fake.Banned)
	}
	if h.audit.last().Description != "<@200> banned by <@100>. Reason: raiding" {
		t.Fatalf("unexpected audit description %q", h.audit.last().Description)
	}
}

func TestUnban(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.AddBan("g1", &discordgo.User{ID: "300", Username: "gone", Discriminator: "1234"})

	err := h.d.Unban(ctx, h.inv, "gone")
	h.d.Report(ctx, h.inv, "unban", err)
	if h.lastReply() != "Use format: username#discriminator" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}

	err = h.d.Unban(ctx, h.inv, "nobody#0001")
	h.d.Report(ctx, h.inv, "unban", err)
	if h.lastReply() != "User not found in ban list." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if len(h.audit.titles()) != 0 {
		t.Fatalf("expected no audit entries before a successful unban")
	}

	if err := h.d.Unban(ctx, h.inv, "gone#1234"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if len(h.fake.Unbanned) != 1 || h.fake.Unbanned[0] != "300" {
		t.Fatalf("expected unban of 300, got %v", h.fake.Unbanned)
	}
	if h.lastReply() != "Unbanned gone#1234" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if h.audit.last().Title != "Member Unbanned" {
		t.Fatalf("unexpected audit entry %+v", h.audit.last())
	}
}

func TestWarnAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.Warn(ctx, h.inv, "200", "spam"); err != nil {
		t.Fatalf("warn: %v", err)
	}
	entries := h.store.ListWarnings("g1", "200")
	if len(entries) != 1 || entries[0].IssuerID == nil || *entries[0].IssuerID != 100 || entries[0].IssuerName != "mod" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	last := h.audit.last()
	if last.Title != "Warn Issued" || last.Description != "<@200> was warned by mod: spam" {
		t.Fatalf("unexpected audit entry %+v", last)
	}
	if h.lastReply() != "<@200> has been warned. Reason: spam" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}

	if err := h.d.Warnings(ctx, h.inv, "200"); err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if !strings.HasPrefix(h.lastReply(), "Warnings for <@200>:\n1. spam - by mod at 2024-01-02T03:04:05.000000") {
		t.Fatalf("unexpected listing %q", h.lastReply())
	}

	if err := h.d.Warnings(ctx, h.inv, ""); err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if h.lastReply() != "Warned members:\n1. <@200> - 1 warning" {
		t.Fatalf("unexpected summary %q", h.lastReply())
	}

	if err := h.d.Warnings(ctx, h.inv, "100"); err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if h.lastReply() != "<@100> has no warnings." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if titles := h.audit.titles(); len(titles) != 1 {
		t.Fatalf("expected listings not to audit, got %v", titles)
	}
}

func TestClearWarns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.d.Warn(ctx, h.inv, "200", "spam"); err != nil {
		t.Fatalf("warn: %v", err)
	}

	if err := h.d.ClearWarns(ctx, h.inv, "200"); err != nil {
		t.Fatalf("clearwarns: %v", err)
	}
	if h.lastReply() != "Cleared warnings for <@200>." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if h.audit.last().Title != "Warnings Cleared" {
		t.Fatalf("unexpected audit entry %+v", h.audit.last())
	}

	err := h.d.ClearWarns(ctx, h.inv, "200")
	var noticeErr *NoticeError
	if !errors.As(err, &noticeErr) || noticeErr.Message != "No warnings to clear." {
		t.Fatalf("expected no warnings notice, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var older []*discordgo.Message
	for i := 0; i < 5; i++ {
		older = append(older, h.fake.AddHistory("chan", "200", "hello"))
	}
	cmd := h.fake.AddHistory("chan", "100", "!purge 3")
	inv := h.inv
	inv.MessageID = cmd.ID

	if err := h.d.Purge(ctx, inv, 3); err != nil {
		t.Fatalf("purge: %v", err)
	}
	want := map[string]bool{cmd.ID: true, older[4].ID: true, older[3].ID: true, older[2].ID: true}
	if len(h.fake.Deleted) != len(want) {
		t.Fatalf("expected %d deletions, got %v", len(want), h.fake.Deleted)
	}
	for _, id := range h.fake.Deleted {
		if !want[id] {
			t.Fatalf("unexpected deletion of %s", id)
		}
	}
	if h.lastReply() != "Deleted 3 messages." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if h.audit.last().Description != "<@100> purged 3 messages in <#chan>" {
		t.Fatalf("unexpected audit description %q", h.audit.last().Description)
	}

	if h.fake.Calls["DeleteMessage"] != 0 {
		t.Fatalf("expected confirmation to stay until the delay passes")
	}
	h.clock.Advance(5 * time.Second)
	if h.fake.Calls["DeleteMessage"] != 1 {
		t.Fatalf("expected confirmation cleanup, got %d", h.fake.Calls["DeleteMessage"])
	}
}

func TestPurgeRejectsAmount(t *testing.T) {
	h := newHarness(t)
	for _, amount := range []int{0, 101} {
		err := h.d.Purge(context.Background(), h.inv, amount)
		h.d.Report(context.Background(), h.inv, "purge", err)
		if h.lastReply() != "Amount must be between 1 and 100." {
			t.Fatalf("amount %d: unexpected reply %q", amount, h.lastReply())
		}
	}
}

func TestLockUnlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.Lock(ctx, h.inv, ""); err != nil {
		t.Fatalf("lock: %v", err)
	}
	ow := h.fake.Overwrites[len(h.fake.Overwrites)-1]
	if ow.TargetID != "g1" || ow.Deny&discordgo.PermissionSendMessages == 0 || ow.Allow&discordgo.PermissionSendMessages != 0 {
		t.Fatalf("unexpected lock overwrite %+v", ow)
	}
	if h.lastReply() != "Locked <#chan>." || h.audit.last().Description != "<#chan> locked by <@100>." {
		t.Fatalf("unexpected lock output %q %+v", h.lastReply(), h.audit.last())
	}

	if err := h.d.Unlock(ctx, h.inv, "chan"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ow = h.fake.Overwrites[len(h.fake.Overwrites)-1]
	if ow.Deny&discordgo.PermissionSendMessages != 0 || ow.Allow&discordgo.PermissionSendMessages == 0 {
		t.Fatalf("unexpected unlock overwrite %+v", ow)
	}
	if h.audit.last().Title != "Channel Unlocked" {
		t.Fatalf("unexpected audit entry %+v", h.audit.last())
	}

	if err := h.d.Lock(ctx, h.inv, "missing"); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected bad argument for unknown channel, got %v", err)
	}
}

func TestLockChannelTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.AddChannel("g1", &discordgo.Channel{ID: "news", Name: "announcements", Type: discordgo.ChannelTypeGuildNews})
	h.fake.AddChannel("g1", &discordgo.Channel{ID: "voice", Name: "lounge", Type: discordgo.ChannelTypeGuildVoice})

	if err := h.d.Lock(ctx, h.inv, "news"); err != nil {
		t.Fatalf("lock announcement channel: %v", err)
	}
	if ow := h.fake.Overwrites[len(h.fake.Overwrites)-1]; ow.ChannelID != "news" || ow.Deny&discordgo.PermissionSendMessages == 0 {
		t.Fatalf("unexpected overwrite %+v", ow)
	}
	if err := h.d.Unlock(ctx, h.inv, "news"); err != nil {
		t.Fatalf("unlock announcement channel: %v", err)
	}
	if err := h.d.Lock(ctx, h.inv, "voice"); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected bad argument for voice channel, got %v", err)
	}
}

func TestAddAndRemoveRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.AddRole(ctx, h.inv, "200", "Artists"); err != nil {
		t.Fatalf("addrole: %v", err)
	}
	role := h.fake.RoleNamed("g1", "Artists")
	if role == nil {
		t.Fatalf("expected role to be created")
	}
	if roles := h.fake.MemberRoles("g1", "200"); len(roles) != 1 || roles[0] != role.ID {
		t.Fatalf("expected member to hold the new role, got %v", roles)
	}
	if h.audit.last().Description != "Added role Artists to <@200> by <@100>." {
		t.Fatalf("unexpected audit description %q", h.audit.last().Description)
	}

	if err := h.d.RemoveRole(ctx, h.inv, "200", "Artists"); err != nil {
		t.Fatalf("removerole: %v", err)
	}
	if len(h.fake.MemberRoles("g1", "200")) != 0 {
		t.Fatalf("expected role removal")
	}

	err := h.d.RemoveRole(ctx, h.inv, "200", "Nope")
	h.d.Report(ctx, h.inv, "removerole", err)
	if h.lastReply() != "Role not found." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
}

func TestAssignHierarchy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.Assign(ctx, h.inv, "200", "helper"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if h.audit.last().Title != "Role Assigned" {
		t.Fatalf("unexpected audit entry %+v", h.audit.last())
	}

	var noticeErr *NoticeError
	if err := h.d.Assign(ctx, h.inv, "200", "Senior"); !errors.As(err, &noticeErr) {
		t.Fatalf("expected hierarchy refusal, got %v", err)
	}

	owner := h.inv
	owner.Author = &discordgo.User{ID: "owner", Username: "owner"}
	if err := h.d.Assign(ctx, owner, "200", "Senior"); err != nil {
		t.Fatalf("owner assign: %v", err)
	}
	if err := h.d.Assign(ctx, owner, "200", "Bot"); !errors.As(err, &noticeErr) || !strings.HasPrefix(noticeErr.Message, "I can only") {
		t.Fatalf("expected bot hierarchy refusal, got %v", err)
	}

	if err := h.d.Remove(ctx, h.inv, "200", "Helper"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := h.d.Remove(ctx, h.inv, "200", "Helper"); !errors.As(err, &noticeErr) {
		t.Fatalf("expected notice for a role the member lacks, got %v", err)
	}
}

func TestCreateRole(t *testing.T) {
	h := newHarness(t)
	name, opts, err := ParseRoleArgs([]string{"Night", "Owls", "color:#ff8800", "hoist:yes"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := h.d.CreateRole(context.Background(), h.inv, name, opts); err != nil {
		t.Fatalf("createrole: %v", err)
	}
	role := h.fake.RoleNamed("g1", "Night Owls")
	if role == nil || role.Color != 0xff8800 || !role.Hoist || role.Mentionable {
		t.Fatalf("unexpected role %+v", role)
	}
	if h.audit.last().Title != "Role Created" {
		t.Fatalf("unexpected audit entry %+v", h.audit.last())
	}
}

func TestParseRoleArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr error
	}{
		{"plain name", []string{"Mods"}, "Mods", nil},
		{"unknown option kept in name", []string{"team:red"}, "team:red", nil},
		{"bad color", []string{"Mods", "color:blue"}, "", ErrBadArgument},
		{"bad bool", []string{"Mods", "mentionable:sure"}, "", ErrBadArgument},
		{"no name", []string{"hoist:true"}, "", ErrMissingArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := ParseRoleArgs(tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseRoleArgs(%v) = %q %v", tt.args, got, err)
			}
		})
	}
}

func TestSetPerms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.SetPerms(ctx, h.inv, "Helper", "kick_members, ban_members"); err != nil {
		t.Fatalf("setperms: %v", err)
	}
	role := h.fake.RoleNamed("g1", "Helper")
	if role.Permissions != discordgo.PermissionKickMembers|discordgo.PermissionBanMembers {
		t.Fatalf("unexpected permissions %d", role.Permissions)
	}
	if h.lastReply() != "Updated permissions for Helper: kick_members, ban_members" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}

	if err := h.d.SetPerms(ctx, h.inv, "Helper", "clear"); err != nil {
		t.Fatalf("setperms clear: %v", err)
	}
	if h.fake.RoleNamed("g1", "Helper").Permissions != 0 {
		t.Fatalf("expected permissions cleared")
	}

	err := h.d.SetPerms(ctx, h.inv, "Helper", "fly")
	h.d.Report(ctx, h.inv, "setperms", err)
	if h.lastReply() != "Unknown permission: fly" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
}

func TestParsePermissions(t *testing.T) {
	all, err := ParsePermissions("all")
	if err != nil || all != allPermissions() {
		t.Fatalf("unexpected all %d %v", all, err)
	}
	perms, err := ParsePermissions("manage-server read_messages")
	if err != nil || perms != discordgo.PermissionManageServer|discordgo.PermissionViewChannel {
		t.Fatalf("unexpected aliases %d %v", perms, err)
	}
	if _, err := ParsePermissions(""); !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("expected missing argument, got %v", err)
	}
	names := PermissionNames(discordgo.PermissionKickMembers | discordgo.PermissionSendMessages)
	if strings.Join(names, ",") != "kick_members,send_messages" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestRoleInfoAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reader := h.inv
	reader.Permissions = 0

	if err := h.d.RoleInfo(ctx, reader, "mod"); err != nil {
		t.Fatalf("roleinfo: %v", err)
	}
	if len(h.fake.Embeds) != 1 || h.fake.Embeds[0].Embed.Title != "Mod" {
		t.Fatalf("expected role info embed, got %+v", h.fake.Embeds)
	}

	if err := h.d.ListRoles(ctx, reader); err != nil {
		t.Fatalf("listroles: %v", err)
	}
	want := "Roles (4):\nBot (botrole)\nSenior (senior)\nMod (mod)\nHelper (helper)"
	if h.lastReply() != want {
		t.Fatalf("unexpected listing %q", h.lastReply())
	}
}

func TestBlacklistCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.d.BlacklistList(ctx, h.inv); err != nil {
		t.Fatalf("list: %v", err)
	}
	if h.lastReply() != "No blacklisted words." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if err := h.d.BlacklistAdd(ctx, h.inv, "Spam"); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := h.d.BlacklistAdd(ctx, h.inv, "spam")
	h.d.Report(ctx, h.inv, "blacklist", err)
	if h.lastReply() != "Word already blacklisted." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if err := h.d.BlacklistList(ctx, h.inv); err != nil {
		t.Fatalf("list: %v", err)
	}
	if h.lastReply() != "Blacklisted words: Spam" {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	if err := h.d.BlacklistRemove(ctx, h.inv, "Spam"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	err = h.d.BlacklistRemove(ctx, h.inv, "Spam")
	h.d.Report(ctx, h.inv, "blacklist", err)
	if h.lastReply() != "Word not found in blacklist." {
		t.Fatalf("unexpected reply %q", h.lastReply())
	}
	titles := h.audit.titles()
	if len(titles) != 2 || titles[0] != "Blacklist Added" || titles[1] != "Blacklist Removed" {
		t.Fatalf("unexpected audit entries %v", titles)
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]error{
		"ok":      nil,
		"denied":  ErrMissingPermission,
		"usage":   badArgument("member", "x"),
		"failed":  &ActionError{Op: "kick", Err: errors.New("no")},
		"refused": notice("nope"),
		"error":   errors.New("boom"),
	}
	for want, err := range tests {
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%v) = %q, want %q", err, got, want)
		}
	}
}
