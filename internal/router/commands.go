package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cheerbot/internal/broadcast"
	"cheerbot/internal/dialog"
	"cheerbot/internal/storage"
	kit "cheerbot/internal/transport"
	logx "cheerbot/pkg/logx"
)

func (r *Router) cmdStart(ctx context.Context, req *Request) error {
	m := req.Update.Message

	if _, err := r.deps.Store.GetSubscriber(ctx, req.FromID); err == nil {
		// Refresh activity; upsert is idempotent.
		_ = r.deps.Store.UpsertSubscriber(ctx, subscriberFrom(m))
		return r.reply(ctx, req, "You are already on the mailing list.")
	} else if !errors.Is(err, storage.ErrNotFound) {
		r.deps.Log.Error("subscriber lookup failed", logx.Int64("actor", req.FromID), logx.Err(err))
		return r.reply(ctx, req, "Something went wrong, please try again later.")
	}

	if r.deps.Gate.SecretRequired() {
		r.deps.Dialog.Enter(req.FromID, dialog.FlowAwaitingPassword)
		return r.reply(ctx, req, "This list is protected. Reply with the password to join, or /cancel.")
	}
	return r.registerSubscriber(ctx, req, subscriberFrom(m))
}

func (r *Router) registerSubscriber(ctx context.Context, req *Request, sub storage.Subscriber) error {
	if err := r.deps.Store.UpsertSubscriber(ctx, sub); err != nil {
		r.deps.Log.Error("subscriber upsert failed", logx.Int64("actor", sub.ID), logx.Err(err))
		return r.reply(ctx, req, "Something went wrong, please try again later.")
	}

	r.notifyAdmins(ctx, sub, fmt.Sprintf("New subscriber: %s", describeSubscriber(sub)))

	name := sub.FirstName
	if name == "" {
		name = "there"
	}
	return r.reply(ctx, req, fmt.Sprintf("Hi, %s! You have been added to the mailing list.", name))
}

// notifyAdmins is best-effort; a failed admin notification never fails
// the actor-facing operation.
func (r *Router) notifyAdmins(ctx context.Context, about storage.Subscriber, text string) {
	for _, id := range r.deps.Gate.Admins() {
		if id == about.ID {
			continue
		}
		if _, err := r.deps.Adapter.SendText(ctx, kit.ChatTarget{ChatID: id}, text, nil); err != nil {
			r.deps.Log.Warn("admin notification failed", logx.Int64("admin", id), logx.Err(err))
		}
	}
}

func (r *Router) cmdCancel(ctx context.Context, req *Request) error {
	if r.deps.Dialog.Clear(req.FromID) {
		return r.reply(ctx, req, "Okay, cancelled.")
	}
	return r.reply(ctx, req, "Nothing to cancel.")
}

func (r *Router) cmdHelp(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("/start — join the mailing list\n")
	b.WriteString("/cancel — abort the current dialog\n")
	if r.deps.Gate.IsAdmin(req.FromID) {
		b.WriteString("/sendnow — send the daily cheer immediately\n")
		b.WriteString("/t <text> — broadcast text (or attach a photo)\n")
		b.WriteString("/get_users — list subscribers\n")
		b.WriteString("/add_user [id] — add a subscriber by id\n")
		b.WriteString("/remove_user [id] — remove a subscriber by id\n")
		b.WriteString("/stats — delivery statistics\n")
	}
	return r.reply(ctx, req, b.String())
}

func (r *Router) cmdSendNow(ctx context.Context, req *Request) error {
	rep, err := r.deps.Scheduler.TriggerNow(ctx)
	if err != nil {
		r.deps.Log.Error("instant fan-out failed", logx.Err(err))
		return r.reply(ctx, req, "Couldn't run the send: "+err.Error())
	}
	return r.reply(ctx, req, summarize(rep))
}

func (r *Router) cmdBroadcast(ctx context.Context, req *Request) error {
	m := req.Update.Message

	if job, ok := broadcastJobFrom(m, req.Args, req.FromID); ok {
		return r.runBroadcast(ctx, req, job)
	}

	r.deps.Dialog.Enter(req.FromID, dialog.FlowAwaitingBroadcastContent)
	return r.reply(ctx, req, "Send the text or photo to broadcast, or /cancel.")
}

// broadcastJobFrom wraps inbound admin content into a fan-out job. ok is
// false when the message carries no content.
func broadcastJobFrom(m *kit.Message, text string, sender int64) (broadcast.Job, bool) {
	job := broadcast.Job{Kind: "broadcast", ExcludedSender: sender}
	switch {
	case m.PhotoID != "":
		job.Photo = &kit.Photo{FileID: m.PhotoID, Caption: text}
		return job, true
	case text != "":
		job.Text = text
		return job, true
	default:
		return broadcast.Job{}, false
	}
}

func (r *Router) runBroadcast(ctx context.Context, req *Request, job broadcast.Job) error {
	recipients, err := r.deps.Store.ListSubscribers(ctx)
	if err != nil {
		r.deps.Log.Error("recipient enumeration failed", logx.Err(err))
		return r.reply(ctx, req, "Couldn't load the subscriber list.")
	}
	if len(recipients) == 0 {
		return r.reply(ctx, req, "There are no subscribers to broadcast to.")
	}

	start := time.Now()
	rep := r.deps.Dispatcher.Dispatch(ctx, job, recipients)
	r.recordDispatch(ctx, job.Kind, rep, time.Since(start))
	return r.reply(ctx, req, summarize(rep))
}

func (r *Router) recordDispatch(ctx context.Context, kind string, rep broadcast.Report, took time.Duration) {
	err := r.deps.Store.LogDispatch(ctx, storage.DispatchRecord{
		Kind:      kind,
		Attempted: rep.Attempted,
		Delivered: rep.Delivered,
		Failed:    rep.Failed(),
		TookMS:    took.Milliseconds(),
	})
	if err != nil {
		r.deps.Log.Warn("dispatch log write failed", logx.Err(err))
	}
}

func (r *Router) cmdGetUsers(ctx context.Context, req *Request) error {
	subs, err := r.deps.Store.ListSubscribers(ctx)
	if err != nil {
		r.deps.Log.Error("subscriber list failed", logx.Err(err))
		return r.reply(ctx, req, "Couldn't load the subscriber list.")
	}
	if len(subs) == 0 {
		return r.reply(ctx, req, "The subscriber list is empty.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subscribers (%d):\n", len(subs))
	for _, s := range subs {
		b.WriteString(describeSubscriber(s))
		b.WriteByte('\n')
	}
	return r.reply(ctx, req, b.String())
}

func (r *Router) cmdAddUser(ctx context.Context, req *Request) error {
	if req.Args != "" {
		return r.addByID(ctx, req, req.Args)
	}
	r.deps.Dialog.Enter(req.FromID, dialog.FlowAwaitingAddUserID)
	return r.reply(ctx, req, "Send the user id to add, or /cancel.")
}

func (r *Router) addByID(ctx context.Context, req *Request, raw string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return r.reply(ctx, req, "The user id must be a number.")
	}

	switch _, err := r.deps.Store.GetSubscriber(ctx, id); {
	case err == nil:
		return r.reply(ctx, req, fmt.Sprintf("User %d already exists in the list.", id))
	case !errors.Is(err, storage.ErrNotFound):
		r.deps.Log.Error("subscriber lookup failed", logx.Int64("target", id), logx.Err(err))
		return r.reply(ctx, req, "Storage failure, nothing was changed.")
	}

	info, err := r.deps.Adapter.ResolveChat(ctx, id)
	if err != nil {
		return r.reply(ctx, req, fmt.Sprintf("Couldn't resolve user %d: %v", id, err))
	}

	sub := storage.Subscriber{ID: id, FirstName: info.FirstName, Username: info.Username}
	if err := r.deps.Store.UpsertSubscriber(ctx, sub); err != nil {
		r.deps.Log.Error("subscriber upsert failed", logx.Int64("target", id), logx.Err(err))
		return r.reply(ctx, req, "Storage failure, nothing was changed.")
	}
	return r.reply(ctx, req, "Added subscriber:\n"+describeSubscriber(sub))
}

func (r *Router) cmdRemoveUser(ctx context.Context, req *Request) error {
	if req.Args != "" {
		return r.removeByID(ctx, req, req.Args)
	}
	r.deps.Dialog.Enter(req.FromID, dialog.FlowAwaitingRemoveUserID)
	return r.reply(ctx, req, "Send the user id to remove, or /cancel.")
}

func (r *Router) removeByID(ctx context.Context, req *Request, raw string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return r.reply(ctx, req, "The user id must be a number.")
	}

	existed, err := r.deps.Store.RemoveSubscriber(ctx, id)
	if err != nil {
		r.deps.Log.Error("subscriber remove failed", logx.Int64("target", id), logx.Err(err))
		return r.reply(ctx, req, "Storage failure, nothing was changed.")
	}
	if !existed {
		return r.reply(ctx, req, fmt.Sprintf("User %d is not in the list.", id))
	}
	return r.reply(ctx, req, fmt.Sprintf("User %d has been removed.", id))
}

func (r *Router) cmdStats(ctx context.Context, req *Request) error {
	count, err := r.deps.Store.CountSubscribers(ctx)
	if err != nil {
		r.deps.Log.Error("subscriber count failed", logx.Err(err))
		return r.reply(ctx, req, "Couldn't load statistics.")
	}
	recent, err := r.deps.Store.RecentSubscribers(ctx, 5)
	if err != nil {
		r.deps.Log.Error("recent subscribers failed", logx.Err(err))
		return r.reply(ctx, req, "Couldn't load statistics.")
	}
	runs, err := r.deps.Store.RecentDispatches(ctx, 5)
	if err != nil {
		r.deps.Log.Error("dispatch log read failed", logx.Err(err))
		return r.reply(ctx, req, "Couldn't load statistics.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subscribers: %d\n", count)
	if len(recent) > 0 {
		b.WriteString("\nRecently active:\n")
		for _, s := range recent {
			fmt.Fprintf(&b, "%s — %s\n", describeSubscriber(s), s.LastActiveAt.Format("2006-01-02 15:04"))
		}
	}
	if len(runs) > 0 {
		b.WriteString("\nRecent sends:\n")
		for _, d := range runs {
			fmt.Fprintf(&b, "%s %s: %d/%d delivered, %d failed (%dms)\n",
				d.At.Format("2006-01-02 15:04"), d.Kind, d.Delivered, d.Attempted, d.Failed, d.TookMS)
		}
	}
	return r.reply(ctx, req, b.String())
}

func subscriberFrom(m *kit.Message) storage.Subscriber {
	return storage.Subscriber{
		ID:        m.FromID,
		FirstName: m.FromName,
		Username:  m.FromUsername,
	}
}

func describeSubscriber(s storage.Subscriber) string {
	username := "none"
	if s.Username != "" {
		username = "@" + s.Username
	}
	name := s.FirstName
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("ID: %d, Name: %s, Username: %s", s.ID, name, username)
}

func summarize(rep broadcast.Report) string {
	if rep.Attempted == 0 {
		return "No recipients; nothing was sent."
	}
	if rep.Failed() == 0 {
		return fmt.Sprintf("Delivered to all %d recipients.", rep.Delivered)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Delivered %d/%d; %d failed:\n", rep.Delivered, rep.Attempted, rep.Failed())
	const maxListed = 10
	for i, f := range rep.Failures {
		if i == maxListed {
			fmt.Fprintf(&b, "… and %d more\n", len(rep.Failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "%d: %s\n", f.RecipientID, f.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
