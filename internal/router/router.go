// Package router is the two-stage inbound dispatcher: fixed commands
// first, then the actor's active conversation flow, then a single
// "not understood" fallback. Handlers never register per-event reply
// handlers; all flow state lives in the dialog manager.
package router

import (
	"context"
	"strings"
	"time"

	"cheerbot/internal/auth"
	"cheerbot/internal/broadcast"
	"cheerbot/internal/content"
	"cheerbot/internal/dialog"
	"cheerbot/internal/storage"
	kit "cheerbot/internal/transport"
	logx "cheerbot/pkg/logx"
)

// SchedulerPort is the slice of the scheduler the router needs for
// admin-triggered instant sends.
type SchedulerPort interface {
	TriggerNow(ctx context.Context) (broadcast.Report, error)
}

// Deps is the explicit wiring context handed to the router at startup;
// there are no ambient/global handles.
type Deps struct {
	Adapter    kit.Adapter
	Store      storage.Store
	Gate       *auth.Gate
	Dialog     *dialog.Manager
	Dispatcher *broadcast.Dispatcher
	Scheduler  SchedulerPort
	Content    content.Provider

	// Topic is the image-search query for cheer content.
	Topic string
	// ReactionMarkup is adapter-specific markup attached to cheer photos.
	ReactionMarkup any

	HandlerTimeout time.Duration
	Log            logx.Logger
}

// Request carries one inbound update through the middleware chain.
type Request struct {
	Update  kit.Update
	FromID  int64
	Chat    kit.ChatTarget
	Command string
	Args    string // raw argument tail after the command
}

type command struct {
	name      string
	adminOnly bool
	handle    HandlerFunc
}

type Router struct {
	deps     Deps
	tmo      Middleware // per-handler timeout for non-fan-out handlers
	commands map[string]command
	handle   HandlerFunc // message pipeline with middleware applied
	callback HandlerFunc // callback pipeline with middleware applied
}

func New(deps Deps) *Router {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	if deps.HandlerTimeout <= 0 {
		deps.HandlerTimeout = 30 * time.Second
	}
	r := &Router{deps: deps, commands: map[string]command{}}
	r.tmo = MWTimeout(deps.HandlerTimeout)
	r.registerCommands()

	mw := []Middleware{
		MWPanicRecover(deps.Log),
		MWRequestLog(deps.Log),
	}
	r.handle = Chain(r.routeMessage, mw...)
	r.callback = Chain(r.routeCallback, mw...)
	return r
}

func (r *Router) register(name string, adminOnly bool, h HandlerFunc) {
	r.commands[name] = command{name: name, adminOnly: adminOnly, handle: h}
}

func (r *Router) registerCommands() {
	r.register("start", false, r.tmo(r.cmdStart))
	r.register("cancel", false, r.tmo(r.cmdCancel))
	r.register("help", false, r.tmo(r.cmdHelp))
	// Fan-out commands are not bounded by the handler timeout: a large
	// recipient list takes as long as the rate limiter allows, the same
	// as the scheduled run. Each individual send has its own timeout.
	r.register("sendnow", true, r.cmdSendNow)
	r.register("t", true, r.cmdBroadcast)
	r.register("get_users", true, r.tmo(r.cmdGetUsers))
	r.register("add_user", true, r.tmo(r.cmdAddUser))
	r.register("remove_user", true, r.tmo(r.cmdRemoveUser))
	r.register("stats", true, r.tmo(r.cmdStats))
}

// HandleUpdate routes one inbound update. Each update is independent;
// the caller decides the concurrency model.
func (r *Router) HandleUpdate(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		req := &Request{
			Update: up,
			FromID: up.Message.FromID,
			Chat:   kit.ChatTarget{ChatID: up.Message.ChatID},
		}
		_ = r.handle(ctx, req)
	case kit.UpdateCallback:
		if up.Callback == nil {
			return
		}
		req := &Request{
			Update:  up,
			FromID:  up.Callback.FromID,
			Chat:    kit.ChatTarget{ChatID: up.Callback.ChatID},
			Command: up.Callback.Data,
		}
		_ = r.callback(ctx, req)
	}
}

// routeMessage implements the two-stage routing: fixed commands win,
// then the actor's active flow, then the fallback.
func (r *Router) routeMessage(ctx context.Context, req *Request) error {
	m := req.Update.Message

	if name, args, ok := parseCommand(m); ok {
		req.Command, req.Args = name, args
		cmd, known := r.commands[name]
		if !known {
			return r.reply(ctx, req, "I don't know that command. Try /help.")
		}
		// Authorization is checked on every admin transition, not only
		// at flow entry; a rejected attempt changes no state.
		if cmd.adminOnly && !r.deps.Gate.IsAdmin(req.FromID) {
			return r.reply(ctx, req, "You are not allowed to run this command.")
		}
		return cmd.handle(ctx, req)
	}

	// Take atomically clears the flow, so a failing handler can never
	// leave the actor stuck mid-dialog.
	switch flow := r.deps.Dialog.Take(req.FromID); flow {
	case dialog.FlowAwaitingPassword:
		req.Command = "flow:" + flow.String()
		return r.tmo(r.flowPassword)(ctx, req)
	case dialog.FlowAwaitingAddUserID:
		req.Command = "flow:" + flow.String()
		return r.tmo(r.flowAddUser)(ctx, req)
	case dialog.FlowAwaitingRemoveUserID:
		req.Command = "flow:" + flow.String()
		return r.tmo(r.flowRemoveUser)(ctx, req)
	case dialog.FlowAwaitingBroadcastContent:
		// Fans out; not bounded by the handler timeout.
		req.Command = "flow:" + flow.String()
		return r.flowBroadcast(ctx, req)
	}

	req.Command = "fallback"
	return r.tmo(r.fallback)(ctx, req)
}

func (r *Router) fallback(ctx context.Context, req *Request) error {
	return r.reply(ctx, req, "Sorry, I didn't understand that. Try /help.")
}

// parseCommand extracts "/cmd args" from the message text, or from the
// photo caption so "/t" can carry an attached photo.
func parseCommand(m *kit.Message) (name, args string, ok bool) {
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, tail, _ := strings.Cut(text[1:], " ")
	// Strip the "@botname" suffix Telegram appends in groups.
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(tail), true
}

func (r *Router) reply(ctx context.Context, req *Request, text string) error {
	_, err := r.deps.Adapter.SendText(ctx, req.Chat, text, nil)
	if err != nil {
		r.deps.Log.Warn("reply failed", logx.Int64("chat_id", req.Chat.ChatID), logx.Err(err))
	}
	return err
}
