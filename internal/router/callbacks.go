package router

import (
	"context"
	"strings"

	kit "cheerbot/internal/transport"
	logx "cheerbot/pkg/logx"
)

// Callback button tags. Reaction buttons ride on every cheer photo;
// cmd:* tags let admin shortcut buttons run a command by name.
const (
	CallbackLike     = "reaction:like"
	CallbackNewPhoto = "reaction:new_photo"
	callbackCmdPre   = "cmd:"
)

func (r *Router) routeCallback(ctx context.Context, req *Request) error {
	cb := req.Update.Callback

	switch {
	case cb.Data == CallbackLike:
		return r.tmo(r.cbLike)(ctx, req)

	case cb.Data == CallbackNewPhoto:
		return r.tmo(r.cbNewPhoto)(ctx, req)

	case strings.HasPrefix(cb.Data, callbackCmdPre):
		// The command carries its own timeout policy.
		return r.runCommandTag(ctx, req, strings.TrimPrefix(cb.Data, callbackCmdPre))

	default:
		return r.tmo(r.cbUnknown)(ctx, req)
	}
}

func (r *Router) cbLike(ctx context.Context, req *Request) error {
	return r.deps.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Thanks for the love!")
}

func (r *Router) cbNewPhoto(ctx context.Context, req *Request) error {
	if err := r.deps.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Fetching a new photo…"); err != nil {
		r.deps.Log.Warn("callback answer failed", logx.Err(err))
	}
	return r.sendFreshPhoto(ctx, req)
}

// cbUnknown acks silently so the client stops the spinner.
func (r *Router) cbUnknown(ctx context.Context, req *Request) error {
	return r.deps.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "")
}

// sendFreshPhoto serves the "new photo" reaction: one image for the one
// actor who asked, on the same content path as cheer sends.
func (r *Router) sendFreshPhoto(ctx context.Context, req *Request) error {
	url, err := r.deps.Content.Fetch(ctx, r.deps.Topic)
	if err != nil {
		r.deps.Log.Warn("content fetch failed", logx.Err(err))
	}
	to := kit.ChatTarget{ChatID: req.FromID}
	if url == "" {
		_, err := r.deps.Adapter.SendText(ctx, to, "Couldn't fetch a new photo right now.", nil)
		return err
	}

	photo := kit.Photo{URL: url, Caption: "Here is a fresh one for you!"}
	opt := &kit.SendOptions{ReplyMarkupAdapter: r.deps.ReactionMarkup}
	_, err = r.deps.Adapter.SendPhoto(ctx, to, photo, opt)
	return err
}

// tagCommands are the commands reachable from a button tag. They must
// not depend on an inbound message body.
var tagCommands = map[string]struct{}{
	"sendnow": {},
	"stats":   {},
	"help":    {},
}

// runCommandTag executes a command by its button tag. The same
// authorization gate applies as for the typed command.
func (r *Router) runCommandTag(ctx context.Context, req *Request, name string) error {
	cmd, known := r.commands[name]
	if _, allowed := tagCommands[name]; !allowed {
		known = false
	}
	if !known {
		return r.deps.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Unknown action.")
	}
	if cmd.adminOnly && !r.deps.Gate.IsAdmin(req.FromID) {
		return r.deps.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Not allowed.")
	}
	if err := r.deps.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, ""); err != nil {
		r.deps.Log.Warn("callback answer failed", logx.Err(err))
	}

	// Command handlers only need identity and a reply target.
	creq := &Request{
		Update:  req.Update,
		FromID:  req.FromID,
		Chat:    req.Chat,
		Command: name,
	}
	return cmd.handle(ctx, creq)
}
