package router

import (
	"context"
)

// Flow handlers run after the dialog manager has already cleared the
// actor's flow, so every exit path below leaves the actor at rest.

func (r *Router) flowPassword(ctx context.Context, req *Request) error {
	m := req.Update.Message
	if !r.deps.Gate.CheckSecret(m.Text) {
		// No lockout or backoff; every later attempt is independent.
		return r.reply(ctx, req, "Wrong password. Use /start to try again.")
	}
	return r.registerSubscriber(ctx, req, subscriberFrom(m))
}

func (r *Router) flowAddUser(ctx context.Context, req *Request) error {
	// Re-check: admin state may have been long gone between prompt and reply.
	if !r.deps.Gate.IsAdmin(req.FromID) {
		return r.reply(ctx, req, "You are not allowed to run this command.")
	}
	return r.addByID(ctx, req, req.Update.Message.Text)
}

func (r *Router) flowRemoveUser(ctx context.Context, req *Request) error {
	if !r.deps.Gate.IsAdmin(req.FromID) {
		return r.reply(ctx, req, "You are not allowed to run this command.")
	}
	return r.removeByID(ctx, req, req.Update.Message.Text)
}

func (r *Router) flowBroadcast(ctx context.Context, req *Request) error {
	if !r.deps.Gate.IsAdmin(req.FromID) {
		return r.reply(ctx, req, "You are not allowed to run this command.")
	}

	m := req.Update.Message
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	job, ok := broadcastJobFrom(m, text, req.FromID)
	if !ok {
		return r.reply(ctx, req, "The broadcast content is empty. Use /t to start over.")
	}
	return r.runBroadcast(ctx, req, job)
}
