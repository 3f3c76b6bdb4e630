package command

import (
	"github.com/adred-codev/respd/internal/resp"
)

// applySubscribe opens one store.Subscription per requested channel,
// stashes it on the connection, and returns one confirmation frame per
// channel: an Array of
// ["subscribe", channel, count-of-subscriptions-on-this-connection].
func (srv *Server) applySubscribe(conn *Conn, cmd Command) Result {
	if len(cmd.Args) == 0 {
		return errResult("ERR wrong number of arguments for 'subscribe' command")
	}
	frames := make([]resp.Frame, 0, len(cmd.Args))
	for _, ch := range cmd.Args {
		if _, already := conn.Subs[ch]; !already {
			sub := srv.Store.Subscribe(ch)
			conn.Subs[ch] = &sub
		}
		frames = append(frames, resp.ArrayOf(
			resp.BulkStringOf("subscribe"),
			resp.BulkStringOf(ch),
			resp.IntegerFrame(int64(len(conn.Subs))),
		))
	}
	return Result{Frames: frames, EnteredSubs: true}
}

// applyUnsubscribe tears down the named channels, or every channel this
// connection holds if none are named.
func (srv *Server) applyUnsubscribe(conn *Conn, cmd Command) Result {
	channels := cmd.Args
	if len(channels) == 0 {
		for ch := range conn.Subs {
			channels = append(channels, ch)
		}
	}
	frames := make([]resp.Frame, 0, len(channels))
	for _, ch := range channels {
		if sub, ok := conn.Subs[ch]; ok {
			sub.Unsubscribe()
			delete(conn.Subs, ch)
		}
		frames = append(frames, resp.ArrayOf(
			resp.BulkStringOf("unsubscribe"),
			resp.BulkStringOf(ch),
			resp.IntegerFrame(int64(len(conn.Subs))),
		))
	}
	if len(frames) == 0 {
		frames = append(frames, resp.ArrayOf(
			resp.BulkStringOf("unsubscribe"),
			resp.NullBulk(),
			resp.IntegerFrame(0),
		))
	}
	return Result{Frames: frames}
}

func (srv *Server) applyPublish(cmd Command) Result {
	if len(cmd.Args) != 2 {
		return errResult("ERR wrong number of arguments for 'publish' command")
	}
	n := srv.Store.Publish(cmd.Args[0], []byte(cmd.Args[1]))
	return single(resp.IntegerFrame(int64(n)))
}
