package sink

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/MrWong99/memento/internal/observe"
)

// Fanout delivers each event to the local and the remote sink. Either may be
// nil, in which case that destination is skipped.
type Fanout struct {
	local   *Local
	remote  *Remote
	metrics *observe.Metrics
}

// NewFanout returns a Fanout over local and remote. A nil metrics uses
// [observe.DefaultMetrics].
func NewFanout(local *Local, remote *Remote, metrics *observe.Metrics) *Fanout {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Fanout{local: local, remote: remote, metrics: metrics}
}

// Deliver writes ev locally and then forwards it remotely. The two writes are
// independent: a failure is logged, counted and reported in the Result but
// never stops the other write.
func (f *Fanout) Deliver(ctx context.Context, ev Event) Result {
	if ev.ID == "" {
		ev.ID = xid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	log := observe.Logger(ctx).With("event_id", ev.ID, "session_id", ev.SessionID)

	var res Result
	if f.local != nil {
		res.LocalPath, res.LocalErr = f.local.Write(ctx, ev)
		f.metrics.RecordSinkWrite(ctx, "local", res.LocalErr)
		if res.LocalErr != nil {
			log.Error("sink: local write failed", "err", res.LocalErr)
		} else {
			log.Info("sink: event saved", "path", res.LocalPath)
		}
	}
	if f.remote != nil {
		res.RemoteErr = f.remote.Send(ctx, ev)
		res.RemoteSent = res.RemoteErr == nil
		f.metrics.RecordSinkWrite(ctx, "remote", res.RemoteErr)
		if res.RemoteErr != nil {
			log.Error("sink: remote delivery failed", "err", res.RemoteErr)
		} else {
			log.Info("sink: event forwarded")
		}
	}
	return res
}
