package receiver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
	"github.com/vitalsmon/vitalsmon/server/internal/store"
)

// Receiver implements wire.SampleServiceServer.
// It validates each incoming Report and records it on the push session for
// the report's URL and view mode.
type Receiver struct {
	store  *store.Store
	alerts *alerts.Engine
	now    func() time.Time
}

// New creates a Receiver that writes accepted reports to st and evaluates
// eng (which may be nil) after every recorded sample.
func New(st *store.Store, eng *alerts.Engine) *Receiver {
	return &Receiver{store: st, alerts: eng, now: time.Now}
}

// PushSample is the unary RPC handler called by vitals-agent instances.
// Authentication is enforced by the gRPC server interceptor before this is
// called.
func (r *Receiver) PushSample(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rep, err := wire.ReportFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	mode, err := session.ParseViewMode(rep.ViewMode)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sess, created, err := r.store.Open(rep.URL, mode, nil)
	switch {
	case errors.Is(err, session.ErrInvalidURL):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrFull):
		return nil, status.Error(codes.ResourceExhausted, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	if created {
		slog.Info("receiver: push session created", "id", sess.ID, "url", sess.URL, "target", rep.TargetID)
	}

	now := r.now()
	sess.SetAgentInfo(rep.UptimePct, rep.Cert)

	ack := &wire.Ack{SessionID: sess.ID}
	switch {
	case rep.Sample == nil:
		msg := rep.ErrorMessage
		if msg == "" {
			msg = "collection failed"
		}
		sess.ReportError(msg, now)
		ack.Message = msg
	case sess.Observe(*rep.Sample, now):
		ack.OK = true
		ack.Score = vitals.Score(*rep.Sample)
	default:
		ack.Message = "monitoring paused"
	}

	v := sess.Snapshot()
	if r.alerts != nil && ack.OK {
		r.alerts.Evaluate(v)
	}

	slog.Debug("receiver: report recorded",
		"session", sess.ID,
		"target", rep.TargetID,
		"ok", ack.OK,
		"score", ack.Score,
		"msg", ack.Message,
	)

	out, err := ack.ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
