package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vitalsmon/vitalsmon/agent/internal/compute"
	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/pkg/wire"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers compute.Results and pushes them to vitals-server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest report is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg     config.AgentConfig
	buf     chan *wire.Report
	dialFn  dialFunc // injectable for tests
	dropped atomic.Int64
	sent    atomic.Int64
}

// dialFunc is the function signature used to open a gRPC connection.
// Abstracted so tests can dial an in-process server.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *wire.Report, size),
		dialFn: defaultDial,
	}
}

// Ship converts a compute.Result to a wire report and enqueues it.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(res *compute.Result) {
	s.enqueue(res.Report())
}

func (s *Shipper) enqueue(rep *wire.Report) {
	for {
		select {
		case s.buf <- rep:
			return
		default:
		}
		select {
		case <-s.buf:
			s.dropped.Add(1)
			slog.Warn("shipper: buffer full, evicted oldest report",
				"target", rep.TargetID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Dropped returns the number of reports evicted because the buffer was full.
func (s *Shipper) Dropped() int64 { return s.dropped.Load() }

// Sent returns the number of reports the server acknowledged.
func (s *Shipper) Sent() int64 { return s.sent.Load() }

// Pending returns the number of buffered reports.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer, sending reports to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff(s.cfg.ShipInterval)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint)
		bo.reset()

		err = s.drain(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain reads from the buffer and sends reports until the connection fails
// or ctx is cancelled.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn) error {
	client := wire.NewSampleServiceClient(conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case rep := <-s.buf:
			msg, err := rep.ToStruct()
			if err != nil {
				slog.Error("shipper: encode failed, discarding report",
					"target", rep.TargetID, "err", err)
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if s.cfg.ServerAuth.Mode == "apikey" && s.cfg.ServerAuth.KeyEnv != "" {
				sendCtx = metadata.AppendToOutgoingContext(sendCtx,
					s.cfg.ServerAuth.EffectiveHeader(), s.cfg.ServerAuth.Key())
			}
			resp, err := client.PushSample(sendCtx, msg)
			cancel()

			if err != nil {
				// Permanent errors (unauthenticated, invalid arg) are not retried.
				if isPermanentError(err) {
					slog.Error("shipper: permanent send error, discarding report",
						"target", rep.TargetID, "err", err)
					continue
				}
				// Transient: requeue and reconnect. The requeue may evict the
				// oldest report if collections filled the buffer meanwhile.
				s.enqueue(rep)
				return fmt.Errorf("send: %w", err)
			}

			ack := wire.AckFromStruct(resp)
			if !ack.OK {
				slog.Warn("shipper: server did not record report",
					"target", rep.TargetID, "message", ack.Message)
				continue
			}
			s.sent.Add(1)
			slog.Debug("shipper: report delivered",
				"target", rep.TargetID, "session", ack.SessionID, "score", ack.Score)
		}
	}
}

// isPermanentError returns true for gRPC errors that indicate the report
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
		return true
	}
	return false
}

// defaultDial opens a gRPC connection to endpoint with auth configured from cfg.
func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // DialContext kept for grpc 1.62
}

// dialOptions builds grpc.DialOption slice based on the server auth config.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	switch cfg.ServerAuth.Mode {
	case "mtls":
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil

	default: // apikey is sent per call; none is plaintext for local dev
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
}

// buildMTLSCreds loads client certificate and optional CA from the auth config.
func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// newBackoff caps waits at max (ship_interval); a non-positive max falls
// back to the config default.
func newBackoff(max time.Duration) *backoff {
	if max <= 0 {
		max = config.DefaultShipInterval
	}
	initial := backoffInitial
	if initial > max {
		initial = max
	}
	return &backoff{initial: initial, max: max, current: initial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
