package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// APIKeyInterceptor guards agent pushes. The key is read from the incoming
// metadata under header; any failure is codes.Unauthenticated.
func APIKeyInterceptor(mode, header, key string) grpc.UnaryServerInterceptor {
	g := NewGuard(mode, header, key)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !g.Enabled() {
			return handler(ctx, req)
		}
		var got string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(g.Header()); len(vals) > 0 {
				got = vals[0]
			}
		}
		if err := g.Check(got); err != nil {
			slog.Warn("auth: push rejected", "method", info.FullMethod, "reason", err)
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}
