package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor emits one grpc_request entry per call and turns handler panics into Internal.
func LoggingUnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (res any, err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("method", info.FullMethod).WithField("panic", r).Error("Recovered from panic in gRPC handler")
				res, err = nil, status.Error(codes.Internal, "internal server error")
			}

			latency := time.Since(start)
			fields := logrus.Fields{
				"method":     info.FullMethod,
				"code":       status.Code(err).String(),
				"latency":    latency.String(),
				"latency_ns": latency.Nanoseconds(),
			}
			if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
				fields["remote_ip"] = p.Addr.String()
			}
			entry := logrus.WithFields(fields)
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Info("grpc_request")
		}()

		return handler(ctx, req)
	}
}
