package transport

import (
	"context"
	"time"

	"github.com/cuemby/raft/pkg/log"
	"github.com/cuemby/raft/pkg/metrics"
	"github.com/google/uuid"
	"google.golang.org/grpc"
)

// LoggingInterceptor logs every inbound Dispatch call with a per-request
// correlation id.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := uuid.New().String()
		start := time.Now()
		base := log.Logger
		if env, ok := req.(*Envelope); ok {
			base = log.WithPeer(uint64(env.Msg.From))
		}
		logger := base.With().Str("request_id", reqID).Str("method", info.FullMethod).Logger()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error().Err(err).Dur("elapsed", elapsed).Msg("rpc failed")
		} else {
			logger.Debug().Dur("elapsed", elapsed).Msg("rpc handled")
		}
		return resp, err
	}
}

// MetricsInterceptor records Dispatch latency and outcome counts.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)
		timer.ObserveDuration(metrics.TransportDispatchDuration)
		metrics.TransportDispatchTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return resp, err
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ClientLoggingInterceptor logs outbound Dispatch calls made by Client.
func ClientLoggingInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		reqID := uuid.New().String()
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logger := log.Logger.With().Str("request_id", reqID).Str("method", method).Dur("elapsed", time.Since(start)).Logger()
		if err != nil {
			logger.Warn().Err(err).Msg("outbound rpc failed")
		} else {
			logger.Debug().Msg("outbound rpc sent")
		}
		return err
	}
}
