package util

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	prometheusgolang "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/status"
)

const (
	oneGigabyte = 1024 * 1024 * 1024

	defaultRetryBackoff = 100 * time.Millisecond
)

// ConnectionOptions contains the parameters for gRPC client connections and servers.
type ConnectionOptions struct {
	MaxMessageSize int           // Max message size in bytes
	MaxRetries     int           // Max number of retries for transient errors
	RetryBackoff   time.Duration // Backoff between retries
}

func init() {
	resolver.SetDefaultScheme("dns")
}

// GetGRPCClient creates a gRPC client connection that speaks the JSON codec, with optional
// retries, prometheus metrics and OpenTelemetry tracing depending on settings.
func GetGRPCClient(_ context.Context, address string, connectionOptions *ConnectionOptions, tSettings *settings.Settings) (*grpc.ClientConn, error) {
	if address == "" {
		return nil, errors.NewInvalidArgumentError("address is required")
	}

	if connectionOptions.MaxMessageSize == 0 {
		connectionOptions.MaxMessageSize = oneGigabyte
	}

	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(connectionOptions.MaxMessageSize),
			grpc.MaxCallRecvMsgSize(connectionOptions.MaxMessageSize),
			grpc.CallContentSubtype(JSONCodecName),
		),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	unaryClientInterceptors := make([]grpc.UnaryClientInterceptor, 0, 2)

	if tSettings.GRPC.OpenTelemetry || tSettings.Tracing.Enabled {
		opts = append(opts, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	}

	if tSettings.GRPC.Prometheus {
		unaryClientInterceptors = append(unaryClientInterceptors, prometheusClientMetrics.UnaryClientInterceptor())

		prometheusRegisterClientOnce.Do(func() {
			prometheusgolang.MustRegister(prometheusClientMetrics)
		})
	}

	if connectionOptions.MaxRetries > 0 {
		if connectionOptions.RetryBackoff == 0 {
			connectionOptions.RetryBackoff = defaultRetryBackoff
		}

		unaryClientInterceptors = append(unaryClientInterceptors, retryInterceptor(connectionOptions.MaxRetries, connectionOptions.RetryBackoff))
	}

	if len(unaryClientInterceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(unaryClientInterceptors...))
	}

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, errors.NewServiceError("error dialing grpc service at %s", address, err)
	}

	return conn, nil
}

var (
	prometheusRegisterServerOnce sync.Once
	prometheusRegisterClientOnce sync.Once

	prometheusServerMetrics = prometheus.NewServerMetrics(
		prometheus.WithServerHandlingTimeHistogram(),
	)

	prometheusClientMetrics = prometheus.NewClientMetrics(
		prometheus.WithClientHandlingTimeHistogram(),
	)
)

// NewGRPCServer creates a gRPC server with message size limits and the interceptors enabled in
// settings.
func NewGRPCServer(connectionOptions *ConnectionOptions, tSettings *settings.Settings, opts ...grpc.ServerOption) *grpc.Server {
	if connectionOptions.MaxMessageSize == 0 {
		connectionOptions.MaxMessageSize = oneGigabyte
	}

	opts = append(opts,
		grpc.MaxSendMsgSize(connectionOptions.MaxMessageSize),
		grpc.MaxRecvMsgSize(connectionOptions.MaxMessageSize),
	)

	if tSettings.GRPC.OpenTelemetry || tSettings.Tracing.Enabled {
		opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	if tSettings.GRPC.Prometheus {
		opts = append(opts, grpc.ChainUnaryInterceptor(prometheusServerMetrics.UnaryServerInterceptor()))
	}

	server := grpc.NewServer(opts...)

	if tSettings.GRPC.Prometheus {
		prometheusRegisterServerOnce.Do(func() {
			prometheusgolang.MustRegister(prometheusServerMetrics)
		})
		prometheusServerMetrics.InitializeMetrics(server)
	}

	return server
}

// StartGRPCServer listens on address and serves until ctx is done.
func StartGRPCServer(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, serviceName, address string, register func(server *grpc.Server), readyCh chan<- struct{}) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.NewServiceError("[%s] GRPC server failed to listen on %s", serviceName, address, err)
	}

	return ServeGRPC(ctx, logger, tSettings, serviceName, lis, register, readyCh)
}

// ServeGRPC serves on an existing listener until ctx is done.
func ServeGRPC(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, serviceName string, lis net.Listener, register func(server *grpc.Server), readyCh chan<- struct{}) error {
	server := NewGRPCServer(&ConnectionOptions{}, tSettings)

	register(server)

	logger.Infof("[%s] GRPC service listening on %s", serviceName, lis.Addr().String())

	go func() {
		<-ctx.Done()
		logger.Infof("[%s] GRPC service shutting down", serviceName)
		server.GracefulStop()
	}()

	if readyCh != nil {
		close(readyCh)
	}

	if err := server.Serve(lis); err != nil {
		return errors.NewServiceError("[%s] GRPC server failed", serviceName, err)
	}

	return nil
}

// retryInterceptor retries calls that fail with codes.Unavailable or codes.DeadlineExceeded.
func retryInterceptor(maxRetries int, retryBackoff time.Duration) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		var err error

		for i := 0; i < maxRetries; i++ {
			err = invoker(ctx, method, req, reply, cc, opts...)
			if err == nil {
				return nil
			}

			if status.Code(err) != codes.Unavailable && status.Code(err) != codes.DeadlineExceeded {
				break
			}

			select {
			case <-ctx.Done():
				return err
			case <-time.After(retryBackoff):
			}
		}

		return err
	}
}

// UnaryMethod describes a unary method whose request decodes into a new Req. The server's
// interceptor chain runs around call.
func UnaryMethod[Req any](serviceName, methodName string, call func(srv interface{}, ctx context.Context, req *Req) (interface{}, error)) grpc.MethodDesc {
	fullMethod := FullMethodName(serviceName, methodName)

	return grpc.MethodDesc{
		MethodName: methodName,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}

			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv, ctx, req.(*Req))
			})
		},
	}
}

// FullMethodName returns the path a client invokes for methodName of serviceName.
func FullMethodName(serviceName, methodName string) string {
	return "/" + serviceName + "/" + methodName
}
