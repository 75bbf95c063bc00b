package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"ambulanceDispatch/internal/auth"
	"ambulanceDispatch/internal/config"
	"ambulanceDispatch/internal/dispatch"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps are the collaborators the gRPC services call into.
type Deps struct {
	Coord     *dispatch.Coordinator
	Accounts  *dispatch.AccountService
	Operators auth.OperatorLookup
}

// NewServer builds a gRPC server with the auth, HQ and driver services and the
// standard health service registered. It does not listen.
func NewServer(secret string, deps Deps, log zerolog.Logger) *grpc.Server {
	public := []string{
		healthCheckMethod,
		fullMethod(authServiceName, "SignupDriver"),
		fullMethod(authServiceName, "LoginDriver"),
		fullMethod(authServiceName, "LoginOperator"),
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		loggingInterceptor(log),
		auth.NewUnaryAuthInterceptor(secret, public...),
	))

	srv.RegisterService(&authServiceDesc, &AuthServer{Accounts: deps.Accounts})
	srv.RegisterService(&hqServiceDesc, &HQServer{Coord: deps.Coord, Operators: deps.Operators})
	srv.RegisterService(&driverServiceDesc, &DriverServer{Coord: deps.Coord})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, name := range []string{authServiceName, hqServiceName, driverServiceName} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, deps Deps, log zerolog.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext; terminate TLS in front of the server.
	srv := NewServer(cfg.Auth.JWTSecret, deps, log)

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve stopped")
		}
	}()
	log.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}

// loggingInterceptor logs one line per unary call with its code and latency.
func loggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	log = log.With().Str("component", "grpc").Logger()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("latency", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}
