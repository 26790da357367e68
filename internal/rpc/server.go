package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/decoder"
)

// #region server

// Server implements DecoderServer over a decoder.Service.
type Server struct {
	svc             *decoder.Service
	defaultLanguage string
	logger          *slog.Logger
}

// NewServer wraps svc. Requests without a language use defaultLanguage.
func NewServer(svc *decoder.Service, defaultLanguage string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, defaultLanguage: defaultLanguage, logger: logger}
}

// NewGRPCServer returns a grpc.Server with the Decoder and health services
// registered and request logging installed.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(srv.logger)))
	gs := grpc.NewServer(opts...)
	RegisterDecoderServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// #endregion server

// #region handlers

func (s *Server) Decode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequestFrom(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Language == "" {
		req.Language = s.defaultLanguage
	}

	dreq := decoder.Request{
		Ciphertext: req.Ciphertext,
		Language:   req.Language,
		Seed:       req.Seed,
		Persist:    req.Persist,
	}
	if req.Iterations > 0 {
		cfg := s.svc.Config()
		cfg.Iterations = req.Iterations
		dreq.Config = &cfg
	}

	resp, err := s.svc.Decode(ctx, dreq)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := DecodeResult{
		SessionID:       resp.SessionID,
		VersionID:       resp.VersionID,
		Language:        resp.Language,
		Seed:            resp.Seed,
		Plaintext:       resp.Plaintext,
		Key:             resp.Key(),
		Score:           resp.Score,
		CiphertextScore: resp.CiphertextScore,
		Iterations:      resp.Result.Iterations,
		Accepted:        resp.Result.Accepted,
		Attempts:        len(resp.Attempts),
		Cancelled:       resp.Result.Cancelled,
	}.toStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	language := f["language"].GetStringValue()
	if language == "" {
		language = s.defaultLanguage
	}
	sc, err := s.svc.Score(language, f["text"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"language": language, "score": sc})
}

func (s *Server) Languages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	names := s.svc.Languages()
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	return structpb.NewStruct(map[string]any{"languages": list})
}

// toStatus maps decoder errors onto gRPC codes.
func toStatus(err error) error {
	var unknown *alphabet.UnknownSymbolError
	switch {
	case errors.As(err, &unknown),
		errors.Is(err, corpus.ErrUnknownLanguage),
		errors.Is(err, anneal.ErrInvalidConfig):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, decoder.ErrNoStore):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion handlers
