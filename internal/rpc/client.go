package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client wraps the gRPC connection to a decoder server.
type Client struct {
	conn   *grpc.ClientConn
	client DecoderClient
	health healthpb.HealthClient
}
// #endregion client-struct

// #region constructor
// NewClient connects to the decoder server at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewDecoderClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc DecoderClient) *Client {
	return &Client{client: svc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region decode
// Decode asks the server to decode a ciphertext.
func (c *Client) Decode(ctx context.Context, req DecodeRequest) (DecodeResult, error) {
	in, err := req.toStruct()
	if err != nil {
		return DecodeResult{}, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.client.Decode(ctx, in)
	if err != nil {
		return DecodeResult{}, fmt.Errorf("decode rpc: %w", err)
	}
	return decodeResultFrom(resp)
}
// #endregion decode

// #region score
// Score asks the server to score text under language.
func (c *Client) Score(ctx context.Context, language, text string) (float64, error) {
	in, err := structpb.NewStruct(map[string]any{"language": language, "text": text})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.client.Score(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("score rpc: %w", err)
	}
	return resp.GetFields()["score"].GetNumberValue(), nil
}
// #endregion score

// #region languages
// Languages lists the languages the server has models for.
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	resp, err := c.client.Languages(ctx, &structpb.Struct{})
	if err != nil {
		return nil, fmt.Errorf("languages rpc: %w", err)
	}
	values := resp.GetFields()["languages"].GetListValue().GetValues()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.GetStringValue()
	}
	return out, nil
}
// #endregion languages

// #region health
// Healthy reports whether the server says the Decoder service is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	if c.health == nil {
		return false, fmt.Errorf("health check: no connection")
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("health rpc: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
// #endregion health
