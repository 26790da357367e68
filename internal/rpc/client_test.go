package rpc

import (
	"context"
	"errors"
	"math"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockDecoderService struct {
	lastDecode *structpb.Struct

	decodeResp *structpb.Struct
	decodeErr  error

	scoreResp *structpb.Struct
	scoreErr  error

	languagesResp *structpb.Struct
	languagesErr  error
}

func (m *mockDecoderService) Decode(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastDecode = in
	return m.decodeResp, m.decodeErr
}

func (m *mockDecoderService) Score(_ context.Context, _ *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return m.scoreResp, m.scoreErr
}

func (m *mockDecoderService) Languages(_ context.Context, _ *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return m.languagesResp, m.languagesErr
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

// #endregion mock

// #region constructor-tests
func TestNewClient(t *testing.T) {
	client, err := NewClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewClientWithService(t *testing.T) {
	c := NewClientWithService(&mockDecoderService{})
	if c == nil || c.client == nil {
		t.Fatal("expected non-nil internal client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

// #endregion constructor-tests

// #region decode-tests
func TestDecode_Success(t *testing.T) {
	mock := &mockDecoderService{
		decodeResp: mustStruct(t, map[string]any{
			"session_id": "s1",
			"plaintext":  "HELLO",
			"key":        "ABCDEFGHIJKLMNOPQRSTUVWXYZ ",
			"seed":       "18446744073709551615",
			"score":      -12.5,
			"iterations": 100,
			"attempts":   2,
			"cancelled":  true,
		}),
	}
	c := NewClientWithService(mock)

	res, err := c.Decode(context.Background(), DecodeRequest{Ciphertext: "URYYB", Language: "english", Seed: 42, Persist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SessionID != "s1" || res.Plaintext != "HELLO" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Seed != 18446744073709551615 {
		t.Errorf("expected max uint64 seed, got %d", res.Seed)
	}
	if res.Score != -12.5 || res.Iterations != 100 || res.Attempts != 2 || !res.Cancelled {
		t.Errorf("unexpected numeric fields %+v", res)
	}

	req, err := decodeRequestFrom(mock.lastDecode)
	if err != nil {
		t.Fatalf("request round trip: %v", err)
	}
	if req.Seed != 42 || req.Ciphertext != "URYYB" || !req.Persist {
		t.Errorf("unexpected request on the wire %+v", req)
	}
}

func TestDecode_Error(t *testing.T) {
	c := NewClientWithService(&mockDecoderService{decodeErr: errors.New("connection refused")})
	_, err := c.Decode(context.Background(), DecodeRequest{Ciphertext: "A"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, c.client.(*mockDecoderService).decodeErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestSeedField(t *testing.T) {
	cases := []struct {
		v       *structpb.Value
		want    uint64
		wantErr bool
	}{
		{nil, 0, false},
		{structpb.NewStringValue(""), 0, false},
		{structpb.NewStringValue("7"), 7, false},
		{structpb.NewNumberValue(9), 9, false},
		{structpb.NewStringValue("seven"), 0, true},
		{structpb.NewNumberValue(-1), 0, true},
		{structpb.NewNumberValue(1.5), 0, true},
		{structpb.NewNumberValue(math.NaN()), 0, true},
		{structpb.NewNumberValue(1e30), 0, true},
		{structpb.NewBoolValue(true), 0, true},
	}
	for i, c := range cases {
		got, err := seedField(c.v)
		if (err != nil) != c.wantErr {
			t.Errorf("case %d: unexpected error state %v", i, err)
		}
		if err == nil && got != c.want {
			t.Errorf("case %d: expected %d, got %d", i, c.want, got)
		}
	}
}

func TestIterationsField(t *testing.T) {
	cases := []struct {
		v       *structpb.Value
		want    int
		wantErr bool
	}{
		{nil, 0, false},
		{structpb.NewNumberValue(0), 0, false},
		{structpb.NewNumberValue(500), 500, false},
		{structpb.NewNumberValue(-1), 0, true},
		{structpb.NewNumberValue(2.5), 0, true},
		{structpb.NewNumberValue(math.NaN()), 0, true},
		{structpb.NewNumberValue(math.Inf(1)), 0, true},
		{structpb.NewNumberValue(1e19), 0, true},
		{structpb.NewStringValue("500"), 0, true},
	}
	for i, c := range cases {
		got, err := iterationsField(c.v)
		if (err != nil) != c.wantErr {
			t.Errorf("case %d: unexpected error state %v", i, err)
		}
		if err == nil && got != c.want {
			t.Errorf("case %d: expected %d, got %d", i, c.want, got)
		}
	}
}

// #endregion decode-tests

// #region score-tests
func TestScore_Success(t *testing.T) {
	c := NewClientWithService(&mockDecoderService{scoreResp: mustStruct(t, map[string]any{"score": -3.25})})
	sc, err := c.Score(context.Background(), "english", "HI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc != -3.25 {
		t.Errorf("expected -3.25, got %v", sc)
	}
}

func TestLanguages_Success(t *testing.T) {
	c := NewClientWithService(&mockDecoderService{
		languagesResp: mustStruct(t, map[string]any{"languages": []any{"english", "french"}}),
	})
	langs, err := c.Languages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(langs) != 2 || langs[1] != "french" {
		t.Errorf("unexpected languages %v", langs)
	}
}

func TestHealthy_NoConnection(t *testing.T) {
	c := NewClientWithService(&mockDecoderService{})
	if _, err := c.Healthy(context.Background()); err == nil {
		t.Fatal("expected error without a connection")
	}
}

// #endregion score-tests
