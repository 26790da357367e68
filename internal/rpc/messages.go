package rpc

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
)

// #region types

// DecodeRequest is the Decode call input. Zero fields take the server
// defaults.
type DecodeRequest struct {
	Ciphertext string
	Language   string
	Seed       uint64
	Iterations int
	Persist    bool
}

// DecodeResult is the Decode call output.
type DecodeResult struct {
	SessionID       string
	VersionID       string
	Language        string
	Seed            uint64
	Plaintext       string
	Key             string
	Score           float64
	CiphertextScore float64
	Iterations      int
	Accepted        int
	Attempts        int
	Cancelled       bool
}

// #endregion types

// #region encode

// Seeds travel as decimal strings: a Struct number is a float64 and
// cannot hold every uint64.

func (r DecodeRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ciphertext": r.Ciphertext,
		"language":   r.Language,
		"seed":       strconv.FormatUint(r.Seed, 10),
		"iterations": r.Iterations,
		"persist":    r.Persist,
	})
}

func decodeRequestFrom(s *structpb.Struct) (DecodeRequest, error) {
	f := s.GetFields()
	seed, err := seedField(f["seed"])
	if err != nil {
		return DecodeRequest{}, err
	}
	iterations, err := iterationsField(f["iterations"])
	if err != nil {
		return DecodeRequest{}, err
	}
	return DecodeRequest{
		Ciphertext: f["ciphertext"].GetStringValue(),
		Language:   f["language"].GetStringValue(),
		Seed:       seed,
		Iterations: iterations,
		Persist:    f["persist"].GetBoolValue(),
	}, nil
}

func (r DecodeResult) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session_id":       r.SessionID,
		"version_id":       r.VersionID,
		"language":         r.Language,
		"seed":             strconv.FormatUint(r.Seed, 10),
		"plaintext":        r.Plaintext,
		"key":              r.Key,
		"score":            r.Score,
		"ciphertext_score": r.CiphertextScore,
		"iterations":       r.Iterations,
		"accepted":         r.Accepted,
		"attempts":         r.Attempts,
		"cancelled":        r.Cancelled,
	})
}

func decodeResultFrom(s *structpb.Struct) (DecodeResult, error) {
	f := s.GetFields()
	seed, err := seedField(f["seed"])
	if err != nil {
		return DecodeResult{}, err
	}
	return DecodeResult{
		SessionID:       f["session_id"].GetStringValue(),
		VersionID:       f["version_id"].GetStringValue(),
		Language:        f["language"].GetStringValue(),
		Seed:            seed,
		Plaintext:       f["plaintext"].GetStringValue(),
		Key:             f["key"].GetStringValue(),
		Score:           f["score"].GetNumberValue(),
		CiphertextScore: f["ciphertext_score"].GetNumberValue(),
		Iterations:      int(f["iterations"].GetNumberValue()),
		Accepted:        int(f["accepted"].GetNumberValue()),
		Attempts:        int(f["attempts"].GetNumberValue()),
		Cancelled:       f["cancelled"].GetBoolValue(),
	}, nil
}

// seedField accepts a decimal string or a number. A missing field is 0.
func seedField(v *structpb.Value) (uint64, error) {
	switch k := v.GetKind().(type) {
	case nil:
		return 0, nil
	case *structpb.Value_StringValue:
		if k.StringValue == "" {
			return 0, nil
		}
		seed, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("seed %q: %w", k.StringValue, err)
		}
		return seed, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n >= math.MaxUint64 || n != math.Trunc(n) {
			return 0, fmt.Errorf("seed %v is not a uint64", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("seed has unsupported type %T", k)
	}
}

// iterationsField accepts a whole number in [0, MaxInt32]. A missing field
// is 0, meaning the server default.
func iterationsField(v *structpb.Value) (int, error) {
	switch k := v.GetKind().(type) {
	case nil:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
			return 0, fmt.Errorf("iterations %v is not a count", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("iterations has unsupported type %T", k)
	}
}

// #endregion encode
