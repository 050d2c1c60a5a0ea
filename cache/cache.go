package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

var (
	ErrUnknownBackend = errors.New("unknown cache backend")
	ErrMalformedValue = errors.New("malformed cached outcome")
)

// Store is a persistent string-to-string map. Keys are compared literally.
// Set never replaces a value already stored under the key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Key derives the cache key for command run against the project file contents,
// given in role order. Any byte difference in either yields a different key.
func Key(command string, files []string) string {
	return command + strings.Join(files, "\n")
}

// keyDigest is the fixed-size index for key. Backends that cap key or index
// entry sizes store the literal key beside the value and compare it on read.
func keyDigest(key string) digest.Digest {
	return digest.FromString(key)
}

// Outcome is the cached part of a command result
type Outcome struct {
	ExitCode int
	Stderr   string
}

// Encode serializes o as the two-element JSON array [exit_code, "stderr"]
func (o Outcome) Encode() (string, error) {
	data, err := json.Marshal([]any{o.ExitCode, o.Stderr})
	if err != nil {
		return "", fmt.Errorf("encoding outcome: %w", err)
	}
	return string(data), nil
}

// DecodeOutcome parses a value produced by Outcome.Encode
func DecodeOutcome(value string) (Outcome, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal([]byte(value), &pair); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrMalformedValue, err)
	}
	if len(pair) != 2 {
		return Outcome{}, fmt.Errorf("%w: expected 2 elements, got %d", ErrMalformedValue, len(pair))
	}

	var o Outcome
	if err := json.Unmarshal(pair[0], &o.ExitCode); err != nil {
		return Outcome{}, fmt.Errorf("%w: exit code: %w", ErrMalformedValue, err)
	}
	if err := json.Unmarshal(pair[1], &o.Stderr); err != nil {
		return Outcome{}, fmt.Errorf("%w: stderr: %w", ErrMalformedValue, err)
	}
	return o, nil
}
