package cache

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/GoCodeAlone/baseapp/config"
	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options are the untyped adapter options read from a config section.
type Options = config.Section

// DefaultLifetime applies when a frontend section sets no lifetime.
const DefaultLifetime = 24 * time.Hour

// Frontend serializes values on their way into a backend and back out.
type Frontend interface {
	// Lifetime is the TTL applied when Save is not given one
	Lifetime() time.Duration

	// Encode turns a value into the payload stored by the backend
	Encode(v any) ([]byte, error)

	// Decode fills dst, which must be a pointer, from a stored payload
	Decode(data []byte, dst any) error

	// Options returns the options the frontend was built from
	Options() Options
}

type baseFrontend struct {
	opts     Options
	lifetime time.Duration
}

func newBaseFrontend(opts Options) baseFrontend {
	if opts == nil {
		opts = Options{}
	}
	return baseFrontend{opts: opts, lifetime: opts.DurationOr("lifetime", DefaultLifetime)}
}

func (f baseFrontend) Lifetime() time.Duration { return f.lifetime }
func (f baseFrontend) Options() Options        { return f.opts }

// DataFrontend stores Go values with encoding/gob.
type DataFrontend struct{ baseFrontend }

// NewDataFrontend creates a gob frontend.
func NewDataFrontend(opts Options) (Frontend, error) {
	return &DataFrontend{newBaseFrontend(opts)}, nil
}

func (f *DataFrontend) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return buf.Bytes(), nil
}

func (f *DataFrontend) Decode(data []byte, dst any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

// JSONFrontend stores values as JSON.
type JSONFrontend struct{ baseFrontend }

// NewJSONFrontend creates a JSON frontend.
func NewJSONFrontend(opts Options) (Frontend, error) {
	return &JSONFrontend{newBaseFrontend(opts)}, nil
}

func (f *JSONFrontend) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return data, nil
}

func (f *JSONFrontend) Decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

// MsgpackFrontend stores values as MessagePack.
type MsgpackFrontend struct{ baseFrontend }

// NewMsgpackFrontend creates a MessagePack frontend.
func NewMsgpackFrontend(opts Options) (Frontend, error) {
	return &MsgpackFrontend{newBaseFrontend(opts)}, nil
}

func (f *MsgpackFrontend) Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return data, nil
}

func (f *MsgpackFrontend) Decode(data []byte, dst any) error {
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

// OutputFrontend stores rendered output (strings or bytes) verbatim.
// It is also registered as "none".
type OutputFrontend struct{ baseFrontend }

// NewOutputFrontend creates a raw frontend.
func NewOutputFrontend(opts Options) (Frontend, error) {
	return &OutputFrontend{newBaseFrontend(opts)}, nil
}

func (f *OutputFrontend) Encode(v any) ([]byte, error) {
	return rawBytes(v)
}

func (f *OutputFrontend) Decode(data []byte, dst any) error {
	return assignRaw(data, dst)
}

// Base64Frontend stores raw output base64 encoded.
type Base64Frontend struct{ baseFrontend }

// NewBase64Frontend creates a base64 frontend.
func NewBase64Frontend(opts Options) (Frontend, error) {
	return &Base64Frontend{newBaseFrontend(opts)}, nil
}

func (f *Base64Frontend) Encode(v any) ([]byte, error) {
	raw, err := rawBytes(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

func (f *Base64Frontend) Decode(data []byte, dst any) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return assignRaw(raw[:n], dst)
}

func rawBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("%w: %T is not raw output", ErrInvalidValue, v)
	}
}

func assignRaw(data []byte, dst any) error {
	switch t := dst.(type) {
	case *string:
		*t = string(data)
	case *[]byte:
		*t = append((*t)[:0], data...)
	default:
		return fmt.Errorf("%w: cannot decode raw output into %T", ErrInvalidValue, dst)
	}
	return nil
}
