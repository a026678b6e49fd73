package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownContentType = errors.New("unknown content type")
	ErrUnknownCodec       = errors.New("unknown codec")
)

// Codec turns the messages of an envelope into a transport body and back.
type Codec interface {
	ContentType() string
	Encode(msgs []any) ([]byte, error)
	Decode(body []byte) ([]any, error)
}

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/x-msgpack"
)

// JSON encodes messages as a JSON array.
type JSON struct{}

func (JSON) ContentType() string { return ContentTypeJSON }

func (JSON) Encode(msgs []any) ([]byte, error) {
	if msgs == nil {
		msgs = []any{}
	}
	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return body, nil
}

func (JSON) Decode(body []byte) ([]any, error) {
	var msgs []any
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return msgs, nil
}

// MsgPack encodes messages as a msgpack array.
type MsgPack struct{}

func (MsgPack) ContentType() string { return ContentTypeMsgPack }

func (MsgPack) Encode(msgs []any) ([]byte, error) {
	if msgs == nil {
		msgs = []any{}
	}
	body, err := msgpack.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode msgpack: %w", err)
	}
	return body, nil
}

func (MsgPack) Decode(body []byte) ([]any, error) {
	var msgs []any
	if err := msgpack.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("decode msgpack: %w", err)
	}
	return msgs, nil
}

// ByName returns the codec configured as "json" or "msgpack".
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return MsgPack{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ForContentType picks the codec for a delivery's content type. Parameters
// such as charset are ignored.
func ForContentType(contentType string) (Codec, error) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case ContentTypeJSON:
		return JSON{}, nil
	case ContentTypeMsgPack, "application/msgpack":
		return MsgPack{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, contentType)
	}
}
