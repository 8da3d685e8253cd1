package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// サブプロトコル名。WebSocket のハンドシェイクでコーデックを選択する。
const (
	SubprotocolJSON    = "dogfight.json"
	SubprotocolMsgpack = "dogfight.msgpack"
)

// Codec はエンベロープ {type, payload} とバイト列の相互変換を担います。
type Codec interface {
	// Name はコーデックに対応するサブプロトコル名です。
	Name() string
	// Binary はバイナリフレームで送るべきかを返します。
	Binary() bool
	Marshal(t EventType, payload any) ([]byte, error)
	Unmarshal(data []byte) (Frame, error)
}

// Frame はデコード済みエンベロープです。payload は型が決まるまで生のまま保持します。
type Frame struct {
	Type EventType

	raw       []byte
	empty     bool // payload が null
	unmarshal func([]byte, any) error
}

// HasPayload は payload が存在し null でないかを返します。
func (f Frame) HasPayload() bool {
	return len(f.raw) > 0 && !f.empty && f.unmarshal != nil
}

// DecodePayload は Frame の payload を T にデコードします。
func DecodePayload[T any](f Frame) (T, error) {
	var out T
	if !f.HasPayload() {
		return out, fmt.Errorf("%w: empty payload for type %q", ErrInvalidPayload, f.Type)
	}
	if err := f.unmarshal(f.raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}

// EncodeEvent は Event を codec でエンコードします。
func EncodeEvent(c Codec, ev Event) ([]byte, error) {
	return c.Marshal(ev.Type, ev.Payload)
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols はサーバーが受け付けるサブプロトコルを優先順に返します。
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgpack}
}

// CodecFor はネゴシエートされたサブプロトコルに対応するコーデックを返します。
// 空または未知の場合は JSON です。
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

type jsonCodec struct{}

type jsonOutbound struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type jsonInbound struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var jsonNull = []byte("null")

func (jsonCodec) Name() string { return SubprotocolJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(t EventType, payload any) ([]byte, error) {
	if t == "" {
		return nil, ErrMissingType
	}
	return json.Marshal(jsonOutbound{Type: t, Payload: payload})
}

func (jsonCodec) Unmarshal(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	var in jsonInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Frame{
		Type:      in.Type,
		raw:       in.Payload,
		empty:     bytes.Equal(in.Payload, jsonNull),
		unmarshal: json.Unmarshal,
	}, nil
}

type msgpackCodec struct{}

type msgpackOutbound struct {
	Type    EventType `msgpack:"type"`
	Payload any       `msgpack:"payload"`
}

type msgpackInbound struct {
	Type    EventType          `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// msgpack の nil は 0xc0 の1バイト
var msgpackNil = []byte{0xc0}

func (msgpackCodec) Name() string { return SubprotocolMsgpack }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Marshal(t EventType, payload any) ([]byte, error) {
	if t == "" {
		return nil, ErrMissingType
	}
	return msgpack.Marshal(&msgpackOutbound{Type: t, Payload: payload})
}

func (msgpackCodec) Unmarshal(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	var in msgpackInbound
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Frame{
		Type:      in.Type,
		raw:       in.Payload,
		empty:     bytes.Equal(in.Payload, msgpackNil),
		unmarshal: msgpack.Unmarshal,
	}, nil
}
