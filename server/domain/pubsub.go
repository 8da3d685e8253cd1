package domain

import (
	"context"
	"errors"
	"sync"

	"dogfight/server/protocol"
)

//go:generate go tool mockgen -destination=./mocks/pubsub_mock.go -package=mocks . PubSub

// Topic は購読単位の名前です。
type Topic string

// RoomTopic はルーム宛メッセージ（join/leave/command）のトピックです。
func RoomTopic(id RoomID) Topic {
	return Topic("room:" + string(id))
}

// SessionTopic はセッション宛イベントのトピックです。
func SessionTopic(id SessionID) Topic {
	return Topic("session:" + id.String())
}

type MessageKind uint8

const (
	MessageUnknown MessageKind = iota
	MessageJoin
	MessageLeave
	MessageCommand
	MessageEvent
)

func (k MessageKind) String() string {
	switch k {
	case MessageJoin:
		return "join"
	case MessageLeave:
		return "leave"
	case MessageCommand:
		return "command"
	case MessageEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Message はトピックを流れる1件のメッセージです。
// Command は MessageCommand、Event は MessageEvent のときだけ有効です。
type Message struct {
	Kind      MessageKind
	SessionID SessionID
	Command   protocol.Command
	Event     protocol.Event
}

var ErrSubscriberBusy = errors.New("pubsub: subscriber buffer is full")

type PubSub interface {
	Subscribe(topic Topic) <-chan Message
	Unsubscribe(topic Topic, ch <-chan Message)
	// Publish は満杯の購読者をスキップし ErrSubscriberBusy を返します。ブロックしません。
	Publish(ctx context.Context, topic Topic, msg Message) error
	// PublishWait は全購読者に届くか ctx が終わるまで待ちます。
	PublishWait(ctx context.Context, topic Topic, msg Message) error
	// Subscribers はトピックの現在の購読者数です。
	Subscribers(topic Topic) int
}

const DefaultSubscriberBuffer = 256

// SimplePubSub はプロセス内のチャネルで実装した PubSub です。
// 購読解除してもチャネルは close しません。送信側が解除と競合しても panic しないためです。
type SimplePubSub struct {
	mu         sync.RWMutex
	subs       map[Topic][]chan Message
	bufferSize int
}

func NewSimplePubSub(bufferSize int) *SimplePubSub {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &SimplePubSub{
		subs:       make(map[Topic][]chan Message),
		bufferSize: bufferSize,
	}
}

func (ps *SimplePubSub) Subscribe(topic Topic) <-chan Message {
	ch := make(chan Message, ps.bufferSize)
	ps.mu.Lock()
	ps.subs[topic] = append(ps.subs[topic], ch)
	ps.mu.Unlock()
	return ch
}

func (ps *SimplePubSub) Unsubscribe(topic Topic, ch <-chan Message) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	subs := ps.subs[topic]
	for i, c := range subs {
		if (<-chan Message)(c) == ch {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(ps.subs, topic)
		return
	}
	ps.subs[topic] = subs
}

func (ps *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) error {
	var busy bool
	for _, ch := range ps.subscribers(topic) {
		select {
		case ch <- msg:
		default:
			busy = true
		}
	}
	if busy {
		return ErrSubscriberBusy
	}
	return nil
}

func (ps *SimplePubSub) PublishWait(ctx context.Context, topic Topic, msg Message) error {
	for _, ch := range ps.subscribers(topic) {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribers はトピックの購読者数を返します。
func (ps *SimplePubSub) Subscribers(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[topic])
}

// subscribers はロック外で送信できるよう購読者のコピーを返します。
func (ps *SimplePubSub) subscribers(topic Topic) []chan Message {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	subs := ps.subs[topic]
	out := make([]chan Message, len(subs))
	copy(out, subs)
	return out
}
