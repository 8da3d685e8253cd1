package domain

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionID は1接続の論理セッションを識別します。プレイヤーIDとしてもそのまま使われます。
type SessionID string

// NewSessionID はランダムな UUID からセッションIDを生成します。
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (id SessionID) String() string { return string(id) }
func (id SessionID) IsEmpty() bool  { return id == "" }

// CloseReason はセッションが閉じられた理由です。
type CloseReason uint32

const (
	CloseReasonNone CloseReason = iota
	CloseReasonNormal
	CloseReasonIdle
	CloseReasonShutdown
	CloseReasonTransport
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonNone:
		return "none"
	case CloseReasonNormal:
		return "normal"
	case CloseReasonIdle:
		return "idle"
	case CloseReasonShutdown:
		return "shutdown"
	case CloseReasonTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Session は1接続の論理的な接続状態を表す構造体です。
type Session struct {
	id SessionID

	// activity
	lastRead  atomic.Int64
	lastWrite atomic.Int64
	lastPong  atomic.Int64

	// lifecycle
	closed      atomic.Bool
	closeReason atomic.Uint32
}

func NewSession() *Session {
	s := &Session{
		id: NewSessionID(),
	}
	now := time.Now().UnixNano()
	s.lastRead.Store(now)
	s.lastWrite.Store(now)
	s.lastPong.Store(now)
	return s
}

func (s *Session) ID() SessionID {
	return s.id
}

func (s *Session) TouchRead() {
	s.lastRead.Store(time.Now().UnixNano())
}

func (s *Session) TouchWrite() {
	s.lastWrite.Store(time.Now().UnixNano())
}

func (s *Session) TouchPong() {
	s.lastPong.Store(time.Now().UnixNano())
}

// Close はセッションを閉じ済みにします。最初の呼び出しだけが true を返し理由を記録します。
func (s *Session) Close(reason CloseReason) bool {
	if s.closed.CompareAndSwap(false, true) {
		s.closeReason.Store(uint32(reason))
		return true
	}
	return false
}

func (s *Session) CloseReason() CloseReason {
	return CloseReason(s.closeReason.Load())
}

// IsIdle は受信もpongも timeout を超えて途絶えているかを判定します。
// 書き込みは tick ごとに必ず発生するため生存判定には使わず、理由のビットにだけ含めます。
func (s *Session) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if timeout <= 0 {
		return false, IdleDisabled
	}
	var reason IdleReason
	if s.IsReadIdle(timeout) {
		reason |= IdleRead
	}
	if s.IsWriteIdle(timeout) {
		reason |= IdleWrite
	}
	if s.IsPongIdle(timeout) {
		reason |= IdlePong
	}
	return reason.Closes(), reason
}

func (s *Session) IsReadIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastRead.Load()), timeout)
}

func (s *Session) IsWriteIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastWrite.Load()), timeout)
}

func (s *Session) IsPongIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastPong.Load()), timeout)
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func isIdleSince(last time.Time, timeout time.Duration) bool {
	return time.Since(last) > timeout
}

func unixNanoToTime(nano int64) time.Time {
	return time.Unix(0, nano)
}
