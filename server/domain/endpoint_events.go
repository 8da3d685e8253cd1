package domain

import "fmt"

type endpointEventKind uint8

const (
	// unknown
	unknown endpointEventKind = iota

	// ctrl
	evClose // サーバー側からのセッション終了
)

type endpointEvent struct {
	kind   endpointEventKind
	reason CloseReason
}

// closeRequest は Close で要求された理由を Run まで運ぶエラーです。
type closeRequest struct {
	reason CloseReason
}

func (e closeRequest) Error() string {
	return fmt.Sprintf("%s: %s", ErrSessionClosed, e.reason)
}

func (e closeRequest) Unwrap() error { return ErrSessionClosed }
