package domain

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	calls atomic.Int32
	err   error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.calls.Add(1)
	return p.err
}

func TestHeartbeatService_TouchesPongOnSuccess(t *testing.T) {
	session := NewSession()
	old := time.Now().Add(-time.Minute).UnixNano()
	session.lastPong.Store(old)
	pinger := &fakePinger{}

	hb := NewHeartbeatService(10*time.Millisecond, session, pinger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hb.Run(ctx)

	assert.Eventually(t, func() bool {
		return session.lastPong.Load() > old
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatService_KeepsPongOnFailure(t *testing.T) {
	session := NewSession()
	old := time.Now().Add(-time.Minute).UnixNano()
	session.lastPong.Store(old)
	pinger := &fakePinger{err: errors.New("no pong")}

	hb := NewHeartbeatService(10*time.Millisecond, session, pinger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return pinger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	if session.lastPong.Load() != old {
		t.Errorf("lastPong should not change when ping fails")
	}
}

func TestHeartbeatService_StopsOnContextCancel(t *testing.T) {
	hb := NewHeartbeatService(50*time.Millisecond, NewSession(), &fakePinger{})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
		// 正常終了
	case <-time.After(1 * time.Second):
		t.Fatal("HeartbeatService did not stop after context cancel")
	}
}

func TestHeartbeatService_DisabledReturnsImmediately(t *testing.T) {
	pinger := &fakePinger{}
	hb := NewHeartbeatService(0, NewSession(), pinger)

	done := make(chan struct{})
	go func() {
		hb.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("HeartbeatService with zero interval should return")
	}
	if pinger.calls.Load() != 0 {
		t.Errorf("ping should not be sent")
	}
}
