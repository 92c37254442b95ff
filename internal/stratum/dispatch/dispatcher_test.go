package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/binary"
)

func TestDispatcher_RoutesRegisteredHandler(t *testing.T) {
	var got uint8
	d := New(func(frame binary.Frame) error {
		t.Fatalf("catch-all should not run for a registered msg_type")
		return nil
	})
	d.Register(binary.MsgTypeSetupConnection, func(frame binary.Frame) error {
		got = frame.MsgType
		return nil
	})

	err := d.Dispatch(binary.Frame{MsgType: binary.MsgTypeSetupConnection})
	require.NoError(t, err)
	require.Equal(t, binary.MsgTypeSetupConnection, got)
}

func TestDispatcher_FallsBackToCatchAll(t *testing.T) {
	var gotType uint8
	called := false
	d := New(func(frame binary.Frame) error {
		called = true
		gotType = frame.MsgType
		return nil
	})

	err := d.Dispatch(binary.Frame{MsgType: 200})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, uint8(200), gotType)
}

func TestDispatcher_PropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("boom")
	d := New(func(frame binary.Frame) error { return nil })
	d.Register(binary.MsgTypeCloseChannel, func(frame binary.Frame) error { return wantErr })

	err := d.Dispatch(binary.Frame{MsgType: binary.MsgTypeCloseChannel})
	require.ErrorIs(t, err, wantErr)
}

func TestDispatcher_DuplicateRegistrationPanics(t *testing.T) {
	d := New(func(frame binary.Frame) error { return nil })
	d.Register(binary.MsgTypeCloseChannel, func(frame binary.Frame) error { return nil })

	require.Panics(t, func() {
		d.Register(binary.MsgTypeCloseChannel, func(frame binary.Frame) error { return nil })
	})
}

func TestDispatcher_NilCatchAllPanics(t *testing.T) {
	require.Panics(t, func() { New(nil) })
}

func TestAsyncDispatcher_RoutesAndResolves(t *testing.T) {
	d := NewAsync(func(ctx context.Context, frame binary.Frame) <-chan error {
		ch := make(chan error, 1)
		ch <- errors.New("unexpected catch-all")
		return ch
	})
	d.Register(binary.MsgTypeSubmitSharesStandard, func(ctx context.Context, frame binary.Frame) <-chan error {
		ch := make(chan error, 1)
		ch <- nil
		return ch
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fut := d.Dispatch(ctx, binary.Frame{MsgType: binary.MsgTypeSubmitSharesStandard})
	select {
	case err := <-fut:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("future did not resolve")
	}
}
