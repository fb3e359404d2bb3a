// internal/supervisor/tree_test.go
package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeService struct {
	name   string
	starts atomic.Int32
	serve  func(ctx context.Context, start int32) error
}

func (s *fakeService) Serve(ctx context.Context) error {
	return s.serve(ctx, s.starts.Add(1))
}

func (s *fakeService) String() string { return s.name }

func blockUntilDone(ctx context.Context, _ int32) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeHTTPServer struct {
	started  chan struct{}
	stop     chan struct{}
	failWith error
	shutdown atomic.Bool
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.failWith != nil {
		return f.failWith
	}
	close(f.started)
	<-f.stop
	return nil
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func fastTree() *Tree {
	return NewTree(TreeConfig{
		FailureThreshold: 100,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
}

// ---- tests ----

func TestTree_CancelIsCleanShutdown(t *testing.T) {
	tree := fastTree()
	core := &fakeService{name: "core", serve: blockUntilDone}
	edge := &fakeService{name: "edge", serve: blockUntilDone}
	tree.AddCore(core)
	tree.AddEdge(edge)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	require.Eventually(t, func() bool {
		return core.starts.Load() == 1 && edge.starts.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
	assert.NoError(t, tree.Fatal())
}

func TestTree_CoreFailureStopsTree(t *testing.T) {
	tree := fastTree()
	boom := errors.New("bind lost")
	tree.AddCore(&fakeService{name: "broker", serve: func(context.Context, int32) error { return boom }})
	tree.AddEdge(&fakeService{name: "edge", serve: blockUntilDone})

	done := make(chan error, 1)
	go func() { done <- tree.Serve(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, boom))
		assert.Contains(t, err.Error(), "broker")
	case <-time.After(3 * time.Second):
		t.Fatal("core failure did not stop the tree")
	}
}

func TestTree_EdgeFailureIsRestarted(t *testing.T) {
	tree := fastTree()
	edge := &fakeService{name: "mirror", serve: func(ctx context.Context, start int32) error {
		if start < 3 {
			return errors.New("endpoint unreachable")
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	tree.AddCore(&fakeService{name: "core", serve: blockUntilDone})
	tree.AddEdge(edge)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	require.Eventually(t, func() bool { return edge.starts.Load() >= 3 }, 3*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, tree.Fatal())
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	srv := &fakeHTTPServer{started: make(chan struct{}), stop: make(chan struct{})}
	svc := NewHTTPService("metrics-http", srv, time.Second)
	assert.Equal(t, "metrics-http", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, srv.shutdown.Load())
}

func TestHTTPService_StartFailure(t *testing.T) {
	srv := &fakeHTTPServer{failWith: errors.New("address in use")}
	svc := NewHTTPService("metrics-http", srv, 0)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}
