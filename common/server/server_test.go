package server

import (
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/gridlens/inspector/common/logger"
	"github.com/stretchr/testify/require"
)

func TestStartDrainsOnSignal(t *testing.T) {
	srv := New("test", 0, http.NewServeMux(), logger.New("error", "json"))

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// let Start register its signal handler before raising
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down on SIGTERM")
	}
}
