package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

func TestSocketRegistry_Register(t *testing.T) {
	sm := NewSocketRegistry()
	conn := &websocket.Conn{}
	userID := "user123"
	clientID := "tab-1"

	sm.Register(userID, clientID, conn)

	active := sm.get(userID, clientID)
	if active != conn {
		t.Errorf("Expected connection %v, got %v", conn, active)
	}
	if sm.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", sm.Count())
	}
}

func TestSocketRegistry_Unregister(t *testing.T) {
	sm := NewSocketRegistry()
	conn := &websocket.Conn{}
	userID := "user123"
	clientID := "tab-1"

	sm.Register(userID, clientID, conn)
	sm.Unregister(userID, clientID, conn)

	if active := sm.get(userID, clientID); active != nil {
		t.Errorf("Expected nil connection, got %v", active)
	}
	if sm.Count() != 0 {
		t.Errorf("Expected 0 connections, got %d", sm.Count())
	}
}

func TestSocketRegistry_UnregisterStale(t *testing.T) {
	sm := NewSocketRegistry()
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}
	userID := "user123"

	sm.Register(userID, "tab-1", conn1)

	// Another tab should remain active when stale unregister happens.
	sm.Register(userID, "tab-2", conn2)

	sm.Unregister(userID, "tab-1", conn1)

	if active := sm.get(userID, "tab-2"); active != conn2 {
		t.Errorf("Expected connection %v, got %v", conn2, active)
	}
}

func TestSocketRegistry_UnregisterIgnoresOtherConn(t *testing.T) {
	sm := NewSocketRegistry()
	conn := &websocket.Conn{}
	sm.Register("user123", "tab-1", conn)

	sm.Unregister("user123", "tab-1", &websocket.Conn{})

	if active := sm.get("user123", "tab-1"); active != conn {
		t.Errorf("Expected connection to survive unrelated unregister")
	}
}

func TestSocketRegistry_ConcurrentAccess(t *testing.T) {
	sm := NewSocketRegistry()
	userID := "concurrentUser"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.Register(userID, "tab-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.get(userID, "tab-"+strconv.Itoa(i))
			sm.Count()
		}
	}()
	wg.Wait()

	if sm.Count() != 1000 {
		t.Errorf("Expected 1000 connections, got %d", sm.Count())
	}
}

func TestSocketRegistry_ReplaceDoesNotWaitForUnresponsivePeer(t *testing.T) {
	sm := NewSocketRegistry()
	registered := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.CloseNow()
		sm.Register("user123", "tab-1", ws)
		registered <- struct{}{}
		_, _, _ = ws.Read(context.Background())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	waitRegistered := func() {
		select {
		case <-registered:
		case <-time.After(2 * time.Second):
			t.Fatal("connection was not registered in time")
		}
	}

	// The first client never reads, so it never answers the close handshake.
	stale, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer stale.CloseNow()
	waitRegistered()

	start := time.Now()
	fresh, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer fresh.CloseNow()
	waitRegistered()

	require.Equal(t, 1, sm.Count())
	require.Less(t, time.Since(start), 2*time.Second)
}
