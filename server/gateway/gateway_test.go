package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bj-trainer/server/trainer"
)

func setup(t *testing.T) (*Gateway, *trainer.Service, string, *httptest.Server) {
	t.Helper()
	svc := trainer.NewService(trainer.Rules{Decks: 6, ReshoeAt: 52, Seed: 4}, nil)
	v, err := svc.Create(context.Background())
	require.NoError(t, err)
	gw := New(svc)
	svc.OnChange(gw.Publish)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.HandleWebSocket(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	t.Cleanup(srv.Close)
	return gw, svc, v.ID, srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestDrillAndDeal(t *testing.T) {
	_, _, id, srv := setup(t)
	conn := dial(t, srv, id)

	m := read(t, conn)
	require.Equal(t, "view", m.Type)
	assert.Equal(t, trainer.Betting, m.View.Phase)

	require.NoError(t, conn.WriteJSON(Request{Cmd: "drill", Cards: []string{"7", "6", "9", "10"}}))
	m = read(t, conn)
	require.Equal(t, "view", m.Type)

	require.NoError(t, conn.WriteJSON(Request{Cmd: "deal"}))
	m = read(t, conn)
	require.Equal(t, "view", m.Type)
	assert.Equal(t, trainer.PlayerTurn, m.View.Phase)
	require.Len(t, m.View.Hands, 1)
	assert.Equal(t, 16, m.View.Hands[0].Value)
	assert.True(t, m.View.HoleHidden)
	assert.Len(t, m.View.Dealer, 1)
}

func TestErrors(t *testing.T) {
	_, _, id, srv := setup(t)
	conn := dial(t, srv, id)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(Request{Cmd: "hit"}))
	m := read(t, conn)
	assert.Equal(t, "error", m.Type)
	assert.Contains(t, m.Error, "phase")

	require.NoError(t, conn.WriteJSON(Request{Cmd: "fold"}))
	m = read(t, conn)
	assert.Equal(t, "error", m.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	m = read(t, conn)
	assert.Equal(t, "error", m.Type)

	require.NoError(t, conn.WriteJSON(Request{Cmd: "drill", Cards: []string{"Z"}}))
	m = read(t, conn)
	assert.Equal(t, "error", m.Type)
}

func TestUnknownSessionRejected(t *testing.T) {
	_, _, _, srv := setup(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishReachesAllWatchers(t *testing.T) {
	gw, svc, id, srv := setup(t)
	a := dial(t, srv, id)
	b := dial(t, srv, id)
	read(t, a)
	read(t, b)
	require.Eventually(t, func() bool { return gw.Watchers(id) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteJSON(Request{Cmd: "deal"}))
	ma, mb := read(t, a), read(t, b)
	assert.Equal(t, trainer.PlayerTurn, ma.View.Phase)
	assert.Equal(t, trainer.PlayerTurn, mb.View.Phase)

	// commands applied outside the socket are published too
	_, err := svc.Do(context.Background(), id, trainer.Stand)
	require.NoError(t, err)
	assert.Equal(t, trainer.Settled, read(t, a).View.Phase)
	assert.Equal(t, trainer.Settled, read(t, b).View.Phase)

	a.Close()
	require.Eventually(t, func() bool { return gw.Watchers(id) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestViewsArriveInApplyOrder(t *testing.T) {
	gw, svc, id, srv := setup(t)
	conn := dial(t, srv, id)
	read(t, conn)
	require.Eventually(t, func() bool { return gw.Watchers(id) == 1 }, 2*time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				for _, cmd := range []trainer.Command{trainer.Deal, trainer.Stand, trainer.NewHand} {
					_, _ = svc.Do(context.Background(), id, cmd)
				}
			}
		}()
	}
	wg.Wait()
	final, err := svc.View(id)
	require.NoError(t, err)

	progress := func(v *trainer.View) int { return v.Stats.Rounds + v.Stats.Decisions }
	prev := 0
	for {
		m := read(t, conn)
		require.Equal(t, "view", m.Type)
		require.GreaterOrEqual(t, progress(m.View), prev, "a stale view arrived after a newer one")
		prev = progress(m.View)
		if prev == progress(&final) && m.View.Phase == final.Phase && m.View.Round == final.Round {
			break
		}
	}
}
