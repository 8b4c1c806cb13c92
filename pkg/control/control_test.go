package control

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

	"github.com/sudorandom/globe-paths/pkg/globe"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

type fakeTarget struct {
	mu     sync.Mutex
	params globe.Params
	status string
	calls  []string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{params: globe.DefaultParams(), status: globe.StatusLive}
}

func (f *fakeTarget) UpdateGlobeDots(density float64, rows int, radius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, TypeUpdateGlobeDots)
	if density != 0 {
		f.params.DotDensity = density
	}
	if rows != 0 {
		f.params.Rows = rows
	}
	if radius != 0 {
		f.params.GlobeRadius = radius
	}
	return f.params.Validate()
}

func (f *fakeTarget) UpdateMaxPaths(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, TypeUpdateMaxPaths)
	p := f.params
	p.MaxPaths = n
	if err := p.Validate(); err != nil {
		return err
	}
	f.params = p
	return nil
}

func (f *fakeTarget) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, TypePause)
	f.status = globe.StatusPaused
	return nil
}

func (f *fakeTarget) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, TypePlay)
	f.status = globe.StatusLive
	return nil
}

func (f *fakeTarget) Snapshot() globe.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return globe.Snapshot{Status: f.status, Params: f.params, Paths: []string{}}
}

func ptr[T any](v T) *T { return &v }

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		check   func(t *testing.T, f *fakeTarget)
		wantErr error
	}{
		{
			name: "dots partial",
			msg:  Message{Type: TypeUpdateGlobeDots, DotDensity: ptr(20.0)},
			check: func(t *testing.T, f *fakeTarget) {
				assert.Equal(t, 20.0, f.params.DotDensity)
				assert.Equal(t, 200, f.params.Rows)
			},
		},
		{
			name: "dots all",
			msg:  Message{Type: TypeUpdateGlobeDots, DotDensity: ptr(5.0), Rows: ptr(30), GlobeRadius: ptr(2.0)},
			check: func(t *testing.T, f *fakeTarget) {
				assert.Equal(t, globe.Params{DotDensity: 5, Rows: 30, GlobeRadius: 2, MaxPaths: 10}, f.params)
			},
		},
		{
			name: "max paths",
			msg:  Message{Type: TypeUpdateMaxPaths, MaxPaths: ptr(0)},
			check: func(t *testing.T, f *fakeTarget) {
				assert.Equal(t, 0, f.params.MaxPaths)
			},
		},
		{
			name:    "max paths missing",
			msg:     Message{Type: TypeUpdateMaxPaths},
			wantErr: globe.ErrInvalidParams,
		},
		{
			name:    "max paths negative",
			msg:     Message{Type: TypeUpdateMaxPaths, MaxPaths: ptr(-2)},
			wantErr: globe.ErrInvalidParams,
		},
		{
			name: "pause",
			msg:  Message{Type: TypePause},
			check: func(t *testing.T, f *fakeTarget) {
				assert.Equal(t, globe.StatusPaused, f.status)
			},
		},
		{
			name: "snapshot only",
			msg:  Message{Type: TypeSnapshot},
			check: func(t *testing.T, f *fakeTarget) {
				assert.Empty(t, f.calls)
			},
		},
		{
			name:    "unknown",
			msg:     Message{Type: "spin"},
			wantErr: ErrUnknownMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTarget()
			err := Apply(f, tt.msg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, f)
		})
	}
}

func TestListen(t *testing.T) {
	var upgrader websocket.Upgrader
	replies := make(chan Reply, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for _, msg := range []string{
			`{"type": "update_max_paths", "maxPaths": 4}`,
			`{"type": "pause"}`,
			`{"type": "bogus"}`,
		} {
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
			var reply Reply
			if err := c.ReadJSON(&reply); err != nil {
				return
			}
			replies <- reply
		}
		// Hold the connection until the client goes away.
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := loop.New(time.Now())
	target := newFakeTarget()
	go func() { _ = l.Run(ctx, 200) }()

	errc := make(chan error, 1)
	go func() { errc <- Listen(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), l, target) }()

	var got []Reply
	require.Eventually(t, func() bool {
		select {
		case r := <-replies:
			got = append(got, r)
		default:
		}
		return len(got) == 3
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 4, got[0].Snapshot.Params.MaxPaths)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, globe.StatusPaused, got[1].Snapshot.Status)
	assert.Contains(t, got[2].Error, "unknown message type")
	assert.Equal(t, TypeSnapshot, got[2].Type)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestListenGivesUpOnCancelWhileDialing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	l := loop.New(time.Now())
	err := Listen(ctx, "ws://127.0.0.1:1/unreachable", l, newFakeTarget())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
