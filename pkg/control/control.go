// Package control receives globe parameter updates over a websocket and answers
// each one with a snapshot of the globe.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sudorandom/globe-paths/pkg/globe"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

// Message types.
const (
	TypeUpdateGlobeDots = "update_globe_dots"
	TypeUpdateMaxPaths  = "update_max_paths"
	TypePause           = "pause"
	TypePlay            = "play"
	TypeSnapshot        = "snapshot"
)

var ErrUnknownMessage = errors.New("unknown message type")

const maxBackoff = 60 * time.Second

// Message is a command from the control server. Unset fields keep their current value.
type Message struct {
	Type        string   `json:"type"`
	DotDensity  *float64 `json:"dotDensity,omitempty"`
	Rows        *int     `json:"rows,omitempty"`
	GlobeRadius *float64 `json:"globeRadius,omitempty"`
	MaxPaths    *int     `json:"maxPaths,omitempty"`
}

// Reply answers every message.
type Reply struct {
	Type     string         `json:"type"`
	Snapshot globe.Snapshot `json:"snapshot"`
	Error    string         `json:"error,omitempty"`
}

// Target is the part of *globe.Globe the control channel drives.
type Target interface {
	UpdateGlobeDots(dotDensity float64, rows int, globeRadius float64) error
	UpdateMaxPaths(n int) error
	Pause() error
	Play() error
	Snapshot() globe.Snapshot
}

// Apply runs msg against t. It must be called on the loop goroutine.
func Apply(t Target, msg Message) error {
	switch msg.Type {
	case TypeUpdateGlobeDots:
		var (
			density, radius float64
			rows            int
		)
		if msg.DotDensity != nil {
			density = *msg.DotDensity
		}
		if msg.Rows != nil {
			rows = *msg.Rows
		}
		if msg.GlobeRadius != nil {
			radius = *msg.GlobeRadius
		}
		return t.UpdateGlobeDots(density, rows, radius)
	case TypeUpdateMaxPaths:
		if msg.MaxPaths == nil {
			return fmt.Errorf("%w: maxPaths is required", globe.ErrInvalidParams)
		}
		return t.UpdateMaxPaths(*msg.MaxPaths)
	case TypePause:
		return t.Pause()
	case TypePlay:
		return t.Play()
	case TypeSnapshot:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
}

// Listen connects to url and applies incoming messages on l until ctx is done,
// reconnecting with exponential backoff.
func Listen(ctx context.Context, url string, l *loop.Loop, t Target) error {
	backoff := 1 * time.Second
	for {
		log.Printf("[CONTROL] Connecting to %s", url)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[CONTROL] Dial error: %v. Retrying in %v...", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = 1 * time.Second

		err = session(ctx, c, l, t)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[CONTROL] Connection lost: %v. Reconnecting...", err)
	}
}

func session(ctx context.Context, c *websocket.Conn, l *loop.Loop, t Target) error {
	replies := make(chan Reply, 16)
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		if err := c.Close(); err != nil {
			log.Printf("[CONTROL] Error closing connection: %v", err)
		}
	}()

	go func() {
		for {
			select {
			case r := <-replies:
				if err := c.WriteJSON(r); err != nil {
					log.Printf("[CONTROL] Write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var msg Message
		if err := c.ReadJSON(&msg); err != nil {
			return err
		}
		l.Post(func() {
			r := Reply{Type: TypeSnapshot}
			if err := Apply(t, msg); err != nil {
				log.Printf("[CONTROL] Rejected %s: %v", msg.Type, err)
				r.Error = err.Error()
			}
			r.Snapshot = t.Snapshot()
			select {
			case replies <- r:
			default:
				log.Printf("[CONTROL] Reply queue full, dropping %s reply", msg.Type)
			}
		})
	}
}
