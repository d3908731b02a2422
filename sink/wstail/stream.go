package wstail

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/tnet"
)

// clients only answer pings and close the connection, anything bigger is a
// protocol violation
const maxClientMessage = 1024

// stream sends events to the client until either side closes the connection.
// A client that misses two pings in a row is disconnected.
func (b *Broadcaster) stream(ctx context.Context, ws *websocket.Conn, events <-chan []byte) error {
	ws.SetReadLimit(maxClientMessage)
	extendDeadline := func() error {
		return ws.SetReadDeadline(time.Now().Add(2 * b.config.PingInterval))
	}
	ws.SetPongHandler(func(string) error {
		return extendDeadline()
	})

	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("reader", parallel.Exit, func(ctx context.Context) error {
			if err := extendDeadline(); err != nil {
				return err
			}
			for {
				// control frames are handled inside NextReader, data frames are discarded
				if _, _, err := ws.NextReader(); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					var closeErr *websocket.CloseError
					if errors.As(err, &closeErr) || tnet.IsClosedConnectionError(err) {
						return nil
					}
					return err
				}
				if err := extendDeadline(); err != nil {
					return err
				}
			}
		})

		// gorilla/websocket does not allow concurrent data writes, so events
		// and pings share one goroutine
		spawn("writer", parallel.Exit, func(ctx context.Context) error {
			ticker := time.NewTicker(b.config.PingInterval)
			defer ticker.Stop()

			for {
				var err error
				select {
				case <-ctx.Done():
					return ctx.Err()
				case data := <-events:
					if err = ws.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout)); err == nil {
						err = ws.WriteMessage(websocket.TextMessage, data)
					}
				case <-ticker.C:
					err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.config.WriteTimeout))
				}
				if err != nil {
					return err
				}
			}
		})

		spawn("closer", parallel.Exit, func(ctx context.Context) error {
			<-ctx.Done()
			// best effort: the client may be gone already
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			if err := ws.Close(); err != nil && !tnet.IsClosedConnectionError(err) {
				return err
			}
			return ctx.Err()
		})

		return nil
	})
	return tnet.StripClosedConnectionError(err)
}
