// Package streaming pushes job-progress updates to a single websocket
// client at a bounded publish rate. Adapted from server/fastview's generic
// client[T] (originally built to publish idempotent UI-element updates) to
// publish scheduler.Job progress snapshots instead; the ping/pong liveness
// check and serialized websock wrapper carry over unchanged, but the
// publish throttle and write deadline are retuned for job snapshots (see
// pubResolution, writeWait below) rather than UI diffs.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// writeWait is generous relative to the teacher's UI-update publisher:
	// a completed job's snapshot embeds its full Aggregate, including one
	// RunSummary per run, which can run well past the handful of bytes an
	// idempotent UI-element diff used to cost.
	writeWait = 2 * time.Second
	// pubResolution throttles snapshot pushes well below the 100ms tick
	// handleJobStream polls at; a benchmark of dozens of runs changes
	// progress far less often than a UI needs element diffs, so coalescing
	// here cuts redundant frames without losing any visible granularity.
	pubResolution  = time.Millisecond * 250
	pingResolution = time.Millisecond * 200
	pongWait       = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes successive values of T to one upgraded websocket
// connection, dropping intermediate updates received faster than
// pubResolution since only the latest job-progress snapshot matters to a
// viewer watching a progress bar, not every intermediate run completion.
type Client[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades r to a websocket and returns a Client that will
// publish values from updates onto it once Sync is called.
func NewClient[T any](updates <-chan T, w http.ResponseWriter, r *http.Request) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	return &Client[T]{updates: updates, ws: newWebsock(ws), rootCtx: r.Context()}, nil
}

// Sync runs the read, ping/pong liveness, and publish loops concurrently
// until the client disconnects or the request context ends. Returns nil on
// a clean disconnect, or the first error encountered.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error { return cli.readMessages(groupCtx) })
	group.Go(func() error { return cli.pingPong(groupCtx) })
	group.Go(func() error { return cli.publish(groupCtx) })

	return group.Wait()
}

// ErrPongDeadlineExceeded indicates the peer stopped responding to pings.
var ErrPongDeadlineExceeded = errors.New("streaming: client disconnect, pong deadline exceeded")

func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		pong <- struct{}{}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(ctx, func(ws *websocket.Conn) (err error) {
		if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			if isError(err) {
				err = fmt.Errorf("ping failed: %T %v", err, err)
			}
		}
		return
	})
}

// readMessages must run so the gorilla/websocket library dispatches pong
// control frames; any read error tears down the whole sync.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(ctx, func(ws *websocket.Conn) (readErr error) {
			_, _, readErr = ws.ReadMessage()
			return
		})
		if err != nil {
			return err
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	lastSync := time.Now()
	var pending T
	havePending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			final := !ok
			if final {
				if !havePending {
					return nil
				}
				update = pending
			} else if time.Since(lastSync) < pubResolution {
				pending, havePending = update, true
				break
			}
			havePending = false
			lastSync = time.Now()

			err := cli.ws.Write(ctx, func(ws *websocket.Conn) (writeErr error) {
				if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
					return fmt.Errorf("failed to set deadline: %w", writeErr)
				}
				if writeErr = ws.WriteJSON(update); writeErr != nil {
					if isError(writeErr) {
						writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
					}
				}
				return
			})
			if err != nil {
				return err
			}
			if final {
				return nil
			}
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

const (
	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = 10 * time.Second
)

// ErrSockCongestion indicates too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("streaming: sock op failed due to congestion")

// websock serializes reads and writes on a shared websocket connection,
// since gorilla/websocket permits only one concurrent reader and writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebsock(ws *websocket.Conn) *websock {
	return &websock{readSem: make(chan struct{}, 1), writeSem: make(chan struct{}, 1), ws: ws}
}

func (sock *websock) Conn() *websocket.Conn { return sock.ws }

func (sock *websock) Close() {
	sock.readSem <- struct{}{}
	sock.writeSem <- struct{}{}
	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

func (sock *websock) Read(ctx context.Context, readFn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

func (sock *websock) Write(ctx context.Context, writeFn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
