package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientSendBuffer = 32

// wsClient adapts one websocket connection to the session subscriber
// interface. Frames are queued and written by a dedicated pump goroutine so
// the tick goroutine never blocks on a slow connection.
type wsClient struct {
	playerID string
	conn     *websocket.Conn
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
	log      *zap.Logger

	writeTimeout time.Duration
}

func newWSClient(playerID string, conn *websocket.Conn, writeTimeout time.Duration, log *zap.Logger) *wsClient {
	return &wsClient{
		playerID:     playerID,
		conn:         conn,
		send:         make(chan []byte, clientSendBuffer),
		closed:       make(chan struct{}),
		log:          log,
		writeTimeout: writeTimeout,
	}
}

// SendState queues a frame for delivery. A client that cannot keep up loses
// intermediate frames; every frame is a full snapshot, so the next one that
// gets through resynchronizes it.
func (c *wsClient) SendState(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.closed:
	default:
		c.log.Debug("dropping frame for slow client", zap.String("player", c.playerID))
	}
}

// writePump drains the send queue onto the wire. Runs on its own goroutine;
// exits when the queue closes or a write fails.
func (c *wsClient) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", zap.String("player", c.playerID), zap.Error(err))
				c.close()
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}
