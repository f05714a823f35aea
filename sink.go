package spectrum

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/flate"
)

// DisplaySink is what the Renderer stage draws each display frame
// into. A reference WebSocket implementation is provided to give the
// pipeline a runnable consumer; it is not a specification of the GPU
// renderer the rest of this design assumes.
type DisplaySink interface {
	InitializeGPU() error
	Draw(frame []float32) error
	ShouldClose() bool
	ShouldRecreate() bool
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one connected spectrum viewer: its own session id and
// its own flate writer, so one client's compression state never leaks
// into another's.
type wsClient struct {
	id       string
	conn     *websocket.Conn
	mu       sync.Mutex
	flateBuf bytes.Buffer
	flateW   *flate.Writer
}

func newWsClient(conn *websocket.Conn) *wsClient {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	return &wsClient{id: uuid.NewString(), conn: conn, flateBuf: buf, flateW: w}
}

// send compresses frame as a little-endian float32 payload and writes
// it as one binary WebSocket message.
func (c *wsClient) send(frame []float32) error {
	raw := make([]byte, len(frame)*4)
	for i, v := range frame {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(v))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.flateBuf.Reset()
	c.flateW.Reset(&c.flateBuf)
	if _, err := c.flateW.Write(raw); err != nil {
		return err
	}
	if err := c.flateW.Close(); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, c.flateBuf.Bytes())
}

// WebSocketSink broadcasts every drawn frame to all currently
// connected clients over /spectrum, compressing each frame with flate
// and tagging each connection with a UUID session id.
type WebSocketSink struct {
	listenAddr string

	mu       sync.Mutex
	clients  map[string]*wsClient
	closeReq chan struct{}
}

// NewWebSocketSink creates a sink that will listen on listenAddr once
// InitializeGPU is called.
func NewWebSocketSink(listenAddr string) *WebSocketSink {
	return &WebSocketSink{
		listenAddr: listenAddr,
		clients:    make(map[string]*wsClient),
		closeReq:   make(chan struct{}, 1),
	}
}

func (s *WebSocketSink) InitializeGPU() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/spectrum", s.handleConn)
	go func() {
		if err := http.ListenAndServe(s.listenAddr, mux); err != nil {
			Logger.Error("spectrum websocket sink stopped", "addr", s.listenAddr, "err", err)
		}
	}()
	return nil
}

func (s *WebSocketSink) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error("spectrum websocket sink: upgrade failed", "err", err)
		return
	}

	client := newWsClient(conn)
	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	Logger.Info("spectrum viewer connected", "session", client.id)

	// Drain the connection's read side so the peer's close frame is
	// observed and the client is reaped promptly.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, client.id)
	s.mu.Unlock()
	conn.Close()
}

// Draw pushes frame to every currently connected client. A client whose
// write fails is dropped; Draw always returns nil. A failure of the
// listener started by InitializeGPU is only logged.
func (s *WebSocketSink) Draw(frame []float32) error {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(frame); err != nil {
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
		}
	}
	return nil
}

// ShouldClose reports whether an explicit shutdown has been requested
// (e.g. via an OS signal observed by the caller).
func (s *WebSocketSink) ShouldClose() bool {
	select {
	case <-s.closeReq:
		return true
	default:
		return false
	}
}

// RequestClose signals ShouldClose to return true on its next call.
func (s *WebSocketSink) RequestClose() {
	select {
	case s.closeReq <- struct{}{}:
	default:
	}
}

// ShouldRecreate always reports false: there is no physical window to
// resize for a WebSocket sink.
func (s *WebSocketSink) ShouldRecreate() bool {
	return false
}

// RunRendererStage pulls display frames and draws each one until
// proceed clears or the sink asks to close.
func RunRendererStage(proceed *ProceedFlag, in *Queue[[]float32], sink DisplaySink, obs Observer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("renderer: recovered from panic", "panic", r)
			proceed.Stop()
		}
	}()

	ctx := context.Background()
	if err := sink.InitializeGPU(); err != nil {
		return err
	}

	for proceed.Get() {
		frame, ok := in.Get(ctx)
		if !ok || frame == nil {
			continue
		}
		obs.RecordCall(StageRenderer)
		if err := sink.Draw(*frame); err != nil {
			Logger.Error("renderer: draw failed", "err", err)
		}
		if sink.ShouldClose() {
			proceed.Stop()
		}
	}
	return nil
}
