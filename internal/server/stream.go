package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"golang.org/x/time/rate"
)

// Frame types sent on a step stream.
const (
	FrameAttempt = "attempt" // a fresh attempt started
	FrameCells   = "cells"   // cells collapsed since the previous frame
	FrameResult  = "result"  // generation finished
	FrameError   = "error"   // generation failed or the request was rejected
)

// Frame is one message pushed to a stream client.
type Frame struct {
	Type    string            `json:"type"`
	Attempt int               `json:"attempt,omitempty"`
	Step    int               `json:"step,omitempty"`
	Cells   []CellUpdate      `json:"cells,omitempty"`
	Result  *GenerateResponse `json:"result,omitempty"`
	Error   *ErrorResponse    `json:"error,omitempty"`
}

// CellUpdate is a single collapse.
type CellUpdate struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Tile string `json:"tile"`
}

const streamWriteTimeout = 10 * time.Second

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.Server.IsOriginAllowed(origin, r.Host)
			if !allowed {
				s.logger.Warn("stream rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}
}

// handleStream upgrades to WebSocket, reads one GenerateRequest and streams the
// collapses of every attempt, batched so at most frames_per_second frames go out.
func (s *Server) handleStream(c *gin.Context) {
	clientIP := getRealIP(c.Request)

	if !s.connLimiter.TryAcquire(clientIP) {
		s.logger.Warn("stream rejected - limit exceeded", "client_ip", clientIP)
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many streams", Code: "STREAM_LIMIT"})
		return
	}
	defer s.connLimiter.Release(clientIP)

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.cfg.Server.MaxMessageSize)
	s.serveStream(c.Request.Context(), conn, clientIP)
}

func (s *Server) serveStream(ctx context.Context, conn *websocket.Conn, clientIP string) {
	logger := s.logger.With("handler", "stream", "client_ip", clientIP)

	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Debug("stream closed before request", "error", err)
		return
	}

	var req GenerateRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		s.writeStreamError(conn, &requestError{code: "INVALID_REQUEST", msg: "invalid request: " + err.Error()}, nil)
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		s.writeStreamError(conn, &requestError{code: "INVALID_REQUEST", msg: "invalid request: " + err.Error()}, nil)
		return
	}

	gen, err := s.prepare(&req)
	if err != nil {
		s.writeStreamError(conn, err, nil)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Any inbound message or close ends the stream
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	sw := &streamWriter{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.Server.FramesPerSecond), 1),
		attempt: -1,
	}

	g := wfc.NewGenerator(gen.model, gen.config)
	g.SetLogger(logger)
	g.SetObserver(func(attempt int, e wfc.Event) {
		if sw.err != nil {
			return
		}
		sw.observe(attempt, e)
		if sw.err != nil {
			cancel()
		}
	})

	result, genErr := g.Generate(ctx)
	if sw.err != nil {
		logger.Debug("stream write failed", "error", sw.err)
		return
	}
	sw.flush()

	var resp *GenerateResponse
	if result != nil {
		resp = toGenerateResponse(result)
	}
	if genErr != nil {
		s.writeStreamError(conn, genErr, resp)
		return
	}

	sw.write(Frame{Type: FrameResult, Result: resp})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(streamWriteTimeout))
}

func (s *Server) writeStreamError(conn *websocket.Conn, err error, resp *GenerateResponse) {
	_, code := classify(err)
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	conn.WriteJSON(Frame{Type: FrameError, Error: &ErrorResponse{Error: err.Error(), Code: code, Result: resp}})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, code),
		time.Now().Add(streamWriteTimeout))
}

// streamWriter batches collapses into frames. It is only used from the generator goroutine.
type streamWriter struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
	attempt int
	step    int
	pending []CellUpdate
	err     error
}

func (w *streamWriter) observe(attempt int, e wfc.Event) {
	if attempt != w.attempt {
		w.pending = w.pending[:0]
		w.attempt = attempt
		w.write(Frame{Type: FrameAttempt, Attempt: attempt + 1})
	}

	if e.Result == wfc.StepProgressed {
		w.step = e.Step
		w.pending = append(w.pending, CellUpdate{Row: e.Position.Row, Col: e.Position.Col, Tile: e.Tile.String()})
		if w.limiter.Allow() {
			w.flush()
		}
		return
	}

	// Terminal tick: push whatever the limiter held back
	w.flush()
}

func (w *streamWriter) flush() {
	if len(w.pending) == 0 {
		return
	}
	w.write(Frame{Type: FrameCells, Attempt: w.attempt + 1, Step: w.step, Cells: w.pending})
	w.pending = nil
}

func (w *streamWriter) write(f Frame) {
	if w.err != nil {
		return
	}
	w.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	w.err = w.conn.WriteJSON(f)
}
