// Package observer serves a read-only websocket feed of navigation stats to
// local dashboards.
package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/observerproto"
	"colonynav.ai/internal/sim/encoding"
)

// Source answers the HTTP endpoints. Implementations must be safe to call
// from handler goroutines.
type Source interface {
	Bootstrap() observerproto.BootstrapResponse
	// RegionCells returns the cost grid cells of a region, false if unknown.
	RegionCells(region geo.RegionID) ([]uint8, bool)
}

type Server struct {
	hub *Hub
	src Source
	log *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, src Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub: hub,
		src: src,
		log: logger.Named("observer"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // handlers reject non-loopback remotes
		},
	}
}

// Handler mounts the bootstrap and websocket endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/observer/v1/grid", s.GridHandler())
	mux.HandleFunc("/observer/v1/ws", s.WSHandler())
	return mux
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := s.src.Bootstrap()
		resp.ProtocolVersion = observerproto.Version
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) GridHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		region, err := geo.ParseRegion(r.URL.Query().Get("region"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		cells, ok := s.src.RegionCells(region)
		if !ok {
			http.Error(rw, "unknown region", http.StatusNotFound)
			return
		}
		resp := observerproto.GridResponse{
			ProtocolVersion: observerproto.Version,
			Region:          region.String(),
			Size:            geo.RegionSize,
			Encoding:        "RLE8_B64",
			Data:            encoding.EncodeRLE(cells),
		}
		for _, c := range cells {
			if c == costgrid.Impassable {
				resp.Impassable++
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		sub, ok := readSubscribe(conn)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := uuid.NewString()
		out := make(chan []byte, 64)
		select {
		case s.hub.join <- joinRequest{SessionID: sid, Out: out, Every: sub.Every, Agents: sub.Agents}:
		case <-s.hub.done:
			return
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		log := s.log.With(zap.String("session", sid))
		log.Info("observer connected", zap.String("remote", r.RemoteAddr))
		defer func() {
			select {
			case s.hub.leave <- sid:
			case <-s.hub.done:
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						// Hub stopped; unblock the reader.
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
						_ = conn.Close()
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			sub, ok := readSubscribe(conn)
			if sub == nil {
				break
			}
			if !ok {
				continue
			}
			select {
			case s.hub.sub <- subscribeRequest{SessionID: sid, Every: sub.Every, Agents: sub.Agents}:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case err := <-writeErr:
			if err != nil && err != context.Canceled {
				log.Debug("observer writer stopped", zap.Error(err))
			}
		case <-time.After(500 * time.Millisecond):
		}
		log.Info("observer disconnected")
	}
}

// readSubscribe returns nil on a read error; ok is false for messages that are
// not a valid SUBSCRIBE.
func readSubscribe(conn *websocket.Conn) (*observerproto.SubscribeMsg, bool) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return &sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return &sub, false
	}
	return &sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
