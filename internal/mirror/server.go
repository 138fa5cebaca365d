// Package mirror streams rendered frames to browsers over websockets, for
// watching the virtual screen from another machine.
package mirror

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Local debugging tool; any origin may watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server accepts websocket viewers on /stream and broadcasts each presented
// frame to them as a binary JPEG message.
type Server struct {
	addr    string
	quality int

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	srv *http.Server
}

// NewServer creates a mirror listening on addr with the given JPEG quality
// (clamped to 1-100).
func NewServer(addr string, quality int) *Server {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &Server{
		addr:    addr,
		quality: quality,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mirror listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	s.srv = &http.Server{Handler: mux}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("mirror server: %v", err)
		}
	}()
	return nil
}

// PushFrame JPEG-encodes img and broadcasts it to every connected viewer.
// Encoding is skipped while nobody is watching.
func (s *Server) PushFrame(img *image.RGBA) {
	s.mu.Lock()
	if len(s.clients) == 0 {
		s.mu.Unlock()
		return
	}
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		log.Printf("mirror encode: %v", err)
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			s.drop(conn)
		}
	}
}

// Close disconnects all viewers and stops the listener.
func (s *Server) Close() {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	if s.srv != nil {
		s.srv.Close()
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mirror upgrade: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	log.Printf("mirror viewer connected (%d watching)", n)

	// Drain control frames; drop the viewer when it goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		s.drop(conn)
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	_, known := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if known {
		conn.Close()
		log.Printf("mirror viewer disconnected")
	}
}

const indexPage = `<!doctype html>
<title>vscreen mirror</title>
<body style="margin:0;background:#111">
<img id="screen" style="image-rendering:pixelated;width:100%">
<script>
const ws = new WebSocket("ws://" + location.host + "/stream");
ws.binaryType = "blob";
ws.onmessage = (e) => {
  const img = document.getElementById("screen");
  const url = URL.createObjectURL(e.data);
  img.onload = () => URL.revokeObjectURL(url);
  img.src = url;
};
</script>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}
