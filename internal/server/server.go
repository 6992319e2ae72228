package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/akashic-games/akashic-cli-export-zip/internal/console"
	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
)

//go:embed index.html
var site embed.FS

// Server previews an exported game directory and tells connected browsers
// to reload after every export.
type Server struct {
	root    string
	port    int
	log     console.Logger
	senders map[int]chan interface{}
	nextID  int
	lock    sync.Mutex
}

func NewServer(root string, port int, log console.Logger) *Server {
	return &Server{
		root:    root,
		port:    port,
		log:     log,
		senders: map[int]chan interface{}{},
	}
}

type reloadEvent struct {
	Type string `json:"type"`
}

type buildErrorEvent struct {
	Type string `json:"type"`
	Err  string `json:"err"`
}

type pingEvent struct {
	Type string `json:"type"`
}

type assetInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Path        string `json:"path"`
	VirtualPath string `json:"virtualPath,omitempty"`
}

func (s *Server) Serve() error {
	go func() {
		for {
			s.broadcast(pingEvent{Type: "ping"})
			time.Sleep(10 * time.Second)
		}
	}()

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 200 * time.Millisecond,
		Addr:              fmt.Sprintf(":%d", s.port),
	}
	s.log.Info("Serving %s on http://localhost:%d", s.root, s.port)
	return srv.ListenAndServe()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/events", s.events)

	r.Get("/assets", func(w http.ResponseWriter, r *http.Request) {
		gc, err := s.manifest()
		if err != nil {
			s.fail(w, err)
			return
		}
		assets := []assetInfo{}
		for _, id := range gc.Assets.IDs() {
			a, _ := gc.Assets.Get(id)
			assets = append(assets, assetInfo{
				ID:          id,
				Type:        string(a.Type()),
				Path:        a.Path(),
				VirtualPath: a.VirtualPath(),
			})
		}
		w.Header().Add("Content-type", "application/json")
		w.Header().Add("Cache-control", "no-store")
		if err := json.NewEncoder(w).Encode(assets); err != nil {
			s.log.Error("write /assets: %s", err)
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		gc, err := s.manifest()
		if err != nil {
			s.fail(w, err)
			return
		}
		f, err := site.ReadFile("index.html")
		if err != nil {
			s.fail(w, err)
			return
		}
		t, err := template.New("index.html").Parse(string(f))
		if err != nil {
			s.fail(w, err)
			return
		}
		var data struct {
			Title  string
			Width  int
			Height int
			FPS    float64
			Main   string
			Assets []assetInfo
		}
		data.Title = filepath.Base(s.root)
		data.Width, data.Height, data.FPS, data.Main = gc.Width, gc.Height, gc.FPS, gc.Main
		for _, id := range gc.Assets.IDs() {
			a, _ := gc.Assets.Get(id)
			data.Assets = append(data.Assets, assetInfo{ID: id, Type: string(a.Type()), Path: a.Path(), VirtualPath: a.VirtualPath()})
		}
		w.Header().Add("Content-type", "text/html")
		w.Header().Add("Cache-control", "no-store")
		if err := t.Execute(w, data); err != nil {
			s.log.Error("render index: %s", err)
		}
	})

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + chi.URLParam(r, "*"))
		f, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(name))) // #nosec G304
		if err != nil {
			s.fail(w, err)
			return
		}
		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			w.Header().Add("Content-type", ct)
		}
		w.Header().Add("Cache-control", "no-store")
		if _, err := w.Write(f); err != nil {
			s.log.Error("write %s: %s", name, err)
		}
	})
	return r
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	c := make(chan interface{}, 10)
	s.lock.Lock()
	id := s.nextID
	s.nextID++
	s.senders[id] = c
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.senders, id)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	encoder := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-c:
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := encoder.Encode(ev); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Reload asks every connected page to reload.
func (s *Server) Reload() {
	s.broadcast(&reloadEvent{Type: "reload"})
}

// BuildError shows a failed export on every connected page.
func (s *Server) BuildError(err error) {
	s.broadcast(&buildErrorEvent{Type: "buildError", Err: err.Error()})
}

func (s *Server) broadcast(ev interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, sender := range s.senders {
		select {
		case sender <- ev:
		default:
			// slow client; it will catch up with the next event
		}
	}
}

func (s *Server) listeners() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.senders)
}

func (s *Server) manifest() (*manifest.GameConfiguration, error) {
	return manifest.Read(filepath.Join(s.root, manifest.FileName))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.log.Error("%s", strings.TrimSpace(err.Error()))
	w.WriteHeader(http.StatusInternalServerError)
}
