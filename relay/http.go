package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/boardcast/analysis"
	"github.com/hazyhaar/boardcast/kit"
	"github.com/hazyhaar/boardcast/snapshot"
)

var (
	errEmpty      = errors.New("nothing published yet")
	errNoJournal  = errors.New("journal disabled")
	errNoAnalysis = errors.New("analysis disabled")
)

// Handler returns the relay routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(headAsGet, noStore, s.withRequestID)

	r.Get("/ws/producer", s.serveProducer)
	r.Get("/extension", s.serveProducer)
	r.Get("/ws", s.serveSubscriber)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if isUpgrade(r) {
			s.serveSubscriber(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "boardcast relay: producers on /ws/producer, renderers on /ws\n")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Stats())
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.getSnapshot)
		r.Post("/snapshot", s.postSnapshot)
		r.Get("/position", s.getPosition)
		r.Get("/eval", s.getEval)
		r.Get("/history", s.getHistory)
		r.Get("/games", s.getGames)
	})

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)
	return r
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// getSnapshot writes the current snapshot, or 204 before the first
// publication.
func (s *Server) getSnapshot(w http.ResponseWriter, _ *http.Request) {
	u, ok := s.hub.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := snapshot.Marshal(u.Snapshot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Snapshot-Seq", strconv.FormatUint(u.Seq, 10))
	w.Write(data)
}

// postSnapshot ingests one snapshot, so webhook producers can target the
// relay directly.
func (s *Server) postSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxMessage))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	seq, err := s.Ingest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uint64{"seq": seq})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ep.position(r.Context(), nil)
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getEval(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ep.eval(r.Context(), nil)
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ep.history(r.Context(), &historyRequest{Limit: queryInt(r, "limit", 0)})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getGames(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ep.history(r.Context(), &historyRequest{Limit: queryInt(r, "limit", 0), GamesOnly: true})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeEndpointError maps endpoint errors to status codes.
func writeEndpointError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errEmpty):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errNoJournal), errors.Is(err, errNoAnalysis):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, analysis.ErrBadPosition):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

// withRequestID tags HTTP calls so endpoint logs can be correlated.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = s.newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(kit.WithRequestID(r.Context(), id)))
	})
}
