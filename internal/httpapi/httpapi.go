// Package httpapi exposes the Query Engine and Index Manager over plain
// net/http: GET /search, GET /health, GET /stats. Each handler is thin glue
// — parse query params, delegate to internal/query or internal/manager,
// marshal the result — matching SPEC_FULL.md §6.1's "maps it 1:1"
// description of the HTTP layer's relationship to the core.
//
// No third-party HTTP router is used: the pack carries no routing library,
// and net/http's method-prefixed ServeMux patterns ("GET /search") cover
// this surface's three fixed routes without one.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mmtftr/dictv/internal/analyzer"
	dictverrors "github.com/mmtftr/dictv/internal/errors"
	"github.com/mmtftr/dictv/internal/manager"
	"github.com/mmtftr/dictv/internal/query"
	"github.com/mmtftr/dictv/internal/telemetry"
	"github.com/mmtftr/dictv/pkg/version"
)

const (
	defaultMode        = query.ModeFuzzy
	defaultLanguage    = "de-en"
	defaultMaxDistance = 2
	defaultLimit       = 20

	cacheCapacity = 1000
)

// Server wires the Query Engine and Index Manager to an http.ServeMux.
type Server struct {
	mgr       *manager.Manager
	cache     *telemetry.ResultCache[query.Response]
	latencies *telemetry.Histogram
	log       *slog.Logger
}

// NewServer builds the handler set, with an in-process LRU query cache and
// a latency histogram backing the <10ms/<30ms budget reported by /stats.
func NewServer(mgr *manager.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	cache, err := telemetry.NewResultCache[query.Response](cacheCapacity)
	if err != nil {
		log.Warn("query result cache disabled", slog.String("error", err.Error()))
		cache = nil
	}
	if cache != nil && mgr != nil {
		// A reader swap (Rebuild in this process, or startWatch noticing one
		// from a separate 'dictv rebuild') supersedes every cached result:
		// purge rather than risk serving stale hits against the old index
		// generation.
		mgr.OnReaderSwap(cache.Purge)
	}
	return &Server{mgr: mgr, cache: cache, latencies: telemetry.NewHistogram(), log: log}
}

// Handler returns the configured *http.ServeMux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

type searchResponse struct {
	Results      []query.Result `json:"results"`
	QueryTimeMs  float64        `json:"query_time_ms"`
	TotalResults int            `json:"total_results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	reader, err := s.mgr.Reader()
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	key := cacheKeyFor(req)
	start := time.Now()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.log.Debug("search cache hit")
			writeJSON(w, http.StatusOK, searchResponse{
				Results:      cached.Results,
				QueryTimeMs:  float64(time.Since(start)) / float64(time.Millisecond),
				TotalResults: len(cached.Results),
			})
			return
		}
	}

	resp, err := query.Search(r.Context(), reader, req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	if s.cache != nil {
		s.cache.Put(key, resp)
	}
	s.latencies.Observe(time.Duration(resp.ElapsedMs * float64(time.Millisecond)))

	writeJSON(w, http.StatusOK, searchResponse{
		Results:      resp.Results,
		QueryTimeMs:  resp.ElapsedMs,
		TotalResults: len(resp.Results),
	})
}

// cacheKeyFor builds the cache key from the resolved request's analyzed
// query, so "Grüßen" and "grussen" share a cache entry the same way they
// share index terms.
func cacheKeyFor(req query.Request) telemetry.CacheKey {
	tokens := analyzer.Analyze(req.RawQuery)
	analyzed := ""
	for _, t := range tokens {
		analyzed += t
	}
	return telemetry.CacheKey{
		Mode:          string(req.Mode),
		Language:      req.Language,
		MaxDistance:   req.MaxDistance,
		Limit:         req.Limit,
		AnalyzedQuery: analyzed,
	}
}

func parseSearchRequest(r *http.Request) (query.Request, error) {
	q := r.URL.Query()

	rawQuery := q.Get("q")
	if rawQuery == "" {
		return query.Request{}, dictverrors.New(dictverrors.ErrCodeQueryEmpty, "q is required", nil)
	}

	mode := defaultMode
	if m := q.Get("mode"); m != "" {
		mode = query.Mode(m)
	}

	lang := defaultLanguage
	if l := q.Get("lang"); l != "" {
		lang = l
	}

	maxDistance := defaultMaxDistance
	if d := q.Get("max_distance"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil {
			return query.Request{}, dictverrors.New(dictverrors.ErrCodeInvalidDistance, "max_distance must be an integer", err)
		}
		maxDistance = v
	}

	limit := defaultLimit
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			return query.Request{}, dictverrors.New(dictverrors.ErrCodeInvalidLimit, "limit must be an integer", err)
		}
		limit = v
	}

	return query.Request{
		RawQuery:    rawQuery,
		Mode:        mode,
		Language:    lang,
		MaxDistance: maxDistance,
		Limit:       limit,
	}, nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

type statsResponse struct {
	TotalEntries   uint64 `json:"total_entries"`
	EnDeEntries    uint64 `json:"en_de_entries"`
	DeEnEntries    uint64 `json:"de_en_entries"`
	IndexSizeBytes int64  `json:"index_size_bytes"`

	// LatencyBuckets is additive: spec.md §6 doesn't name it, but
	// SPEC_FULL.md's latency expansion asks for /stats to expose the
	// histogram so the <10ms/<30ms query budgets are observable.
	LatencyBuckets map[telemetry.LatencyBucket]int64 `json:"latency_buckets,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.mgr.Stats(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	buckets, _ := s.latencies.Snapshot()

	resp := statsResponse{
		TotalEntries:   stats.DocCount,
		EnDeEntries:    stats.PerLanguage["en-de"],
		DeEnEntries:    stats.PerLanguage["de-en"],
		IndexSizeBytes: dirSize(stats.IndexPath),
		LatencyBuckets: buckets,
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps a DictvError's category to an HTTP status code per
// spec.md §7: Validation -> 4xx, IndexCorruption -> 5xx, everything else
// falls back to 500.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var de *dictverrors.DictvError
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch de.Category {
		case dictverrors.CategoryValidation:
			status = http.StatusBadRequest
		case dictverrors.CategoryIO:
			status = http.StatusInternalServerError
		}
		if de.Severity == dictverrors.SeverityFatal {
			log.Error("request failed", slog.String("code", de.Code), slog.String("error", de.Error()))
		}
		writeJSON(w, status, errorResponse{Error: de.Message, Code: de.Code})
		return
	}

	log.Error("unhandled request error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// dirSize sums the on-disk size of every regular file under path, used to
// report index_size_bytes. Walk errors are swallowed; a partial sum is
// still more useful than a hard failure on a stats endpoint.
func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// Shutdown is a convenience for graceful shutdown of an *http.Server built
// around Handler(), releasing the manager's resources afterward.
func (s *Server) Shutdown(ctx context.Context, srv *http.Server) error {
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return s.mgr.Close()
}
