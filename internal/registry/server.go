package registry

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	semver "github.com/Masterminds/semver/v3"
)

// AuthModeEnv switches token protection from writes-only (default) to every
// endpoint when set to "readwrite".
const AuthModeEnv = "LINGUAL_REGISTRY_AUTH_MODE"

// NewHandler builds the registry API: POST /publish, GET /fetch?cid=, GET
// /find?name=&constraint=, GET /list?name=, GET /all, GET /healthz. A Bearer
// token from LINGUAL_REGISTRY_TOKEN protects writes; reads too in readwrite
// auth mode.
func NewHandler(reg Registry) http.Handler {
	mux := http.NewServeMux()

	token := strings.TrimSpace(os.Getenv(TokenEnv))
	protectReads := strings.EqualFold(strings.TrimSpace(os.Getenv(AuthModeEnv)), "readwrite")
	maxPublish := maxPublishBytes()

	authorized := func(r *http.Request) bool {
		if token == "" {
			return true
		}
		const prefix = "Bearer "
		ah := r.Header.Get("Authorization")

		return strings.HasPrefix(ah, prefix) && ah[len(prefix):] == token
	}

	readGuard := func(w http.ResponseWriter, r *http.Request) bool {
		if token != "" && protectReads && !authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return false
		}

		return true
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/publish", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPublish)

		var blob Blob
		if err := json.NewDecoder(r.Body).Decode(&blob); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		cid, err := reg.Publish(r.Context(), blob)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, r, struct {
			CID CID `json:"cid"`
		}{CID: cid})
	})

	mux.HandleFunc("/fetch", func(w http.ResponseWriter, r *http.Request) {
		if !readGuard(w, r) {
			return
		}

		blob, err := reg.Fetch(r.Context(), CID(r.URL.Query().Get("cid")))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		writeJSON(w, r, blob)
	})

	mux.HandleFunc("/find", func(w http.ResponseWriter, r *http.Request) {
		if !readGuard(w, r) {
			return
		}

		var con *semver.Constraints
		if expr := r.URL.Query().Get("constraint"); expr != "" {
			c, err := semver.NewConstraint(expr)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			con = c
		}

		cid, man, err := reg.Find(r.Context(), PackageID(r.URL.Query().Get("name")), con)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		writeJSON(w, r, findResult{CID: cid, Manifest: man})
	})

	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if !readGuard(w, r) {
			return
		}

		out, err := reg.List(r.Context(), PackageID(r.URL.Query().Get("name")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, r, out)
	})

	mux.HandleFunc("/all", func(w http.ResponseWriter, r *http.Request) {
		if !readGuard(w, r) {
			return
		}

		out, err := reg.All(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, r, out)
	})

	return withAccessLog(secureHeaders(mux))
}

// writeJSON marshals v with a content-derived weak ETag, answering 304 when
// the client's If-None-Match already holds it.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sum := sha256.Sum256(body)
	etag := fmt.Sprintf("W/%q", fmt.Sprintf("%x", sum[:8]))

	for _, t := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if strings.TrimSpace(t) == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	h := w.Header()
	h.Set("ETag", etag)
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "no-cache")
	}

	_, _ = w.Write(body)
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// withAccessLog logs requests when LINGUAL_REGISTRY_ACCESS_LOG is enabled.
func withAccessLog(next http.Handler) http.Handler {
	v := strings.TrimSpace(os.Getenv("LINGUAL_REGISTRY_ACCESS_LOG"))
	if v != "1" && !strings.EqualFold(v, "true") {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		log.Printf("%s %s -> %d %dB in %s from %s", r.Method, r.URL.RequestURI(), sw.status(), sw.n, time.Since(start), r.RemoteAddr)
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
	n    int
}

func (s *statusWriter) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.n += n

	return n, err
}

func (s *statusWriter) status() int {
	if s.code == 0 {
		return http.StatusOK
	}

	return s.code
}

// maxPublishBytes reads LINGUAL_REGISTRY_MAX_PUBLISH_BYTES, default 32MB.
func maxPublishBytes() int64 {
	const def = int64(32 << 20)

	v := strings.TrimSpace(os.Getenv("LINGUAL_REGISTRY_MAX_PUBLISH_BYTES"))
	if v == "" {
		return def
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}

	return n
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    16 << 10,
	}
}

// Serve blocks serving the registry API over HTTP.
func Serve(reg Registry, addr string) error {
	return newServer(addr, NewHandler(reg)).ListenAndServe()
}

// ServeTLS blocks serving the registry API over HTTPS.
func ServeTLS(reg Registry, addr, certFile, keyFile string) error {
	return newServer(addr, NewHandler(reg)).ListenAndServeTLS(certFile, keyFile)
}

// ServeGraceful serves until ctx is done, then shuts down cleanly.
func ServeGraceful(ctx context.Context, reg Registry, addr string) error {
	s := newServer(addr, NewHandler(reg))

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutCtx)

		return nil
	case err := <-errCh:
		return err
	}
}
