// Package api exposes the reservation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pitstop/internal/booking"
	"pitstop/internal/cache"
	"pitstop/internal/database"
	"pitstop/internal/model"
	"pitstop/internal/report"
)

// HTTPServer serves the booking API.
type HTTPServer struct {
	addr   string
	apiKey string

	booking      *booking.Service
	availability booking.AvailabilityChecker
	store        *database.Store
	reports      *report.Exporter

	cache    cache.Cache
	cacheTTL time.Duration

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int

	log *zerolog.Logger
	now func() time.Time
}

// Options configures the HTTP server.
type Options struct {
	Addr   string
	APIKey string
	// Cache is optional; nil disables availability caching.
	Cache    cache.Cache
	CacheTTL time.Duration
	// RatePerSecond/RateBurst throttle each client key. Zero disables
	// throttling.
	RatePerSecond float64
	RateBurst     int
}

// NewHTTPServer wires the API over the booking service and its stores.
func NewHTTPServer(opts Options, svc *booking.Service, availability booking.AvailabilityChecker, store *database.Store, reports *report.Exporter, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		addr:         opts.Addr,
		apiKey:       opts.APIKey,
		booking:      svc,
		availability: availability,
		store:        store,
		reports:      reports,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		limiters:     make(map[string]*rate.Limiter),
		limit:        rate.Limit(opts.RatePerSecond),
		burst:        opts.RateBurst,
		log:          logger,
		now:          time.Now,
	}
}

// Handler builds the routing table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/garages", s.handleGarages)
	mux.HandleFunc("/api/garages/", s.handleGarageSubresource)
	mux.HandleFunc("/api/reservations", s.handleReservations)
	mux.HandleFunc("/api/reservations/", s.handleReservationSubresource)
	return s.withAuth(s.withRateLimit(mux))
}

// Run serves until ctx is cancelled.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.log.Info().Str("addr", s.addr).Msg("api server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limit > 0 && !s.clientLimiter(clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) clientLimiter(key string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = l
	}
	return l
}

// clientKey identifies one caller for throttling: the requester header when
// present, the remote address otherwise.
func clientKey(r *http.Request) string {
	if id := r.Header.Get("x-requester-id"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func cacheKeyFor(r *model.Reservation) string {
	return cache.SlotsKey(r.GarageID, r.Date)
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
