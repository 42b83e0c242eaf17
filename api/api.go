// Package api is the HTTP surface of the node: election management, vote
// casting, closure, inclusion proofs and audits.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/votecommit/finalizer"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/merkle"
	stg "github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/voting"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
	treeCacheSize     = 64  // Trees of closed elections kept for proof requests
	shutdownTimeout   = 5 * time.Second
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	Storage   *stg.Storage
	Caster    *voting.Caster
	Finalizer *finalizer.Finalizer
	Ledger    ledger.Ledger // Optional: enables the ledger check of the audit endpoint
}

// API type represents the API HTTP server.
type API struct {
	router    *chi.Mux
	server    *http.Server
	storage   *stg.Storage
	caster    *voting.Caster
	finalizer *finalizer.Finalizer
	ledger    ledger.Ledger
	trees     *lru.Cache[string, *merkle.Tree]
	now       func() time.Time
}

// NewHandler builds the API router without starting any listener.
func NewHandler(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Caster == nil || conf.Finalizer == nil {
		return nil, fmt.Errorf("missing caster or finalizer")
	}
	trees, err := lru.New[string, *merkle.Tree](treeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create tree cache: %w", err)
	}
	a := &API{
		storage:   conf.Storage,
		caster:    conf.Caster,
		finalizer: conf.Finalizer,
		ledger:    conf.Ledger,
		trees:     trees,
		now:       time.Now,
	}
	a.initRouter()
	return a, nil
}

// New creates the API and starts serving it on the configured host and port
// until ctx is cancelled.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	a, err := NewHandler(conf)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(sctx); err != nil {
			log.Warnw("API server shutdown", "error", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// elections endpoints
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.newElection)
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
	a.router.Get(ElectionsEndpoint, a.listElections)
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
	a.router.Get(ElectionEndpoint, a.election)
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "DELETE")
	a.router.Delete(ElectionEndpoint, a.deleteElection)
	log.Infow("register handler", "endpoint", VoterEndpoint, "method", "GET")
	a.router.Get(VoterEndpoint, a.voterStatus)
	// votes endpoints
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
	// closure, results and audit endpoints
	log.Infow("register handler", "endpoint", CloseEndpoint, "method", "POST")
	a.router.Post(CloseEndpoint, a.closeElection)
	log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "GET")
	a.router.Get(ResultsEndpoint, a.results)
	log.Infow("register handler", "endpoint", ProofEndpoint, "method", "GET")
	a.router.Get(ProofEndpoint, a.proof)
	log.Infow("register handler", "endpoint", VerifyProofEndpoint, "method", "POST")
	a.router.Post(VerifyProofEndpoint, a.verifyProof)
	log.Infow("register handler", "endpoint", AuditEndpoint, "method", "GET")
	a.router.Get(AuditEndpoint, a.audit)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(DefaultLoggingConfig()))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
