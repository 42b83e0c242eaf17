package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/votecommit/api"
	"github.com/vocdoni/votecommit/finalizer"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/voting"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	API       *api.API
	storage   *storage.Storage
	caster    *voting.Caster
	finalizer *finalizer.Finalizer
	ledger    ledger.Ledger
	mu        sync.Mutex
	cancel    context.CancelFunc
	host      string
	port      int
}

// NewAPI creates a new APIService instance.
func NewAPI(stg *storage.Storage, caster *voting.Caster, fin *finalizer.Finalizer, l ledger.Ledger,
	host string, port int, disableLogging bool,
) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		storage:   stg,
		caster:    caster,
		finalizer: fin,
		ledger:    l,
		host:      host,
		port:      port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, as.cancel = context.WithCancel(ctx)

	var err error
	as.API, err = api.New(ctx, &api.APIConfig{
		Host:      as.host,
		Port:      as.port,
		Storage:   as.storage,
		Caster:    as.caster,
		Finalizer: as.finalizer,
		Ledger:    as.ledger,
	})
	if err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
