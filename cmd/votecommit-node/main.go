package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vocdoni/votecommit/commitment"
	"github.com/vocdoni/votecommit/config"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/db/metadb"
	"github.com/vocdoni/votecommit/db/prefixeddb"
	"github.com/vocdoni/votecommit/finalizer"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/ledger/memledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/service"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/voting"
	"github.com/vocdoni/votecommit/web3"
	"golang.org/x/sync/errgroup"
)

// Services holds all the running services
type Services struct {
	Storage    *storage.Storage
	Ledger     ledger.Ledger
	Caster     *voting.Caster
	Finalizer  *finalizer.Finalizer
	API        *service.APIService
	ElectionMo *service.ElectionMonitor
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting votecommit-node", "version", Version)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	if err := run(ctx, services, cfg); err != nil {
		log.Errorw(err, "node stopped with error")
		return
	}
	log.Infow("received signal, shutting down")
}

// setupServices opens the storage and builds the core components.
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", cfg.DB.Type)
	database, err := metadb.New(cfg.DB.Type, cfg.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(database)

	services.Ledger, err = setupLedger(ctx, cfg, database)
	if err != nil {
		services.Storage.Close()
		return nil, err
	}

	var secrets commitment.SecretStore = commitment.NewStaticSecret(cfg.Secret.Salt)
	if cfg.Secret.File != "" {
		secrets = commitment.NewFileSecret(cfg.Secret.File)
	}
	// fail at startup rather than on the first vote
	if _, err := secrets.Salt(); err != nil {
		services.Storage.Close()
		return nil, fmt.Errorf("failed to load secret salt: %w", err)
	}

	services.Caster = voting.New(services.Storage, secrets, services.Ledger)
	services.Finalizer = finalizer.New(services.Storage, services.Ledger)
	services.API = service.NewAPI(services.Storage, services.Caster, services.Finalizer, services.Ledger,
		cfg.API.Host, cfg.API.Port, false)
	if cfg.Monitor.Interval > 0 {
		services.ElectionMo = service.NewElectionMonitor(services.Storage, services.Finalizer, cfg.Monitor.Interval)
	}
	return services, nil
}

// setupLedger returns the configured ledger. The web3 ledger keeps its index
// of anchored transactions in a namespace of the node database.
func setupLedger(ctx context.Context, cfg *Config, database db.Database) (ledger.Ledger, error) {
	switch cfg.Ledger.Type {
	case config.LedgerMemory:
		log.Warnw("using the in-memory ledger, commitments are not anchored externally")
		return memledger.New(), nil
	case config.LedgerWeb3:
		cli, err := web3.Dial(ctx, cfg.Web3.RPC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web3 client: %w", err)
		}
		anchorCfg := web3.AnchorConfig{
			PrivateKey:    cfg.Web3.PrivKey,
			Timeout:       cfg.Web3.Timeout,
			MaxFeeCapGwei: cfg.Web3.MaxFeeCap,
		}
		if known, ok := config.DefaultLedgerConfig[cfg.Web3.Network]; ok {
			anchorCfg.ChainID = known.ChainID
			if anchorCfg.Timeout == 0 {
				anchorCfg.Timeout = known.Timeout
			}
		}
		index := prefixeddb.NewPrefixedDatabase(database, []byte(config.LedgerIndexPrefix))
		anchor, err := web3.NewAnchor(ctx, cli, index, anchorCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web3 anchor: %w", err)
		}
		return anchor, nil
	default:
		return nil, fmt.Errorf("unknown ledger type %q", cfg.Ledger.Type)
	}
}

// run starts the long running services and blocks until ctx is done or one
// of them fails to start.
func run(ctx context.Context, services *Services, cfg *Config) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
		if err := services.API.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API service: %w", err)
		}
		<-ctx.Done()
		return nil
	})
	if services.ElectionMo != nil {
		g.Go(func() error {
			if err := services.ElectionMo.Start(ctx); err != nil {
				return fmt.Errorf("failed to start election monitor: %w", err)
			}
			<-ctx.Done()
			return nil
		})
	}
	return g.Wait()
}

// shutdownServices stops the services in reverse order and closes the
// storage last.
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	if services.ElectionMo != nil {
		services.ElectionMo.Stop()
	}
	if services.API != nil {
		services.API.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
	log.Infow("all services stopped")
}
