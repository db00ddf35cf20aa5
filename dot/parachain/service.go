// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachain

import (
	"errors"
	"fmt"
	"path/filepath"

	availabilitystore "github.com/ChainSafe/parachain-backing/dot/parachain/availability-store"
	"github.com/ChainSafe/parachain-backing/dot/parachain/backing"
	candidatevalidation "github.com/ChainSafe/parachain-backing/dot/parachain/candidate-validation"
	"github.com/ChainSafe/parachain-backing/dot/parachain/chainapi"
	"github.com/ChainSafe/parachain-backing/dot/parachain/config"
	"github.com/ChainSafe/parachain-backing/dot/parachain/overseer"
	"github.com/ChainSafe/parachain-backing/internal/database"
	"github.com/ChainSafe/parachain-backing/internal/database/badger"
	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/ChainSafe/parachain-backing/internal/metrics"
	"github.com/ChainSafe/parachain-backing/internal/pprof"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/keystore"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain"))

var errGenesisHashMismatch = errors.New("genesis hash mismatch")

const availabilityStoreDirectory = "availability-store"

// BlockState is the relay chain state the parachain subsystems run on.
type BlockState interface {
	overseer.BlockState
	chainapi.BlockState
	backing.BlockState
	candidatevalidation.BlockState
	GenesisHash() common.Hash
}

// Service runs the overseer along with the candidate backing subsystem and the subsystems it
// relies on.
type Service struct {
	overseer      *overseer.Overseer
	db            database.Database
	metricsServer *metrics.Server
	pprofService  *pprof.Service
}

// NewService creates the subsystems from the configuration and registers them with a new
// overseer. Candidates are executed with executors created by newExecutor.
func NewService(
	cfg config.Config,
	blockState BlockState,
	ks keystore.Keystore,
	newExecutor candidatevalidation.ExecutorFactory,
) (service *Service, err error) {
	logLevel, err := cfg.Log.LogLevel()
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	log.PatchLevel(logLevel)

	backingLogLevel, err := cfg.Log.BackingLogLevel()
	if err != nil {
		return nil, fmt.Errorf("parsing backing log level: %w", err)
	}

	if !cfg.Chain.GenesisHash.IsEmpty() && cfg.Chain.GenesisHash != blockState.GenesisHash() {
		return nil, fmt.Errorf("%w: configured %s, relay chain has %s",
			errGenesisHashMismatch, cfg.Chain.GenesisHash, blockState.GenesisHash())
	}

	inMemory := cfg.AvailabilityStore.InMemory
	db, err := badger.New(badger.Settings{
		Path:     filepath.Join(cfg.AvailabilityStore.BasePath, availabilityStoreDirectory),
		InMemory: &inMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("creating availability store database: %w", err)
	}
	defer func() {
		if err != nil {
			closeErr := db.Close()
			if closeErr != nil {
				logger.Errorf("closing availability store database: %s", closeErr)
			}
		}
	}()

	var backingMetrics backing.Metrics = backing.NoopMetrics{}
	if cfg.Metrics.Enabled {
		backingMetrics, err = backing.NewPrometheusMetrics()
		if err != nil {
			return nil, fmt.Errorf("creating backing metrics: %w", err)
		}
	}

	o := overseer.NewOverseer(blockState)

	chainAPI := chainapi.Register(o.SubsystemsToOverseer, blockState)
	o.RegisterSubsystem(chainAPI)

	availabilityStore := availabilitystore.CreateAndRegisterPruning(o.SubsystemsToOverseer, db,
		availabilitystore.PruningConfig{
			KeepUnavailableFor: cfg.AvailabilityStore.KeepUnavailableFor.Duration,
			PruningInterval:    cfg.AvailabilityStore.PruningInterval.Duration,
		})
	o.RegisterSubsystem(availabilityStore)

	candidateValidation := candidatevalidation.NewCandidateValidation(o.SubsystemsToOverseer, blockState, newExecutor)
	o.RegisterSubsystem(candidateValidation)

	candidateBacking, err := backing.New(o.SubsystemsToOverseer, blockState, ks, backing.Config{
		ValidationCodeCacheSize: cfg.Backing.ValidationCodeCacheSize,
		Metrics:                 backingMetrics,
		LogLevel:                backingLogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating candidate backing: %w", err)
	}
	o.RegisterSubsystem(candidateBacking)

	service = &Service{
		overseer: o,
		db:       db,
	}
	if cfg.Metrics.Enabled {
		service.metricsServer = metrics.NewServer(cfg.Metrics.Address)
	}
	if cfg.Pprof.Enabled {
		service.pprofService = pprof.NewService(pprof.Settings{
			ListeningAddress: cfg.Pprof.Address,
			BlockProfileRate: cfg.Pprof.BlockProfileRate,
			MutexProfileRate: cfg.Pprof.MutexProfileRate,
		}, logger)
	}
	return service, nil
}

// Start starts the overseer, which runs the subsystems, and the metrics and pprof servers
// when enabled.
func (s *Service) Start() error {
	if err := s.overseer.Start(); err != nil {
		return fmt.Errorf("starting overseer: %w", err)
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Start(); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
	}

	if s.pprofService != nil {
		if err := s.pprofService.Start(); err != nil {
			return fmt.Errorf("starting pprof service: %w", err)
		}
	}

	logger.Info("parachain subsystems started")
	return nil
}

// Stop stops the subsystems and closes the availability store database.
func (s *Service) Stop() error {
	var errs []error

	if s.pprofService != nil {
		if err := s.pprofService.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping pprof service: %w", err))
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping metrics server: %w", err))
		}
	}

	if err := s.overseer.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping overseer: %w", err))
	}

	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing availability store database: %w", err))
	}

	return errors.Join(errs...)
}
