package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/vbonduro/containerlog/internal/config"
	"github.com/vbonduro/containerlog/internal/db"
	"github.com/vbonduro/containerlog/internal/docstore"
	"github.com/vbonduro/containerlog/internal/docstore/etcd"
	"github.com/vbonduro/containerlog/internal/docstore/sqlite"
	"github.com/vbonduro/containerlog/internal/service"
	"github.com/vbonduro/containerlog/internal/store"
)

// backend is the document store with the service built on it.
type backend struct {
	docs     docstore.Store
	database *sql.DB
	service  *service.ContainerService
	logger   *slog.Logger
}

func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{logger: logger}

	switch cfg.StoreBackend {
	case config.BackendEtcd:
		client, err := etcd.Dial(cfg.EtcdEndpoints, cfg.EtcdDialTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("using etcd document store", "endpoints", cfg.EtcdEndpoints, "prefix", cfg.EtcdPrefix)
		b.docs = etcd.New(client, cfg.EtcdPrefix, logger)
	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("using sqlite document store", "path", cfg.DBPath)
		b.database = database
		b.docs = sqlite.New(database, logger)
	}

	b.service = service.NewContainerService(
		store.NewContainerStore(b.docs, cfg.RecordsCollection),
		store.NewCrewStore(b.docs, cfg.CrewCollection),
		logger,
	)
	return b, nil
}

func (b *backend) close() {
	var result *multierror.Error
	if err := b.docs.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if b.database != nil {
		if err := b.database.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		b.logger.Error("failed to close document store", "error", err)
	}
}
