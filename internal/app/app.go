package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"blocknotes/internal/assistant"
	"blocknotes/internal/config"
	"blocknotes/internal/service"
	"blocknotes/internal/upload"
)

// App is the blocknotes HTTP application. It owns the store, the services
// built on it and the background jobs.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	stores   *Stores
	identity *Identity
	uploads  *upload.Store
	watcher  *config.Watcher

	reader    *service.ReconcileService
	sync      *service.SyncService
	tree      *service.TreeService
	importer  *service.ImportService
	pages     *service.PageService
	blocks    *service.BlockService
	assistant *service.AssistantService
	exporter  *service.ExportService
	maint     *service.MaintenanceService

	srv *http.Server
}

// New opens the configured store and wires every service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	stores, err := OpenStores(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	uploads, err := upload.NewStore(cfg.UploadDir(), "/files/")
	if err != nil {
		stores.Close(ctx)
		return nil, err
	}
	return newApp(cfg, log, stores, uploads), nil
}

func newApp(cfg *config.Config, log zerolog.Logger, stores *Stores, uploads *upload.Store) *App {
	a := &App{
		cfg:      cfg,
		log:      log,
		stores:   stores,
		identity: NewIdentity(cfg.Auth.Tokens),
		uploads:  uploads,
	}
	emitter := logEmitter{log: log}

	var helper assistant.Assistant
	if cfg.Assistant.APIKey != "" {
		helper = assistant.NewClient(assistant.Config{
			Endpoint: cfg.Assistant.Endpoint,
			APIKey:   cfg.Assistant.APIKey,
			Model:    cfg.Assistant.Model,
			Timeout:  cfg.Assistant.Timeout,
		})
	}

	a.reader = service.NewReconcileService(stores.Pages, stores.Blocks, emitter)
	a.sync = service.NewSyncService(stores.Pages, stores.Blocks, a.reader, emitter)
	a.tree = service.NewTreeService(stores.Pages, stores.Blocks, emitter)
	a.importer = service.NewImportService(stores.Pages, stores.Blocks, emitter)
	a.pages = service.NewPageService(stores.Pages, stores.Blocks, emitter)
	a.blocks = service.NewBlockService(stores.Pages, stores.Blocks, a.sync, uploads, emitter)
	a.assistant = service.NewAssistantService(helper, a.reader, a.pages, a.blocks, emitter)
	a.exporter = service.NewExportService(stores.Pages, a.reader)
	a.maint = service.NewMaintenanceService(stores.Blocks, uploads, emitter)

	a.srv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a
}

// Maintenance exposes the maintenance jobs for one-off CLI runs.
func (a *App) Maintenance() *service.MaintenanceService { return a.maint }

// Run schedules the maintenance jobs, watches the config file for token
// changes and serves HTTP until ctx is done. It then shuts down within the
// configured timeout and closes the store.
func (a *App) Run(ctx context.Context) error {
	if err := a.maint.Start(a.cfg.OrphanSweepSpec()); err != nil {
		a.stores.Close(context.WithoutCancel(ctx))
		return err
	}
	if path := a.cfg.Path(); path != "" {
		w, err := config.Watch(path, a.reload)
		if err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("config reload disabled")
		} else {
			a.watcher = w
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Server.Addr).Str("store", a.stores.Driver).Msg("serving")
		serveErr <- a.srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = fmt.Errorf("serve http: %w", err)
		}
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.Shutdown(shutdownCtx))
}

// reload swaps in the tokens of a changed config file. Other settings need
// a restart.
func (a *App) reload(cfg *config.Config, err error) {
	if err != nil {
		a.log.Warn().Err(err).Msg("config reload failed, keeping previous tokens")
		return
	}
	a.identity.SetTokens(cfg.Auth.Tokens)
	a.log.Info().Int("tokens", len(cfg.Auth.Tokens)).Msg("auth tokens reloaded")
}

// Shutdown stops accepting requests, waits for in-flight ones and running
// maintenance, then closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.maint.Stop(ctx)
	if err := a.stores.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
