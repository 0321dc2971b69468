package runtime

import (
	"context"
	"os"

	"github.com/wippyai/ffibridge/binding"
	"github.com/wippyai/ffibridge/config"
	"github.com/wippyai/ffibridge/engine"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/internal/telemetry"
)

// FromConfig loads the WebAssembly library described by cfg and returns a
// runtime that owns it. Logging and tracing are set up from cfg, the
// manifest is loaded when named and the contract is verified when one is
// configured. opts are applied after the configured ones.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Library.Path == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, "library.path is required")
	}

	wasm, err := os.ReadFile(cfg.Library.Path)
	if err != nil {
		return nil, errors.Load("read library", err)
	}

	var manifest *binding.Manifest
	if cfg.Library.Manifest != "" {
		if manifest, err = binding.LoadManifest(cfg.Library.Manifest); err != nil {
			return nil, err
		}
	}

	logger, err := cfg.Logger.Build()
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Tracer)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	lib, err := engine.Load(ctx, wasm,
		engine.WithNamespace(cfg.Library.Namespace),
		engine.WithMemoryLimitPages(cfg.Library.MemoryLimitPages),
		engine.WithWASI(cfg.Library.WASI),
		engine.WithLogger(logger.Named("engine")),
	)
	if err != nil {
		_ = shutdown(ctx)
		_ = logger.Sync()
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithNamespace(cfg.Library.Namespace),
		WithManifest(manifest),
		withCloser(func(context.Context) error {
			_ = logger.Sync()
			return nil
		}),
		withCloser(shutdown),
		withCloser(lib.Close),
	}
	r, err := New(lib, append(base, opts...)...)
	if err != nil {
		_ = lib.Close(ctx)
		_ = shutdown(ctx)
		return nil, err
	}

	if err := r.CheckContract(ctx, cfg.Contract.Version, cfg.Contract.Checksums); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return r, nil
}
