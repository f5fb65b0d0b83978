package cli

import (
	"log/slog"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/config"
	"github.com/roach88/trophycase/internal/engine"
	"github.com/roach88/trophycase/internal/ledger"
	"github.com/roach88/trophycase/internal/notify"
)

// storeFlags are the per-command overrides for configured paths.
type storeFlags struct {
	Database string
	Rules    string
}

// loadConfig reads configuration and applies flag overrides.
func loadConfig(opts *RootOptions, f storeFlags) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if f.Database != "" {
		cfg.StateDBPath = f.Database
	}
	if f.Rules != "" {
		cfg.AchievementsPath = f.Rules
	}
	return cfg, nil
}

// services holds the components shared by run and evaluate.
type services struct {
	cfg    *config.Config
	store  *ledger.Store
	engine *engine.Engine
}

func (s *services) Close() error {
	return s.store.Close()
}

// wireOptions selects how a command sources activity and delivers awards.
type wireOptions struct {
	// history replaces the stats service with a recorded activity file.
	history string
	// offline suppresses Discord delivery.
	offline bool
}

// wire builds the engine and its collaborators from cfg. The returned
// services own the ledger and must be closed.
func wire(cfg *config.Config, logger *slog.Logger, w wireOptions) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	var source activity.Source
	if w.history != "" {
		h, err := activity.LoadHistory(w.history)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load history", err)
		}
		source = activity.NewStaticSource(h)
	} else {
		source = activity.NewClient(cfg.Stats.BaseURL,
			activity.WithFetchTimeout(cfg.FetchTimeout()),
			activity.WithRetries(cfg.Stats.FetchRetries),
			activity.WithCompletedEndpoint(cfg.Stats.CompletedEndpoint),
			activity.WithLogger(logger),
		)
	}
	builder := activity.NewBuilder(source,
		activity.WithWorkers(cfg.Engine.Workers),
		activity.WithSeriesRefresh(cfg.SeriesRefresh()),
		activity.WithBuilderLogger(logger),
	)

	st, err := ledger.Open(cfg.StateDBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}

	sinks := notify.Multi{notify.LogSink{Logger: logger}}
	if cfg.Discord.ProxyURL != "" && !w.offline {
		sinks = append(sinks, notify.NewDiscordSink(cfg.Discord.ProxyURL,
			notify.WithAliases(notify.ParseAliases(cfg.Discord.UserAliases)),
			notify.WithDateLocation(loc),
			notify.WithDiscordLogger(logger),
		))
	}

	eng := engine.New(engine.RuleFile(cfg.AchievementsPath), builder, st,
		engine.WithSink(sinks),
		engine.WithLocation(loc),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithInterval(cfg.PollInterval()),
		engine.WithLogger(logger),
	)
	return &services{cfg: cfg, store: st, engine: eng}, nil
}
