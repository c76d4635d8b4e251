// Command dispatchd runs the dispatch workflow daemon: the graph
// executor behind the REST surface, with configurable storage and
// intent classification backends.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fleetops/dispatchflow/config"
	"github.com/fleetops/dispatchflow/dispatch"
	"github.com/fleetops/dispatchflow/dispatch/drivers"
	"github.com/fleetops/dispatchflow/dispatch/intent"
	"github.com/fleetops/dispatchflow/dispatch/notify"
	"github.com/fleetops/dispatchflow/flow"
	"github.com/fleetops/dispatchflow/flow/emit"
	"github.com/fleetops/dispatchflow/flow/store"
	"github.com/fleetops/dispatchflow/logger"
	"github.com/fleetops/dispatchflow/rest"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "memory", "checkpoint storage backend (memory|sqlite|mysql)")
	cmd.Flags().String("sqlite-path", "dispatchflow.db", "sqlite database file")
	cmd.Flags().String("mysql-dsn", "", "mysql dsn (parseTime=true recommended)")
	cmd.Flags().String("classifier", "heuristic", "intent classifier (heuristic|anthropic|openai|google)")
	cmd.Flags().String("classifier-model", "", "model name for llm classifiers")
	cmd.Flags().String("notify-url", "", "notification gateway endpoint; empty uses an in-process mock")
	cmd.Flags().String("notify-token", "", "bearer token for the notification gateway")
	cmd.Flags().String("log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().Bool("log-json", true, "log as json")
	cmd.Flags().Int("max-steps", flow.DefaultMaxSteps, "per-invocation node execution budget")
	cmd.Flags().Bool("emit-json", false, "write workflow events as jsonl")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	viper.SetEnvPrefix("DISPATCHFLOW")
	viper.AutomaticEnv()

	c.cfg = config.Config{
		HTTPPort:        viper.GetInt("http-port"),
		StorageType:     config.StorageType(viper.GetString("storage-impl")),
		SQLitePath:      viper.GetString("sqlite-path"),
		MySQLDSN:        viper.GetString("mysql-dsn"),
		ClassifierType:  config.ClassifierType(viper.GetString("classifier")),
		ClassifierModel: viper.GetString("classifier-model"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		NotifyURL:       viper.GetString("notify-url"),
		NotifyToken:     viper.GetString("notify-token"),
		LogLevel:        viper.GetString("log-level"),
		LogJSON:         viper.GetBool("log-json"),
		MaxSteps:        viper.GetInt("max-steps"),
		EmitJSON:        viper.GetBool("emit-json"),
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	if err := logger.Init(c.cfg.LogLevel, c.cfg.LogJSON); err != nil {
		return err
	}
	defer logger.Sync()

	checkpoints, repo, pinger, cleanup, err := c.buildStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	classifier, closeClassifier, err := c.buildClassifier(cmd.Context())
	if err != nil {
		return err
	}
	defer closeClassifier()

	var gateway notify.Gateway
	if c.cfg.NotifyURL != "" {
		gateway = notify.NewHTTPGateway(c.cfg.NotifyURL, c.cfg.NotifyToken, nil)
	} else {
		logger.Warn("no notify-url configured, using in-process mock gateway")
		gateway = notify.NewMockGateway()
	}

	graph, err := dispatch.BuildGraph(dispatch.Deps{
		Classifier: classifier,
		Drivers:    repo,
		Gateway:    gateway,
	})
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	registry := prometheus.NewRegistry()
	executor, err := flow.NewExecutor(graph, checkpoints,
		emit.NewLogEmitter(nil, c.cfg.EmitJSON),
		flow.Options{
			MaxSteps: c.cfg.MaxSteps,
			Metrics:  flow.NewMetrics(registry),
		})
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}
	logger.Info("dispatch graph ready",
		zap.String("version", graph.Version()),
		zap.Strings("nodes", graph.Nodes()))

	server := rest.NewServer(c.cfg.HTTPPort, executor, registry, pinger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errc:
		if err != nil {
			return err
		}
	}
	return server.Stop()
}

// buildStorage assembles the checkpoint store and the driver repository
// on the configured backend. The returned cleanup closes whatever was
// opened.
func (c *cli) buildStorage() (flow.CheckpointStore, drivers.Repository, rest.Pinger, func(), error) {
	noop := func() {}

	switch c.cfg.StorageType {
	case config.StorageMemory:
		return store.NewMemStore(), drivers.NewMemRepository(), nil, noop, nil

	case config.StorageSQLite:
		checkpoints, err := store.NewSQLiteStore(c.cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, noop, err
		}
		db, err := sql.Open("sqlite", c.cfg.SQLitePath)
		if err != nil {
			checkpoints.Close()
			return nil, nil, nil, noop, fmt.Errorf("open drivers db: %w", err)
		}
		repo := drivers.NewSQLRepository(db)
		if err := repo.Bootstrap(context.Background()); err != nil {
			checkpoints.Close()
			db.Close()
			return nil, nil, nil, noop, err
		}
		cleanup := func() {
			db.Close()
			checkpoints.Close()
		}
		return checkpoints, repo, checkpoints, cleanup, nil

	case config.StorageMySQL:
		checkpoints, err := store.NewMySQLStore(c.cfg.MySQLDSN)
		if err != nil {
			return nil, nil, nil, noop, err
		}
		db, err := sql.Open("mysql", c.cfg.MySQLDSN)
		if err != nil {
			checkpoints.Close()
			return nil, nil, nil, noop, fmt.Errorf("open drivers db: %w", err)
		}
		repo := drivers.NewSQLRepository(db)
		if err := repo.Bootstrap(context.Background()); err != nil {
			checkpoints.Close()
			db.Close()
			return nil, nil, nil, noop, err
		}
		cleanup := func() {
			db.Close()
			checkpoints.Close()
		}
		return checkpoints, repo, checkpoints, cleanup, nil
	}
	return nil, nil, nil, noop, fmt.Errorf("unknown storage type %q", c.cfg.StorageType)
}

// buildClassifier assembles the configured intent classifier. A nil
// classifier lets the router run on its built-in heuristic.
func (c *cli) buildClassifier(ctx context.Context) (intent.Classifier, func(), error) {
	noop := func() {}

	switch c.cfg.ClassifierType {
	case config.ClassifierHeuristic:
		return nil, noop, nil
	case config.ClassifierAnthropic:
		model := c.cfg.ClassifierModel
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		return intent.NewAnthropicClassifier(c.cfg.AnthropicAPIKey, model), noop, nil
	case config.ClassifierOpenAI:
		model := c.cfg.ClassifierModel
		if model == "" {
			model = "gpt-4o-mini"
		}
		cl, err := intent.NewOpenAIClassifier(c.cfg.OpenAIAPIKey, model)
		return cl, noop, err
	case config.ClassifierGoogle:
		cl, err := intent.NewGoogleClassifier(ctx, c.cfg.GoogleAPIKey, c.cfg.ClassifierModel)
		if err != nil {
			return nil, noop, err
		}
		return cl, func() { _ = cl.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown classifier type %q", c.cfg.ClassifierType)
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "dispatchd",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
