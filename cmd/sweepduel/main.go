package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"
	"golang.org/x/sync/errgroup"

	"github.com/dmkv/sweepduel/internal/duel"
	"github.com/dmkv/sweepduel/internal/pattern"
	patternpg "github.com/dmkv/sweepduel/internal/pattern/postgres"
	patternredis "github.com/dmkv/sweepduel/internal/pattern/redis"
	"github.com/dmkv/sweepduel/internal/risk"
	"github.com/dmkv/sweepduel/internal/solver"
	"github.com/dmkv/sweepduel/internal/strategy"
)

var (
	log = logrus.New()

	configPath string
	simGames   int
	simSeed    uint64
	config     = DefaultConfig()
)

func init() {
	const (
		defaultConfigPath = "/run/config.json"
		usage             = "config file path"
	)
	flag.StringVar(&configPath, "config", defaultConfigPath, usage)
	flag.StringVar(&configPath, "c", defaultConfigPath, usage+" (shorthand)")
	flag.IntVar(&simGames, "sim", 0, "run this many headless bot-vs-bot games and exit")
	flag.Uint64Var(&simSeed, "seed", 1, "PRNG seed for -sim")
}

func setupLogging() {
	logLevel := logrus.InfoLevel
	if config.Development() {
		logLevel = logrus.DebugLevel
	}
	log.SetLevel(logLevel)
	log.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	if config.Log.File != "" {
		hook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
			Filename:   config.Log.File,
			MaxSize:    config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
			MaxAge:     config.Log.MaxAgeDays,
			Level:      logLevel,
			Formatter:  &logrus.JSONFormatter{},
		})
		if err != nil {
			log.Fatal("unable to set up file logging: ", err)
		}
		log.AddHook(hook)
	}

	for _, l := range []*logrus.Logger{solver.Log, risk.Log, strategy.Log, duel.Log} {
		l.SetLevel(logLevel)
		l.SetFormatter(&logrus.TextFormatter{ForceColors: true})
	}
}

// setupStore picks the feedback store: postgres when configured, redis as
// the lighter alternative, otherwise learning stays process-local.
func setupStore(ctx context.Context) pattern.Store {
	if config.Postgres != nil {
		pg, err := patternpg.New(ctx, config.Postgres.Url)
		if err != nil {
			log.Fatal("unable to create connection pool: ", err)
		}
		if err := pg.Ping(ctx); err != nil {
			log.Fatal("unable to ping database: ", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("unable to ensure schema: ", err)
		}
		return pg
	}
	if config.Redis != nil {
		rs, err := patternredis.New(ctx, config.Redis.Url)
		if err != nil {
			log.Fatal("unable to connect to redis: ", err)
		}
		return rs
	}
	return nil
}

func main() {
	mainCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	flag.Parse()

	if err := ReadConfig(configPath, config); err != nil && !os.IsNotExist(err) {
		log.Fatalf("unable to read config %s: %s", configPath, err.Error())
	}

	setupLogging()

	log.Info("starting up, mode = ", config.Mode)
	log.WithFields(config.Fields()).Debug("config")

	store := setupStore(mainCtx)
	advisor := pattern.NewMemory()
	if store != nil {
		defer store.Close()
		if biases, err := store.LoadBiases(mainCtx); err != nil {
			log.Warn("unable to load pattern biases: ", err)
		} else {
			advisor.Merge(biases)
			log.Infof("loaded %d learned patterns", len(biases))
		}
	}

	if simGames > 0 {
		runSimulation(mainCtx, store, advisor, simGames, simSeed)
		return
	}

	server := &http.Server{
		Addr:    config.Addr,
		Handler: buildHandler(advisor, store),
		BaseContext: func(l net.Listener) context.Context {
			return mainCtx
		},
	}

	log.Infof("ready to serve @ %s", config.Addr)

	g, gCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		return server.ListenAndServe()
	})
	g.Go(func() error {
		<-gCtx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("exit reason: %s\n", err)
	}
}
