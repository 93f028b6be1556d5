package cli

import (
	"io"
	"os"

	logger "github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/dshills/patchwaste/internal/analyze"
	"github.com/dshills/patchwaste/internal/config"
	"github.com/dshills/patchwaste/internal/findings"
)

// Settings is what the command line knows before configuration is loaded.
type Settings struct {
	ConfigPath string
	Overrides  map[string]string
	Debug      bool
	LogOutput  io.Writer
}

// App is the assembled pipeline for one invocation.
type App struct {
	Config   config.Config
	Log      logger.FieldLogger
	Analyzer *analyze.Analyzer
}

// NewApp is the container's root constructor.
func NewApp(cfg config.Config, log logger.FieldLogger, a *analyze.Analyzer) *App {
	return &App{Config: cfg, Log: log, Analyzer: a}
}

// RegisterProviders registers every constructor the commands need.
func RegisterProviders(container *dig.Container, s Settings) error {
	if err := container.Provide(func() Settings { return s }); err != nil {
		return err
	}
	if err := container.Provide(newConfig); err != nil {
		return err
	}
	if err := container.Provide(newLogger); err != nil {
		return err
	}
	if err := container.Provide(newEngine); err != nil {
		return err
	}
	if err := container.Provide(analyze.New); err != nil {
		return err
	}
	if err := container.Provide(NewApp); err != nil {
		return err
	}
	return nil
}

func injectApp(s Settings) (*App, error) {
	container := dig.New()
	if err := RegisterProviders(container, s); err != nil {
		return nil, err
	}

	var app *App
	if err := container.Invoke(func(a *App) {
		app = a
	}); err != nil {
		return nil, dig.RootCause(err)
	}
	return app, nil
}

func newConfig(s Settings) (config.Config, error) {
	return config.Load(s.ConfigPath, s.Overrides)
}

func newLogger(s Settings) logger.FieldLogger {
	l := logger.New()
	// Colors follow the output's terminal detection; NO_COLOR turns them off.
	l.SetFormatter(&logger.TextFormatter{
		DisableColors: os.Getenv("NO_COLOR") != "",
		FullTimestamp: true,
	})
	if s.LogOutput != nil {
		l.SetOutput(s.LogOutput)
	}
	if s.Debug {
		l.SetLevel(logger.DebugLevel)
	}
	return l
}

func newEngine(cfg config.Config) (*findings.Engine, error) {
	return findings.NewEngine(cfg.DisabledRules)
}
