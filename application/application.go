package application

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lk2023060901/niml-dset-go/internal/config"
	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/dset"
	zlog "github.com/lk2023060901/niml-dset-go/pkg/log"
	"github.com/lk2023060901/niml-dset-go/pkg/metrics"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
	zviper "github.com/lk2023060901/niml-dset-go/pkg/util/viper"
)

const (
	// DefaultConfigPath 是未指定配置文件时尝试加载的路径，文件不存在时使用默认配置。
	DefaultConfigPath = "./nimldset.yaml"
	// ConfigPathEnv 指定配置文件路径的环境变量。
	ConfigPathEnv = "NIML_DSET_CONFIG"
)

// Application is the runtime container for niml-dset binaries.
// It owns configuration, logging and the dataset IO built from them.
type Application struct {
	raw      *zviper.Config
	cfg      *config.Config
	io       *dset.IO
	loggers  map[string]*zlog.MLogger
	props    []*zlog.ZapProperties
	registry prometheus.Registerer
}

// Option configures an Application.
type Option func(*Application)

// WithRegisterer 指定指标注册器，默认使用 prometheus.DefaultRegisterer。
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *Application) {
		a.registry = r
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init loads configuration and sets up logging, metrics and dataset IO.
//
// The configuration file is resolved with the following priority:
//  1. CLI: flagPath (from --config)
//  2. Env: NIML_DSET_CONFIG
//  3. Default: ./nimldset.yaml, silently skipped when absent
func (a *Application) Init(flagPath string) error {
	raw, err := a.loadConfig(flagPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(raw)
	if err != nil {
		return err
	}
	a.raw, a.cfg = raw, cfg

	if err := a.initLogging(); err != nil {
		return err
	}
	metrics.Register(a.registry)

	codec, err := niml.New(cfg.CodecOptions())
	if err != nil {
		return err
	}
	io, err := dset.NewIO(
		dset.WithCodec(codec),
		dset.WithForm(cfg.Form()),
		dset.WithWorkers(cfg.Workers),
		dset.WithAttempts(cfg.Attempts),
	)
	if err != nil {
		return err
	}
	io.BindComponent(a.Logger("dset"), "dset.io")
	a.io = io

	zlog.Debug("application initialized",
		zlog.FieldPath(raw.ConfigFile()),
		zlog.FieldForm(cfg.Codec.Form))
	return nil
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// IO returns the dataset IO configured by Init.
func (a *Application) IO() *dset.IO {
	return a.io
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// Close flushes buffered logs and stops asynchronous log writers.
func (a *Application) Close() error {
	err := zlog.Sync()
	for _, p := range a.props {
		p.Stop()
	}
	a.props = nil
	return err
}

// ResolveConfigPath returns the config file to load and whether it was
// requested explicitly.
func ResolveConfigPath(flagPath string) (string, bool) {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p, true
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p, true
	}
	return DefaultConfigPath, false
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig(flagPath string) (*zviper.Config, error) {
	path, explicit := ResolveConfigPath(flagPath)
	raw := zviper.New()
	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return raw, nil
		}
		return nil, merr.WrapErrIoFailed(path, err)
	}
	if err := raw.LoadFile(path); err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("bad config file %s: %s", path, err.Error())
	}
	return raw, nil
}

// initLogging initializes module-level and global loggers.
// 全局 logger 最后初始化，保证按级别缓存的 logger 来自全局配置。
func (a *Application) initLogging() error {
	if err := a.initModuleLoggersFromConfig(); err != nil {
		return err
	}
	logger, props, err := zlog.InitLogger(&a.cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	a.props = append(a.props, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from the "logging" section.
//
// Example:
//
//	logging:
//	  convert:
//	    level: debug
//	    stderr: true
//	    file:
//	      rootpath: ./logs
//	      filename: convert.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.raw.UnmarshalKey("logging", &raw); err != nil {
		return errors.Wrap(err, "unmarshal logging section")
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, props, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.props = append(a.props, props)
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}
