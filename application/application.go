package application

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/awswire-go/internal/protocol"
	"github.com/lk2023060901/awswire-go/internal/sdk/client"
	zlog "github.com/lk2023060901/awswire-go/pkg/log"
	"github.com/lk2023060901/awswire-go/pkg/metrics"
	zviper "github.com/lk2023060901/awswire-go/pkg/util/viper"
)

const (
	envConfigFilePath = "AWSWIRE_CONFIG_FILE_PATH"
	defaultConfigPath = "./config.yaml"
)

// ClientSection 为配置文件中 "client" 节点的内容。
type ClientSection struct {
	ServiceID    string        `mapstructure:"serviceId"`
	Endpoint     string        `mapstructure:"endpoint"`
	Family       string        `mapstructure:"family"`
	JSONVersion  string        `mapstructure:"jsonVersion"`
	TargetPrefix string        `mapstructure:"targetPrefix"`
	SDKVersion   string        `mapstructure:"sdkVersion"`
	AppID        string        `mapstructure:"appId"`
	MaxAttempts  int           `mapstructure:"maxAttempts"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFrameSize uint32        `mapstructure:"maxFrameSize"`
	// Profile 为共享配置文件中使用的 profile，为空时取 AWS_PROFILE 或 default。
	Profile string `mapstructure:"profile"`
	// SharedConfigFile 为共享配置文件路径，为空时取 AWS_CONFIG_FILE 或 ~/.aws/config。
	SharedConfigFile string `mapstructure:"sharedConfigFile"`
}

// Application 为进程级运行时容器，负责加载配置、初始化日志并构造客户端配置。
type Application struct {
	args      []string
	lookupEnv func(string) (string, bool)

	cfg       *zviper.Config
	loggers   map[string]*zlog.MLogger
	clientCfg client.Config
}

// New creates a new Application instance.
func New() *Application {
	return &Application{args: os.Args[1:], lookupEnv: os.LookupEnv}
}

// Run is the entry of the application.
// It parses command-line arguments and loads configuration file
// using the following priority:
//  1. Default: ./config.yaml
//  2. Env: AWSWIRE_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}
	metrics.Register(metrics.GetRegisterer())
	return a.initClientConfig()
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// ClientConfig returns the client configuration resolved by Run.
func (a *Application) ClientConfig() client.Config {
	return a.clientCfg
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if a.loggers == nil {
		return &zlog.MLogger{Logger: zlog.L()}
	}
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

func (a *Application) getenv(key string) string {
	v, _ := a.lookupEnv(key)
	return strings.TrimSpace(v)
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := defaultConfigPath
	if envPath := a.getenv(envConfigFilePath); envPath != "" {
		configPath = envPath
	}

	args := a.args
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, errors.New("missing value after --config")
			}
			configPath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				configPath = val
			}
		}
	}

	cfg := zviper.New()
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", configPath)
	}
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv configures the process-wide logger based on AWSWIRE_LOG_* env vars.
//
//   - AWSWIRE_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - AWSWIRE_LOG_LEVEL: log level (default "info").
//   - AWSWIRE_LOG_STDOUT: whether to log to stdout (default false).
//   - AWSWIRE_LOG_FILE_DIR: log directory.
//   - AWSWIRE_LOG_FILE: log file name (empty means no file).
//   - AWSWIRE_LOG_FORMAT: log format ("text" or "json", default "text").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := a.getenvBool("AWSWIRE_LOG_ENABLE", false)

	cfg := &zlog.Config{
		Level:  a.getenvDefault("AWSWIRE_LOG_LEVEL", "info"),
		Format: a.getenvDefault("AWSWIRE_LOG_FORMAT", "text"),
		Stdout: a.getenvBool("AWSWIRE_LOG_STDOUT", false),
		File: zlog.FileLogConfig{
			RootPath: a.getenvDefault("AWSWIRE_LOG_FILE_DIR", ""),
			Filename: a.getenvDefault("AWSWIRE_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger from env")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from config under "logging" key.
//
// Example:
//
//	logging:
//	  client:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: client.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}
	return nil
}

// initClientConfig builds client.Config from the "client" key.
func (a *Application) initClientConfig() error {
	var section ClientSection
	if err := a.cfg.UnmarshalKey("client", &section); err != nil {
		return errors.Wrap(err, "decode client config")
	}
	family, err := protocol.ParseFamily(section.Family)
	if err != nil {
		return err
	}
	v1Disabled, err := a.resolveEC2MetadataV1Disabled(section)
	if err != nil {
		return err
	}

	a.clientCfg = client.Config{
		ServiceID:             section.ServiceID,
		Endpoint:              section.Endpoint,
		Family:                family,
		JSONVersion:           section.JSONVersion,
		TargetPrefix:          section.TargetPrefix,
		SDKVersion:            section.SDKVersion,
		AppID:                 section.AppID,
		MaxAttempts:           section.MaxAttempts,
		Timeout:               section.Timeout,
		MaxFrameSize:          section.MaxFrameSize,
		EC2MetadataV1Disabled: v1Disabled,
		Logger:                a.Logger("client"),
	}
	return nil
}

func (a *Application) getenvDefault(key, def string) string {
	if val := a.getenv(key); val != "" {
		return val
	}
	return def
}

func (a *Application) getenvBool(key string, def bool) bool {
	val := a.getenv(key)
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
