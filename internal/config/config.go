// Package config 定义 niml-dset 工具的配置结构与加载逻辑。
package config

import (
	"runtime"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/log"
	"github.com/lk2023060901/niml-dset-go/pkg/util/viper"
)

// EnvPrefix 是覆盖配置项的环境变量前缀，例如 NIML_DSET_CODEC_FORM。
const EnvPrefix = "NIML_DSET"

// CodecConfig 是编解码相关配置。
type CodecConfig struct {
	// Form 为 Save 未显式给出编码形式时使用的形式：binary、text 或 base64。
	Form string `mapstructure:"form" json:"form"`
	// Compress 为 true 时所有写出的文件都以 zstd 压缩。
	Compress bool `mapstructure:"compress" json:"compress"`
}

// Config 是完整的配置。
type Config struct {
	Log   log.Config  `mapstructure:"log" json:"log"`
	Codec CodecConfig `mapstructure:"codec" json:"codec"`
	// Workers 为批量读写的并发度，<= 0 时使用 CPU 核心数。
	Workers int `mapstructure:"workers" json:"workers"`
	// Attempts 为单个文件读写遇到 IO 错误时的最大尝试次数，默认 1。
	Attempts uint `mapstructure:"attempts" json:"attempts"`
}

// Default 返回默认配置。
func Default() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

// Load 从 v 中读取配置，并补全缺省值、校验取值。
// v 为 nil 时等价于 Default。
func Load(v *viper.Config) (*Config, error) {
	cfg := &Config{}
	if v != nil {
		v.SetDefault("codec.form", string(niml.DefaultForm))
		v.SetDefault("codec.compress", false)
		v.SetDefault("workers", 0)
		v.SetDefault("attempts", 1)
		v.SetDefault("log.level", "info")
		v.SetDefault("log.format", log.FormatConsole)
		v.BindEnv(EnvPrefix)
		if err := v.Unmarshal(cfg); err != nil {
			return nil, errors.Wrap(err, "unmarshal config")
		}
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = log.FormatConsole
	}
	if c.Codec.Form == "" {
		c.Codec.Form = string(niml.DefaultForm)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Attempts == 0 {
		c.Attempts = 1
	}
}

// Validate 校验配置取值。
func (c *Config) Validate() error {
	if _, err := niml.ParseForm(c.Codec.Form); err != nil {
		return errors.Wrap(err, "codec.form")
	}
	return nil
}

// Form 返回解析后的默认编码形式。
func (c *Config) Form() niml.Form {
	f, err := niml.ParseForm(c.Codec.Form)
	if err != nil {
		return niml.DefaultForm
	}
	return f
}

// CodecOptions 返回构造 niml.Codec 所需的参数。
func (c *Config) CodecOptions() niml.Options {
	return niml.Options{Compress: c.Codec.Compress}
}
