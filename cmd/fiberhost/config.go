package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/fiberwasm/fiber/wasmhost"
)

// loadConfig merges the config file, FIBERHOST_* environment overrides and
// command line flags. Flags win, then the environment, then the file.
func loadConfig(opts *runOptions, args []string) (*wasmhost.Config, error) {
	v := viper.New()
	v.SetDefault("runtime.mode", string(wasmhost.RuntimeModeCompiler))

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("fiberhost")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("FIBERHOST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// The implicit search may come up empty; an explicit --config must
		// exist.
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg wasmhost.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.Path = args[0]
	}
	if opts.Runtime != "" {
		cfg.Runtime.Mode = wasmhost.RuntimeMode(opts.Runtime)
	}
	for _, p := range opts.Params {
		pc, err := parseParam(p)
		if err != nil {
			return nil, err
		}
		cfg.Params = append(cfg.Params, pc)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseParam(s string) (wasmhost.ParamConfig, error) {
	typ, value, ok := strings.Cut(s, ":")
	if !ok {
		return wasmhost.ParamConfig{}, fmt.Errorf("param %q: want type:value", s)
	}
	return wasmhost.ParamConfig{Type: typ, Value: value}, nil
}
