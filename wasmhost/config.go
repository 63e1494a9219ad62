package wasmhost

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fiberwasm/fiber/fibervalue"
)

// RuntimeMode selects how the guest bytecode executes.
type RuntimeMode string

const (
	// RuntimeModeCompiler is wazero's ahead-of-time compiler (default).
	RuntimeModeCompiler RuntimeMode = "compiler"
	// RuntimeModeInterpreter avoids native codegen; slower but portable.
	RuntimeModeInterpreter RuntimeMode = "interpreter"
)

// RuntimeConfig is the configuration of the guest runtime.
type RuntimeConfig struct {
	Mode RuntimeMode `mapstructure:"mode"`
}

// ParamConfig is one typed parameter passed to the guest's run entry point.
// Workloads receive their inputs this way (chunk bounds, zoom factors and so
// on), so the guest binary itself stays parameter-free.
type ParamConfig struct {
	Type  string `mapstructure:"type"`
	Value any    `mapstructure:"value"`
}

// Config defines the configuration of one guest module.
type Config struct {
	// Path to the guest bytecode file.
	Path string `mapstructure:"path"`

	// Params are passed, in order, to the guest's run entry point.
	Params []ParamConfig `mapstructure:"params"`

	// Runtime is the configuration of the guest runtime.
	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// Validate validates the configuration.
func (cfg *Config) Validate() error {
	if cfg.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch cfg.Runtime.Mode {
	case "", RuntimeModeCompiler, RuntimeModeInterpreter:
	default:
		return fmt.Errorf("unknown runtime mode %q", cfg.Runtime.Mode)
	}
	if _, err := cfg.ParamValues(); err != nil {
		return err
	}
	return nil
}

// ParamValues converts the configured params into boundary values.
func (cfg *Config) ParamValues() ([]fibervalue.Value, error) {
	values := make([]fibervalue.Value, 0, len(cfg.Params))
	for i, p := range cfg.Params {
		v, err := p.toValue()
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (p ParamConfig) toValue() (fibervalue.Value, error) {
	switch p.Type {
	case "i32":
		n, err := paramInt(p.Value)
		if err != nil {
			return fibervalue.Value{}, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return fibervalue.Value{}, fmt.Errorf("value %d overflows i32", n)
		}
		return fibervalue.I32(int32(n)), nil
	case "i64":
		n, err := paramInt(p.Value)
		if err != nil {
			return fibervalue.Value{}, err
		}
		return fibervalue.I64(n), nil
	case "f32":
		f, err := paramFloat(p.Value)
		if err != nil {
			return fibervalue.Value{}, err
		}
		return fibervalue.F32(float32(f)), nil
	case "f64":
		f, err := paramFloat(p.Value)
		if err != nil {
			return fibervalue.Value{}, err
		}
		return fibervalue.F64(f), nil
	default:
		return fibervalue.Value{}, fmt.Errorf("unknown param type %q", p.Type)
	}
}

func paramInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows i64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("value %v (%T) is not an integer", v, v)
	}
}

func paramFloat(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	case int64:
		return float64(f), nil
	case string:
		return strconv.ParseFloat(f, 64)
	default:
		return 0, fmt.Errorf("value %v (%T) is not a float", v, v)
	}
}
