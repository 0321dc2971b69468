package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffibridge/errors"
)

// Config is the top-level bridge configuration.
type Config struct {
	Library  LibraryConfig  `yaml:"library"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
	Contract ContractConfig `yaml:"contract"`
}

// LibraryConfig locates the native library and declares how to load it.
type LibraryConfig struct {
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace" validate:"omitempty,symbol"`
	// Manifest is a WIT-style file declaring function signatures.
	Manifest         string `yaml:"manifest"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" validate:"lte=65536"`
	WASI             bool   `yaml:"wasi"`
}

// LoggerConfig selects the zap logger built by Build.
type LoggerConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
	Output string `yaml:"output" validate:"required"` // stderr, stdout or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=stdout noop"`
}

// ContractConfig is the contract the library must report. A zero Version
// skips the version check; checksums are keyed by function name.
type ContractConfig struct {
	Checksums map[string]uint16 `yaml:"checksums" validate:"omitempty,dive,keys,symbol,endkeys"`
	Version   uint32            `yaml:"version"`
}

var symbolPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validate is shared; validator caches struct metadata per instance.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolPattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Defaults returns a configuration with every optional field filled in.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads the YAML file at path over Defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config")
		}
	}

	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML text over Defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config")
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies FFIBRIDGE_* environment variables to cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FFIBRIDGE_LIBRARY_PATH"); v != "" {
		cfg.Library.Path = v
	}
	if v := os.Getenv("FFIBRIDGE_LIBRARY_NAMESPACE"); v != "" {
		cfg.Library.Namespace = v
	}
	if v := os.Getenv("FFIBRIDGE_LIBRARY_MANIFEST"); v != "" {
		cfg.Library.Manifest = v
	}
	if v := os.Getenv("FFIBRIDGE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("FFIBRIDGE_TRACER_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = on
		}
	}
	if v := os.Getenv("FFIBRIDGE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	fields, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "validate config")
	}
	msgs := make([]string, 0, len(fields))
	for _, fe := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
	}
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Value(len(fields)).
		Detail("invalid config: %s", strings.Join(msgs, "; ")).
		Build()
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	_, rest, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Namespace()
	}
	return rest
}

// Build creates the zap logger described by c.
func (c LoggerConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "logger level")
	}

	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = c.Format
	zc.OutputPaths = []string{c.Output}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
