package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every env tag, e.g. FLASHCARD_TARGET_WORDS.
const EnvPrefix = "FLASHCARD_"

// DefaultFiles are looked up, in order, when no config file is given.
var DefaultFiles = []string{"flashcard_config.yaml", "flashcard_config.yml", "flashcard_config.json"}

// legacyKeys maps setting names used by older config files.
var legacyKeys = map[string]string{
	"target_words_per_chunk":        "target_words",
	"chunk_overlap_ratio":           "overlap_ratio",
	"default_questions_per_segment": "questions_per_segment",
	"ai_model_name":                 "model",
	"ocr_confidence_threshold":      "ocr_confidence",
	"ocr_default_languages":         "ocr_languages",
	"flashcards_storage":            "storage",
	"enable_caching":                "cache_completions",
}

// LoadOptions selects the sources layered over the defaults.
type LoadOptions struct {
	// File is an explicit config file; it must exist.
	File string
	// Dir is searched for DefaultFiles when File is empty. Empty means cwd.
	Dir string
	// Flags holds values set on the command line, keyed by config key.
	Flags map[string]any
}

// Load builds a Config from defaults, then the config file, then the
// environment, then flags; later sources win.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path, err := findFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, fmt.Errorf("apply config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(opts.Flags) > 0 {
		if err := k.Load(rawMap(opts.Flags), nil); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return &cfg, nil
}

// File returns the config file Load would read, or "" if none.
func File(opts LoadOptions) string {
	path, _ := findFile(opts)
	return path
}

func findFile(opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return opts.File, nil
	}
	for _, name := range DefaultFiles {
		path := filepath.Join(opts.Dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config file: %w", err)
		}
	}
	return "", nil
}

// readFile parses a YAML or JSON config file into flat, lowercase keys.
func readFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]any, len(raw))
	for key, v := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if alias, ok := legacyKeys[key]; ok {
			key = alias
		}
		out[key] = v
	}
	return out, nil
}

func transformEnv(key, value string) (string, any) {
	name := strings.TrimPrefix(key, EnvPrefix)
	if path, ok := envKeys()[name]; ok {
		return path, value
	}
	return "", nil
}

var (
	envMappings     map[string]string
	envMappingsOnce sync.Once
)

// envKeys maps env tags (without prefix) to config keys.
func envKeys() map[string]string {
	envMappingsOnce.Do(func() {
		envMappings = make(map[string]string)
		t := reflect.TypeOf(Config{})
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key, envName := f.Tag.Get("koanf"), f.Tag.Get("env")
			if key == "" || envName == "" || envName == "-" {
				continue
			}
			envMappings[envName] = key
		}
	})
	return envMappings
}

// EnvVars returns the full environment variable name for each config key.
func EnvVars() map[string]string {
	out := make(map[string]string, len(envKeys()))
	for envName, key := range envKeys() {
		out[key] = EnvPrefix + envName
	}
	return out
}

// rawMap adapts a map to koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("ReadBytes not implemented")
}
