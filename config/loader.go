package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/infigaming-com/go-authredis/errors"
)

// LoadFile reads a YAML, JSON or .properties file, overlays matching
// environment variables and builds the Config for namespace ns.
func LoadFile(path string, ns string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	props, err := ParseProperties(filepath.Ext(path), data)
	if err != nil {
		return nil, err
	}

	return FromProperties(ns, ApplyEnv(ns, props, os.Environ()))
}

// ParseProperties turns file content into flat dotted keys. Nested maps are
// joined with "." and lists with ",".
func ParseProperties(ext string, data []byte) (map[string]string, error) {
	var tree map[string]any
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, errors.Configuration("failed to parse YAML config").WithCause(err)
		}
	case ".json":
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, errors.Configuration("failed to parse JSON config").WithCause(err)
		}
	case ".properties":
		return parsePropertiesText(data)
	default:
		return nil, errors.Configuration("unsupported config file format: %s", ext)
	}

	props := make(map[string]string)
	flatten("", tree, props)
	return props, nil
}

func flatten(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, out)
		}
	case []any:
		out[prefix] = strings.Join(lo.Map(v, func(item any, _ int) string {
			return fmt.Sprint(item)
		}), ",")
	case float64:
		out[prefix] = strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		// explicit null stays absent
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func parsePropertiesText(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "!") {
			continue
		}
		idx := strings.IndexAny(text, "=:")
		if idx <= 0 {
			return nil, errors.Configuration("properties line %d: missing separator", line)
		}
		props[strings.TrimSpace(text[:idx])] = strings.TrimSpace(text[idx+1:])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan properties: %w", err)
	}
	return props, nil
}

// EnvName maps a property key to its environment variable name, e.g.
// "redis-auth" + "redis-manager.host" -> "REDIS_AUTH_REDIS_MANAGER_HOST".
func EnvName(ns string, key string) string {
	full := key
	if ns != "" {
		full = ns + "." + key
	}
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(full))
}

// ApplyEnv returns a copy of props where every recognised key that has a
// matching entry in environ ("NAME=value") is overridden.
func ApplyEnv(ns string, props map[string]string, environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if ok {
			env[name] = value
		}
	}

	out := lo.Assign(props)
	for _, key := range Keys {
		if v, ok := env[EnvName(ns, key)]; ok {
			full := key
			if ns != "" {
				full = ns + "." + key
			}
			out[full] = v
		}
	}
	return out
}

// Dump renders props sorted by key with the password masked; used for
// startup logging.
func Dump(props map[string]string) []string {
	keys := lo.Keys(props)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) string {
		if strings.HasSuffix(k, KeyPassword) {
			return k + "=******"
		}
		return k + "=" + props[k]
	})
}
