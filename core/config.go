package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	// regex for arg expansion
	resolveArgRegexp = regexp.MustCompile(`\${[a-zA-Z0-9\\-\\_\.]+}`)

	globalConf = newAppConfig()
)

// App configuration backed by viper.
//
// Viper isn't thread-safe, all access goes through the rwmu.
type AppConfig struct {
	vp   *viper.Viper
	rwmu *sync.RWMutex
}

func newAppConfig() *AppConfig {
	vp := viper.New()

	// RABBITMQ_HOST overrides rabbitmq.host
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vp.AutomaticEnv()

	return &AppConfig{
		vp:   vp,
		rwmu: &sync.RWMutex{},
	}
}

// Set value for the prop
func (a *AppConfig) SetProp(prop string, val any) {
	a.rwmu.Lock()
	defer a.rwmu.Unlock()
	a.vp.Set(prop, val)
}

// Set default value for the prop
func (a *AppConfig) SetDefProp(prop string, defVal any) {
	a.rwmu.Lock()
	defer a.rwmu.Unlock()
	a.vp.SetDefault(prop, defVal)
}

// Check whether the prop exists
func (a *AppConfig) HasProp(prop string) bool {
	return returnWithReadLock(a, func() bool { return a.vp.IsSet(prop) })
}

// Get prop as string slice
func (a *AppConfig) GetPropStrSlice(prop string) []string {
	return returnWithReadLock(a, func() []string { return a.vp.GetStringSlice(prop) })
}

// Get prop as int
func (a *AppConfig) GetPropInt(prop string) int {
	return returnWithReadLock(a, func() int { return a.vp.GetInt(prop) })
}

// Get prop as time.Duration
func (a *AppConfig) GetPropDur(prop string, unit time.Duration) time.Duration {
	return time.Duration(a.GetPropInt(prop)) * unit
}

// Get prop as bool
func (a *AppConfig) GetPropBool(prop string) bool {
	return returnWithReadLock(a, func() bool { return a.vp.GetBool(prop) })
}

/*
Get prop as string

If the value is an argument that can be expanded, the actual value will be resolved if possible.

e.g, for "password" : "${RABBITMQ_SECRET}".

This func will attempt to resolve the actual value for '${RABBITMQ_SECRET}'.
*/
func (a *AppConfig) GetPropStr(prop string) string {
	return a.ResolveArg(returnWithReadLock(a, func() string { return a.vp.GetString(prop) }))
}

// Unmarshal configuration from a speicific key.
func (a *AppConfig) UnmarshalFromPropKey(key string, ptr any) {
	a.rwmu.RLock()
	defer a.rwmu.RUnlock()
	if err := a.vp.UnmarshalKey(key, ptr); err != nil {
		Warnf("failed to UnmarshalFromPropKey, %v", err)
	}
}

// Load config from io Reader.
//
// It's the caller's responsibility to close the provided reader.
//
// Calling this method merges the loaded config with the previously loaded one.
func (a *AppConfig) LoadConfigFromReader(reader io.Reader) error {
	a.rwmu.Lock()
	defer a.rwmu.Unlock()
	a.vp.SetConfigType("yml")
	if err := a.vp.MergeConfig(reader); err != nil {
		return fmt.Errorf("failed to load config from reader: %w", err)
	}
	return nil
}

// Load config from string.
func (a *AppConfig) LoadConfigFromStr(s string) error {
	return a.LoadConfigFromReader(bytes.NewReader(UnsafeStr2Byt(s)))
}

// Load config from file.
func (a *AppConfig) LoadConfigFromFile(configFile string) error {
	if configFile == "" {
		return nil
	}

	f, err := os.Open(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("unable to find config file: '%s'", configFile)
		}
		return fmt.Errorf("failed to open config file: '%s', %w", configFile, err)
	}
	defer f.Close()

	if err := a.LoadConfigFromReader(f); err != nil {
		return fmt.Errorf("failed to load config file: '%s', %w", configFile, err)
	}
	return nil
}

/*
Default way to read config file.

The config file path is guessed using GuessConfigFilePath(args), then the loaded configuration is
overriden by cli arguments using `KEY=VALUE` syntax.
*/
func (a *AppConfig) DefaultReadConfig(args []string) {
	f := GuessConfigFilePath(args)
	if err := a.LoadConfigFromFile(f); err != nil {
		Debugf("Failed to load config file, file: %v, %v", f, err)
	} else {
		Infof("Loaded config file: %v", f)
	}

	for k, v := range ArgKeyVal(args) {
		if len(v) == 1 {
			a.SetProp(k, v[0])
		} else {
			a.SetProp(k, v)
		}
	}
}

// Resolve argument, e.g., for arg like '${someArg}', it will look for 'someArg' in os.Env and then in props.
func (a *AppConfig) ResolveArg(arg string) string {
	return resolveArgRegexp.ReplaceAllStringFunc(arg, func(s string) string {
		key := s[2 : len(s)-1]
		val := os.Getenv(key)
		if val == "" {
			val = returnWithReadLock(a, func() string { return a.vp.GetString(key) })
		}
		if val == "" {
			val = s
		}
		return val
	})
}

func returnWithReadLock[T any](a *AppConfig, f func() T) T {
	a.rwmu.RLock()
	defer a.rwmu.RUnlock()
	return f()
}

// Get the global AppConfig.
func Config() *AppConfig {
	return globalConf
}

// Set value for the prop
func SetProp(prop string, val any) {
	globalConf.SetProp(prop, val)
}

// Set default value for the prop
func SetDefProp(prop string, defVal any) {
	globalConf.SetDefProp(prop, defVal)
}

// Check whether the prop exists
func HasProp(prop string) bool {
	return globalConf.HasProp(prop)
}

// Get prop as string slice
func GetPropStrSlice(prop string) []string {
	return globalConf.GetPropStrSlice(prop)
}

// Get prop as int
func GetPropInt(prop string) int {
	return globalConf.GetPropInt(prop)
}

// Get prop as time.Duration
func GetPropDur(prop string, unit time.Duration) time.Duration {
	return globalConf.GetPropDur(prop, unit)
}

// Get prop as bool
func GetPropBool(prop string) bool {
	return globalConf.GetPropBool(prop)
}

// Get prop as string, '${...}' style variables are resolved.
func GetPropStr(prop string) string {
	return globalConf.GetPropStr(prop)
}

// Unmarshal configuration from a speicific key.
func UnmarshalFromPropKey(key string, ptr any) {
	globalConf.UnmarshalFromPropKey(key, ptr)
}

// Load config from string.
func LoadConfigFromStr(s string) error {
	return globalConf.LoadConfigFromStr(s)
}

// Load config from file.
func LoadConfigFromFile(configFile string) error {
	return globalConf.LoadConfigFromFile(configFile)
}

// Read config file and cli args.
func DefaultReadConfig(args []string) {
	globalConf.DefaultReadConfig(args)
}

// Check whether we are running in production mode
func IsProdMode() bool {
	return globalConf.GetPropBool(PropProdMode)
}

// Parse CLI args to key-value map
func ArgKeyVal(args []string) map[string][]string {
	m := map[string][]string{}
	for _, s := range args {
		eq := strings.Index(s, "=")
		if eq == -1 {
			continue
		}
		key := strings.TrimSpace(s[:eq])
		val := strings.TrimSpace(s[eq+1:])
		m[key] = append(m[key], val)
	}
	return m
}

// Guess config file path.
//
// It first looks for the arg that matches the pattern "configFile=/path/to/configFile".
// If none is found, it's by default 'conf.yml'.
func GuessConfigFilePath(args []string) string {
	for _, s := range args {
		if eq := strings.Index(s, "="); eq != -1 && s[:eq] == PropConfigFile {
			if p := strings.TrimSpace(s[eq+1:]); p != "" {
				return p
			}
		}
	}
	return "conf.yml"
}
