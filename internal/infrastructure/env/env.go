package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"data-agent/internal/application/port/output"

	"github.com/joho/godotenv"
)

var _ output.ConfigPort = (*EnvService)(nil)

var ErrMissing = errors.New("missing required setting")

type EnvService struct {
	lookup func(string) (string, bool)
	loaded []string
	appEnv string
}

// NewEnvService loads .env and then .env.<APP_ENV> (default "dev") on top of
// the process environment. Missing files are not an error.
func NewEnvService() *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	svc := &EnvService{lookup: os.LookupEnv, appEnv: appEnv}

	if err := godotenv.Load(".env"); err == nil {
		svc.loaded = append(svc.loaded, ".env")
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err == nil {
		svc.loaded = append(svc.loaded, envFile)
	}

	return svc
}

// NewMapEnv serves settings from a fixed map.
func NewMapEnv(values map[string]string) *EnvService {
	return &EnvService{
		lookup: func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		},
		appEnv: "test",
	}
}

// Loaded lists the dotenv files that were read.
func (e *EnvService) Loaded() []string {
	return e.loaded
}

func (e *EnvService) AppEnv() string {
	return e.appEnv
}

func (e *EnvService) Get(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

func (e *EnvService) GetOr(key, defaultValue string) string {
	if v := e.Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (e *EnvService) Require(key string) (string, error) {
	val := e.Get(key)
	if val == "" {
		return "", fmt.Errorf("%w: %s", ErrMissing, key)
	}
	return val, nil
}

func (e *EnvService) GetBool(key string, defaultValue bool) (bool, error) {
	val := e.Get(key)
	if val == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a boolean", key, val)
	}
	return parsed, nil
}

func (e *EnvService) GetInt(key string, defaultValue int) (int, error) {
	val := e.Get(key)
	if val == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return parsed, nil
}

func (e *EnvService) GetFloat(key string, defaultValue float64) (float64, error) {
	val := e.Get(key)
	if val == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a number", key, val)
	}
	return parsed, nil
}

// GetDuration accepts Go duration strings ("90s", "2m") or plain seconds.
func (e *EnvService) GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	val := e.Get(key)
	if val == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a duration", key, val)
	}
	return parsed, nil
}
