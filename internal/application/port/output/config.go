package output

import "time"

// ConfigPort reads settings by key. Typed getters return the default when a
// key is unset and an error when it is set to something unparseable.
type ConfigPort interface {
	Get(key string) string
	GetOr(key, defaultValue string) string
	Require(key string) (string, error)
	GetBool(key string, defaultValue bool) (bool, error)
	GetInt(key string, defaultValue int) (int, error)
	GetFloat(key string, defaultValue float64) (float64, error)
	GetDuration(key string, defaultValue time.Duration) (time.Duration, error)
}
