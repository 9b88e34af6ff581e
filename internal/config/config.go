// Package config loads the selection-factory configuration options from
// spec §6 (dbname, host, username, password, dbport, charset, cachesize)
// via viper, the same way the teacher's cmd/bd/config.go builds a
// viper.New() instance per command. cachesize is coerced through
// spf13/cast to accept the heterogeneous dynamic types spec §6/§9
// requires (direct integer, signed integer, decimal string) — the Go
// analogue of the reference implementation's boost::any_cast chain.
package config

import (
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/jronak/cgimap-go/internal/cgimaperr"
)

// Options are the factory construction options, resolved from file, env,
// and defaults.
type Options struct {
	DBName    string
	Host      string
	Username  string
	Password  string
	DBPort    string
	Charset   string
	CacheSize uint64
}

// Load builds Options from a viper instance seeded with environment
// variables under the CGIMAP_ prefix and, if present, a config file at
// configPath. configPath may be empty, in which case only env vars and
// defaults apply.
func Load(configPath string) (Options, error) {
	v := viper.New()
	v.SetEnvPrefix("cgimap")
	v.AutomaticEnv()

	v.SetDefault("charset", "utf8")
	v.SetDefault("dbport", "")
	v.SetDefault("cachesize", 10000)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, cgimaperr.NewConfigError("config file", err)
		}
	}

	return FromViper(v)
}

// FromViper extracts and validates Options from an already-populated
// viper instance, allowing a caller to layer CLI flags on top of viper's
// own precedence rules before calling this.
func FromViper(v *viper.Viper) (Options, error) {
	dbname := v.GetString("dbname")
	if dbname == "" {
		return Options{}, cgimaperr.NewConfigError("dbname", errRequired)
	}

	charset := v.GetString("charset")
	if charset == "" {
		return Options{}, cgimaperr.NewConfigError("charset", errRequired)
	}

	cacheSize, err := CoerceCacheSize(v.Get("cachesize"))
	if err != nil {
		return Options{}, cgimaperr.NewConfigError("cachesize", err)
	}

	return Options{
		DBName:    dbname,
		Host:      v.GetString("host"),
		Username:  v.GetString("username"),
		Password:  v.GetString("password"),
		DBPort:    v.GetString("dbport"),
		Charset:   charset,
		CacheSize: cacheSize,
	}, nil
}

var errRequired = configRequiredError{}

type configRequiredError struct{}

func (configRequiredError) Error() string { return "required option missing" }

// CoerceCacheSize accepts cachesize in any of the dynamic types spec §6/§9
// names: a direct (unsigned) integer, a signed integer, or a decimal
// string, mirroring the reference implementation's
// get_or_convert_cachesize. Other values spf13/cast converts to a
// non-negative integer (floats, numeric strings with a base prefix) are
// accepted too; negative values and non-numeric strings are errors.
func CoerceCacheSize(v interface{}) (uint64, error) {
	return cast.ToUint64E(v)
}
