package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jronak/cgimap-go/internal/config"
)

func TestCoerceCacheSize(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    uint64
		wantErr bool
	}{
		{"direct uint", uint64(500), 500, false},
		{"signed int", -1, 0, true},
		{"positive signed int", 42, 42, false},
		{"decimal string", "2000", 2000, false},
		{"non-numeric string", "lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.CoerceCacheSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromViper_RequiresDBName(t *testing.T) {
	v := viper.New()
	v.Set("charset", "utf8")

	_, err := config.FromViper(v)
	assert.Error(t, err)
}

func TestFromViper_RequiresCharset(t *testing.T) {
	v := viper.New()
	v.Set("dbname", "openstreetmap")
	v.Set("charset", "")

	_, err := config.FromViper(v)
	assert.Error(t, err)
}

func TestFromViper_Success(t *testing.T) {
	v := viper.New()
	v.Set("dbname", "openstreetmap")
	v.Set("charset", "utf8")
	v.Set("host", "localhost")
	v.Set("cachesize", "12345")

	opts, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "openstreetmap", opts.DBName)
	assert.Equal(t, "localhost", opts.Host)
	assert.Equal(t, uint64(12345), opts.CacheSize)
}
