package config

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		flags   []string
		want    Config
		wantErr bool
	}{
		{
			name: "defaults",
			want: Config{
				APIBaseURL:     "http://localhost:8000",
				StorageBackend: BackendFile,
				StorageDir:     ".bookshop",
				RedisAddr:      "localhost:6379",
			},
		},
		{
			name: "flags only",
			flags: []string{
				"-a", "https://shop.example.com",
				"-s", "memory",
			},
			want: Config{
				APIBaseURL:     "https://shop.example.com",
				StorageBackend: BackendMemory,
				StorageDir:     ".bookshop",
				RedisAddr:      "localhost:6379",
			},
		},
		{
			name: "env overrides flags",
			env: map[string]string{
				"BOOKSHOP_API_URL": "https://env.example.com",
				"BOOKSHOP_STORAGE": "redis",
			},
			flags: []string{
				"-a", "https://flag.example.com",
				"-r", "redis:6380",
			},
			want: Config{
				APIBaseURL:     "https://env.example.com",
				StorageBackend: BackendRedis,
				StorageDir:     ".bookshop",
				RedisAddr:      "redis:6380",
			},
		},
		{
			name:    "unknown backend rejected",
			flags:   []string{"-s", "postgres"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			os.Args = append([]string{"test"}, tt.flags...)

			cfg, err := Parse()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}
