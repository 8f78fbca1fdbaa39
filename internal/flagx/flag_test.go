package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	serverFlags := []string{"-a", "-d", "-s"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate values", []string{"-a", ":8080", "-x", "1", "-d", "dsn"}, []string{"-a", ":8080", "-d", "dsn"}},
		{"equals form", []string{"-a=:8080", "-q=1"}, []string{"-a=:8080"}},
		{"trailing flag without value", []string{"-s"}, []string{"-s"}},
		{"next token is a flag", []string{"-s", "-d", "dsn"}, []string{"-s", "-d", "dsn"}},
		{"equals value looking like a flag", []string{"-d=--weird"}, []string{"-d=--weird"}},
		{"repeated flag keeps order", []string{"-a", "one", "-a", "two"}, []string{"-a", "one", "-a", "two"}},
		{"nothing allowed", []string{"-x", "1", "positional"}, []string{}},
		{"empty", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, serverFlags))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"bin", "-c", "/etc/snapboard.json"}, "/etc/snapboard.json"},
		{"long", []string{"bin", "-config", "/etc/long.json"}, "/etc/long.json"},
		{"long with equals", []string{"bin", "-config=/etc/eq.json"}, "/etc/eq.json"},
		{"absent", []string{"bin", "-a", ":8080"}, ""},
		{"last wins", []string{"bin", "-c", "1.json", "-config", "2.json"}, "2.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			assert.Equal(t, tt.want, JsonConfigFlags())
		})
	}
}
