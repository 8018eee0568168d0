package resourcez

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTOML = `
[resource]
"service.name" = "checkout"
"service.instance.count" = 3
"deployment.regions" = ["eu", "us"]

[[sessions]]
name = "default"
store = "cookie"
max_age = "30m"
renew_every = "15m"

[[sessions]]
name = "background"
store = "memory"
generator = "uuid"
delete_on_end = true
`

const testYAML = `
resource:
  service.name: checkout
  service.instance.count: 3
  deployment.regions: [eu, us]
sessions:
  - name: default
    store: cookie
    max_age: 30m
    renew_every: 15m
  - name: background
    store: memory
    generator: uuid
    delete_on_end: true
`

func assertParsedConfig(t *testing.T, cfg Config) {
	t.Helper()

	r := NewResource(cfg.Resource)
	v, _ := r.Get("service.name")
	assert.Equal(t, "checkout", v)
	v, _ = r.Get("service.instance.count")
	assert.Equal(t, int64(3), v)
	v, _ = r.Get("deployment.regions")
	assert.Equal(t, []string{"eu", "us"}, v)

	require.Len(t, cfg.Sessions, 2)
	assert.Equal(t, SessionConfig{
		Name:       "default",
		Store:      StoreCookie,
		Generator:  GeneratorRandom,
		MaxAge:     30 * time.Minute,
		RenewEvery: 15 * time.Minute,
	}, cfg.Sessions[0])
	assert.Equal(t, SessionConfig{
		Name:        "background",
		Store:       StoreMemory,
		Generator:   GeneratorUUID,
		DeleteOnEnd: true,
	}, cfg.Sessions[1])
}

func TestParseConfigTOML(t *testing.T) {
	cfg, err := ParseConfig([]byte(testTOML), "toml")
	require.NoError(t, err)
	assertParsedConfig(t, cfg)
}

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(testYAML), "yaml")
	require.NoError(t, err)
	assertParsedConfig(t, cfg)
}

func TestLoadConfigByExtension(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "resource.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(testTOML), 0o600))
	cfg, err := LoadConfig(tomlPath)
	require.NoError(t, err)
	assertParsedConfig(t, cfg)

	ymlPath := filepath.Join(dir, "resource.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte(testYAML), 0o600))
	cfg, err = LoadConfig(ymlPath)
	require.NoError(t, err)
	assertParsedConfig(t, cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "resource.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("[[sessions]]\n"), "toml")
	require.NoError(t, err)
	require.Len(t, cfg.Sessions, 1)
	assert.Equal(t, DefaultSessionName, cfg.Sessions[0].Name)
	assert.Equal(t, StoreCookie, cfg.Sessions[0].Store)
	assert.Equal(t, GeneratorRandom, cfg.Sessions[0].Generator)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		session SessionConfig
	}{
		{"malformed name", SessionConfig{Name: "has space", Store: StoreNoop, Generator: GeneratorRandom}},
		{"dotted name", SessionConfig{Name: "a.b", Store: StoreNoop, Generator: GeneratorRandom}},
		{"unknown store", SessionConfig{Name: "a", Store: "redis", Generator: GeneratorRandom}},
		{"unknown generator", SessionConfig{Name: "a", Store: StoreNoop, Generator: "seq"}},
		{"negative max age", SessionConfig{Name: "a", Store: StoreNoop, Generator: GeneratorRandom, MaxAge: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Sessions: []SessionConfig{tt.session}}.Validate()
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestConfigValidateDuplicate(t *testing.T) {
	s := SessionConfig{Name: "a", Store: StoreNoop, Generator: GeneratorRandom}
	err := Config{Sessions: []SessionConfig{s, s}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestConfigBuild(t *testing.T) {
	cfg, err := ParseConfig([]byte(testTOML), "toml")
	require.NoError(t, err)

	rt, err := cfg.Build(newTestClientJar(t), zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	v, _ := rt.Provider.Resource().Get(ServiceNameKey)
	assert.Equal(t, "checkout", v)
	v, _ = rt.Provider.Resource().Get(SDKNameKey)
	assert.Equal(t, "resourcez", v)

	assert.Equal(t, []string{"background", "default"}, rt.Registry.Names())
	require.Len(t, rt.Renewers, 1)
	assert.Equal(t, 15*time.Minute, rt.Renewers[0].Interval())

	bg, ok := rt.Registry.Get("background")
	require.True(t, ok)
	s := bg.CreateSession()
	v, _ = rt.Provider.Resource().Get("session.background.id")
	assert.Equal(t, s.ID(), v)
	assert.Len(t, s.ID(), 36, "uuid generator")
}

func TestConfigBuildRequiresJarForCookies(t *testing.T) {
	cfg := Config{Sessions: []SessionConfig{{Name: "default"}}}

	_, err := cfg.Build(nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrCookieJarMissing)
}

func TestConfigBuildDoesNotMutateConfig(t *testing.T) {
	cfg := Config{Sessions: []SessionConfig{{Name: "default", Store: StoreMemory}}}

	rt, err := cfg.Build(nil, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Empty(t, cfg.Sessions[0].Generator)
}

func TestConfigBuildPoolGenerator(t *testing.T) {
	cfg := Config{Sessions: []SessionConfig{{Name: "pooled", Store: StoreNoop, Generator: GeneratorPool}}}

	rt, err := cfg.Build(nil, zerolog.Nop())
	require.NoError(t, err)

	m, _ := rt.Registry.Get("pooled")
	s := m.CreateSession()
	assert.Len(t, s.ID(), 32)

	rt.Close()
}
