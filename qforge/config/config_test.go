package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/questforge/qforge"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	// LoadConfig drives the package-global viper; an explicit config file
	// set by one test must not leak into the next.
	viper.Reset()

	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	tempDir, err := os.MkdirTemp("", "questforge-config-test-*")
	require.NoError(suite.T(), err)
	suite.tempDir = tempDir

	err = os.Chdir(tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultProviderBackend, cfg.Provider.Backend)
	assert.Equal(suite.T(), internal.DefaultProviderModel, cfg.Provider.Model)
	assert.Equal(suite.T(), 60*time.Second, cfg.Provider.CallTimeout)
	assert.Equal(suite.T(), 3, cfg.Provider.MaxAttempts)
	assert.Equal(suite.T(), 500*time.Millisecond, cfg.Provider.BackoffBase)
	assert.Equal(suite.T(), 4, cfg.Provider.GateWidth)

	assert.Equal(suite.T(), internal.DefaultStoreDriver, cfg.Store.Driver)
	assert.Equal(suite.T(), internal.DefaultStoreDSN, cfg.Store.DSN)
	assert.True(suite.T(), cfg.Store.CacheEnabled)

	assert.Equal(suite.T(), 3, cfg.Pipeline.StageAttempts)
	assert.Equal(suite.T(), 3, cfg.Pipeline.SiblingParallelism)
	assert.Equal(suite.T(), 2048, cfg.Pipeline.HistoryMaxTokens)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
questforge:
  log_level: "debug"
provider:
  backend: "openai"
  model: "gpt-4o-mini"
  base_url: "http://localhost:8080/v1"
  gate_width: 2
store:
  driver: "libsql"
  dsn: "test.db"
pipeline:
  stage_attempts: 5
  sibling_parallelism: 1
`

	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "debug", cfg.QuestForge.LogLevel)
	assert.Equal(suite.T(), "openai", cfg.Provider.Backend)
	assert.Equal(suite.T(), "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(suite.T(), "http://localhost:8080/v1", cfg.Provider.BaseURL)
	assert.Equal(suite.T(), 2, cfg.Provider.GateWidth)
	assert.Equal(suite.T(), "libsql", cfg.Store.Driver)
	assert.Equal(suite.T(), "test.db", cfg.Store.DSN)
	assert.Equal(suite.T(), 5, cfg.Pipeline.StageAttempts)
	assert.Equal(suite.T(), 1, cfg.Pipeline.SiblingParallelism)

	// Values absent from the file keep their defaults.
	assert.Equal(suite.T(), 3, cfg.Provider.MaxAttempts)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	malformedContent := `
provider:
  backend: "gemini"
  invalid_yaml: [unclosed bracket
`

	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	err := os.WriteFile(configFile, []byte(malformedContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestAppConfigGlobal() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), cfg.Provider.Backend, AppConfig.Provider.Backend)
	assert.Equal(suite.T(), cfg.Store.Driver, AppConfig.Store.Driver)
}

// BenchmarkLoadConfig benchmarks config loading performance
func BenchmarkLoadConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		cfg, err := LoadConfig("")
		if err != nil {
			b.Fatal(err)
		}
		_ = cfg
	}
}
