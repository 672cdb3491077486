package runtime

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lerim-dev/lerim/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		GlobalRoot: t.TempDir(),
		Defaults:   config.Defaults{MemoryScope: config.ScopeGlobalOnly},
		Decay:      config.DefaultDecayConfig(),
		LLM: config.LLMConfig{
			Extract:   config.LLMRoleConfig{Provider: "openrouter", Model: "test-model"},
			Summarize: config.LLMRoleConfig{Provider: "openrouter", Model: "test-model"},
			Chat:      config.LLMRoleConfig{Provider: "openrouter", Model: "test-model"},
			Lead:      config.LLMRoleConfig{Provider: "openrouter", Model: "test-model"},
		},
		Queue:  config.DefaultQueueConfig(),
		Daemon: config.DefaultDaemonConfig(),
		Lock:   config.DefaultLockConfig(),
		HTTP:   config.DefaultHTTPConfig(),
	}
}

func TestNewBuildsAWiredRuntime(t *testing.T) {
	cfg := testConfig(t)

	rt, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, rt)
	defer func() { assert.NoError(t, rt.Close()) }()

	assert.Equal(t, rt.GlobalLayout, rt.PrimaryLayout, "global-only scope should reuse the global layout")
	assert.NotNil(t, rt.Catalog)
	assert.NotNil(t, rt.Tracker)
	assert.NotEmpty(t, rt.Adapters.Names())
	assert.NotNil(t, rt.Platforms)
	assert.NotNil(t, rt.Roles)
}

func TestNewSeedsPlatformRegistryFromConnectedAdapters(t *testing.T) {
	cfg := testConfig(t)

	rt, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, rt.Close()) }()

	for _, name := range rt.Adapters.Names() {
		_, ok := rt.Platforms.Get(name)
		// auto-seed only adds adapters whose source actually exists on this machine
		adapter, found := rt.Adapters.Get(name)
		require.True(t, found)
		_, statErr := os.Stat(adapter.DefaultPath())
		assert.Equal(t, statErr == nil, ok, name)
	}
}

func TestSyncAndMaintainPipelineBuildersWireInvokers(t *testing.T) {
	cfg := testConfig(t)

	rt, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, rt.Close()) }()

	sp := rt.SyncPipeline()
	require.NotNil(t, sp)
	assert.NotNil(t, sp.Invoker)
	assert.Equal(t, rt.Catalog, sp.Catalog)

	mp := rt.MaintainPipeline()
	require.NotNil(t, mp)
	assert.NotNil(t, mp.Invoker)
	assert.Equal(t, rt.Tracker, mp.Tracker)

	sched := rt.Scheduler("test")
	require.NotNil(t, sched)
	assert.NotNil(t, sched.RunSync)
	assert.NotNil(t, sched.RunMaintain)
}
