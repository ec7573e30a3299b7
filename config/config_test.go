/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() Configuration {
	return Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/landed"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
}

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := baseConfig()
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, "Landed Server", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "landed:allocation", cnf.Queue.QueuePrefix)
	assert.Equal(t, 4, cnf.Queue.NumberOfQueues)
	assert.Equal(t, 3, cnf.Queue.MaxRetryAttempts)
	assert.Equal(t, int64(100), cnf.Queue.BudgetThreshold)
	assert.Equal(t, 5, cnf.Queue.RescheduleDelaySeconds)
	assert.Equal(t, 60, cnf.Queue.StuckThresholdMinutes)
	assert.Equal(t, "5002", cnf.Queue.MonitoringPort)
	assert.Equal(t, 10, cnf.Allocation.InlineLineThreshold)
	assert.Equal(t, 500, cnf.Allocation.BatchSize)
	// Rate limiting stays off unless configured.
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Nil(t, cnf.RateLimit.Burst)
}

func TestValidateRequiresDataSource(t *testing.T) {
	cnf := baseConfig()
	cnf.DataSource.Dns = ""
	assert.Error(t, cnf.validateAndAddDefaults())
}

func TestValidateRequiresRedis(t *testing.T) {
	cnf := baseConfig()
	cnf.Redis.Dns = ""
	assert.Error(t, cnf.validateAndAddDefaults())
}

func TestValidateTrimsWhitespace(t *testing.T) {
	cnf := baseConfig()
	cnf.ProjectName = "  landed  "
	cnf.Server.Port = " 8080 "
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "landed", cnf.ProjectName)
	assert.Equal(t, "8080", cnf.Server.Port)
}

func TestRateLimitDefaultsDerivedFromPartialConfig(t *testing.T) {
	cnf := baseConfig()
	rps := 10.0
	cnf.RateLimit.RequestsPerSecond = &rps
	require.NoError(t, cnf.validateAndAddDefaults())

	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
	require.NotNil(t, cnf.RateLimit.CleanupIntervalSec)

	cnf = baseConfig()
	burst := 8
	cnf.RateLimit.Burst = &burst
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Equal(t, 4.0, *cnf.RateLimit.RequestsPerSecond)
}

func TestFetchFailsWhenUnloaded(t *testing.T) {
	// MockConfig from other tests may have populated the store already; fetch
	// behavior on an empty store is only checkable when nothing stored yet.
	if ConfigStore.Load() != nil {
		t.Skip("config store already populated by another test")
	}
	_, err := Fetch()
	assert.Error(t, err)
}

func TestMockConfig(t *testing.T) {
	cnf := baseConfig()
	MockConfig(&cnf)

	fetched, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, cnf.Redis.Dns, fetched.Redis.Dns)
}
