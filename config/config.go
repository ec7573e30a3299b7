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
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"LANDED_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"LANDED_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"LANDED_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"LANDED_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"LANDED_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"LANDED_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"LANDED_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"LANDED_REDIS_DNS"`
}

// QueueConfig bounds the work queue and the processor loop.
type QueueConfig struct {
	// QueuePrefix names the allocation queues; entries shard across
	// NumberOfQueues queues named <prefix>_1..<prefix>_N.
	QueuePrefix    string `json:"queue_prefix" envconfig:"LANDED_QUEUE_PREFIX"`
	NumberOfQueues int    `json:"number_of_queues" envconfig:"LANDED_QUEUE_NUMBER_OF_QUEUES"`
	// MaxRetryAttempts is the retry budget before an entry is dead-lettered.
	MaxRetryAttempts int `json:"max_retry_attempts" envconfig:"LANDED_QUEUE_MAX_RETRY_ATTEMPTS"`
	// BudgetThreshold is the execution-unit floor; the processor checkpoints
	// and requests rescheduling instead of claiming below it.
	BudgetThreshold int64 `json:"budget_threshold" envconfig:"LANDED_QUEUE_BUDGET_THRESHOLD"`
	// RescheduleDelaySeconds is how soon a paused processor asks to be
	// invoked again.
	RescheduleDelaySeconds int `json:"reschedule_delay_seconds" envconfig:"LANDED_QUEUE_RESCHEDULE_DELAY_SECONDS"`
	// StuckThresholdMinutes is how long an entry may sit in PROCESSING before
	// the recovery sweeper returns it to PENDING.
	StuckThresholdMinutes int    `json:"stuck_threshold_minutes" envconfig:"LANDED_QUEUE_STUCK_THRESHOLD_MINUTES"`
	MonitoringPort        string `json:"monitoring_port" envconfig:"LANDED_QUEUE_MONITORING_PORT"`
}

// AllocationConfig tunes how allocation work is dispatched.
type AllocationConfig struct {
	// InlineLineThreshold: transactions with at most this many lines allocate
	// synchronously; larger ones fan out to the work queue.
	InlineLineThreshold int `json:"inline_line_threshold" envconfig:"LANDED_ALLOCATION_INLINE_LINE_THRESHOLD"`
	// BatchSize caps the number of transaction lines carried by one queue
	// entry; transactions beyond it fan out across multiple entries on the
	// same shard.
	BatchSize int `json:"batch_size" envconfig:"LANDED_ALLOCATION_BATCH_SIZE"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"LANDED_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"LANDED_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"LANDED_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"LANDED_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Allocation   AllocationConfig `json:"allocation"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("landed", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called landed.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Landed Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.QueuePrefix == "" {
		cnf.Queue.QueuePrefix = "landed:allocation"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 4
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 3
	}
	if cnf.Queue.BudgetThreshold <= 0 {
		cnf.Queue.BudgetThreshold = 100
	}
	if cnf.Queue.RescheduleDelaySeconds <= 0 {
		cnf.Queue.RescheduleDelaySeconds = 5
	}
	if cnf.Queue.StuckThresholdMinutes <= 0 {
		cnf.Queue.StuckThresholdMinutes = 60
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5002"
	}

	if cnf.Allocation.InlineLineThreshold <= 0 {
		cnf.Allocation.InlineLineThreshold = 10
	}
	if cnf.Allocation.BatchSize <= 0 {
		cnf.Allocation.BatchSize = 500
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
