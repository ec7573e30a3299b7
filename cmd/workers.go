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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/landedhq/landed"
	"github.com/landedhq/landed/config"
	redis_db "github.com/landedhq/landed/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// processQueueTrigger handles one trigger task: it runs the sequential
// processor for the queue named in the payload until the queue drains or the
// execution budget runs out. Budget exhaustion is handled inside the
// processor (it pauses the entry and requests its own follow-up), so a nil
// return here is correct even when work remains.
func (l *landedInstance) processQueueTrigger(ctx context.Context, t *asynq.Task) error {
	queueName := string(t.Payload())
	if queueName == "" {
		logrus.Error("trigger task with empty queue name dropped")
		return nil
	}

	processor, err := l.landed.NewProcessor(queueName, nil)
	if err != nil {
		return err
	}

	if err := processor.Run(ctx); err != nil {
		logrus.Errorf("processor run for %s: %v", queueName, err)
		return err
	}

	log.Println(" [*] Queue processed", queueName)
	return nil
}

func initializeQueues() map[string]int {
	queues := make(map[string]int)
	queues[landed.TriggerQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

// initializePeriodicTriggers registers a recurring trigger per queue shard so
// pending entries are drained even if an ad-hoc trigger was lost.
func initializePeriodicTriggers(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	for i := 1; i <= conf.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", conf.Queue.QueuePrefix, i)
		task := asynq.NewTask(landed.TaskTypeProcessQueue, []byte(queueName), asynq.Queue(landed.TriggerQueue))
		if _, err := scheduler.Register("@every 1m", task); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

// workerCommands defines the "workers" command. The worker consumes trigger
// tasks and drains the durable queues; it also runs the stuck entry recovery
// sweep and an asynqmon instance for monitoring.
func workerCommands(l *landedInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start landed workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(landed.TaskTypeProcessQueue, l.processQueueTrigger)

			// Periodic triggers sweep each queue shard.
			periodic, err := initializePeriodicTriggers(conf)
			if err != nil {
				log.Fatal(err)
			}
			if err := periodic.Start(); err != nil {
				log.Fatalf("could not start periodic triggers: %v", err)
			}
			defer periodic.Shutdown()

			// Recovery sweeper returns entries stranded in PROCESSING.
			recovery := landed.NewStuckEntryRecoveryProcessor(l.landed)
			recovery.Start(ctx)
			defer recovery.Stop()

			// Start asynqmon server for health checks and monitoring.
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
