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

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/internal/cache"
)

// Singleton connection; not reachable outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS landed`); err != nil {
		return nil, err
	}
	err = createCostTemplateTable(db)
	if err != nil {
		return nil, err
	}
	err = createTransactionTables(db)
	if err != nil {
		return nil, err
	}
	err = createItemCostTables(db)
	if err != nil {
		return nil, err
	}
	err = createAllocationTables(db)
	if err != nil {
		return nil, err
	}
	err = createQueueEntryTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createCostTemplateTable stores templates with their detail lines as a JSONB
// document; details are read-only configuration and always loaded whole.
func createCostTemplateTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.cost_templates (
			id SERIAL PRIMARY KEY,
			template_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			location_key TEXT NOT NULL,
			currency_key TEXT NOT NULL,
			details JSONB NOT NULL,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (location_key, currency_key)
		)
	`)
	return err
}

func createTransactionTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			location_key TEXT NOT NULL,
			currency_key TEXT NOT NULL,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.transaction_lines (
			id SERIAL PRIMARY KEY,
			line_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL REFERENCES landed.transactions(transaction_id),
			item_id TEXT NOT NULL,
			quantity NUMERIC NOT NULL,
			rate NUMERIC NOT NULL DEFAULT 0
		)
	`)
	return err
}

func createItemCostTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.item_cost_profiles (
			id SERIAL PRIMARY KEY,
			item_id TEXT NOT NULL UNIQUE,
			strategy TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.item_location_costs (
			id SERIAL PRIMARY KEY,
			item_id TEXT NOT NULL,
			location_key TEXT NOT NULL,
			average_cost NUMERIC NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (item_id, location_key)
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.item_source_costs (
			id SERIAL PRIMARY KEY,
			item_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			unit_cost NUMERIC NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (item_id, document_id)
		)
	`)
	return err
}

func createAllocationTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.allocation_results (
			id SERIAL PRIMARY KEY,
			result_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL,
			template_id TEXT NOT NULL,
			batch INT NOT NULL DEFAULT 0,
			line_id TEXT,
			category TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_allocation_results_txn_template
		ON landed.allocation_results (transaction_id, template_id)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.consumption_requests (
			id SERIAL PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL,
			template_id TEXT NOT NULL,
			batch INT NOT NULL DEFAULT 0,
			item_id TEXT NOT NULL,
			quantity NUMERIC NOT NULL,
			location_key TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// createQueueEntryTable holds the durable work queue. version is the
// optimistic concurrency token; every transition checks and bumps it.
func createQueueEntryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS landed.queue_entries (
			id SERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL UNIQUE,
			queue_name TEXT NOT NULL,
			task_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			priority INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			retry_count INT NOT NULL DEFAULT 0,
			version INT NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_queue_entries_claim
		ON landed.queue_entries (queue_name, status, priority DESC, created_at ASC)
	`)
	return err
}
