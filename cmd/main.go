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
	"fmt"
	"log"
	"os"

	"github.com/landedhq/landed"
	"github.com/landedhq/landed/config"
	"github.com/landedhq/landed/database"
	"github.com/landedhq/landed/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Landed represents the CLI application, encapsulating the root Cobra command.
type Landed struct {
	cmd *cobra.Command
}

// landedInstance holds the runtime service instance and its configuration,
// shared by all subcommands.
type landedInstance struct {
	landed *landed.Landed
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the Landed instance before
// running any command.
func preRun(app *landedInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("landed.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newLanded, err := setupLanded(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.landed = newLanded
		app.cnf = cnf

		return nil
	}
}

// setupLanded connects the data source and builds the service instance.
func setupLanded(cfg *config.Configuration) (*landed.Landed, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newLanded, err := landed.NewLanded(db)
	if err != nil {
		return nil, fmt.Errorf("error creating landed: %v", err)
	}
	return newLanded, nil
}

// NewCLI creates the command-line interface for the Landed application.
func NewCLI() *Landed {
	var configFile string
	l := &landedInstance{}

	var rootCmd = &cobra.Command{
		Use:   "landed",
		Short: "Landed cost allocation engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./landed.json", "Configuration file for landed")

	rootCmd.PersistentPreRunE = preRun(l)

	rootCmd.AddCommand(serverCommands(l))
	rootCmd.AddCommand(workerCommands(l))

	return &Landed{cmd: rootCmd}
}

func (w Landed) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
