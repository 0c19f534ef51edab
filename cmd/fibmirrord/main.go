// Copyright (c) 2024 Tigera, Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/commonnet/openr/internal/core"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/internal/transport/msgshim"
	"github.com/commonnet/openr/internal/transport/netlinkshim"
)

// envPrefix lets every flag below also be set as FIBMIRRORD_LOG_LEVEL etc.
const envPrefix = "FIBMIRRORD"

var rootCmd = &cobra.Command{
	Use:   "fibmirrord",
	Short: "Mirrors and mutates the kernel's main FIB table over netlink",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("log-level", "info", "Log level: panic, fatal, error, warn, info, debug.")
	flags.String("metrics-addr", ":9091", "Address to serve /metrics on; empty disables it.")
	flags.Bool("enable-mpls", false, "Route MPLS label mutations through the message-mode transport; without it they are logged and ignored.")
	flags.String("config", "", "Optional config file (yaml/json/toml), read in addition to FIBMIRRORD_* env vars.")

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		log.WithError(err).Fatal("Failed to bind flags.")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("fibmirrord exited with an error.")
	}
}

func run(cmd *cobra.Command, args []string) error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	configureLogging(viper.GetString("log-level"))

	tp := buildTransport(viper.GetBool("enable-mpls"))
	defer tp.Close()

	agent := core.New(tp)

	if addr := viper.GetString("metrics-addr"); addr != "" {
		go serveMetrics(addr)
	}

	go agent.Run()

	log.Info("fibmirrord is up.")
	waitForShutdownSignal()

	log.Info("Shutting down.")
	agent.Stop()
	return nil
}

// buildTransport wires netlinkshim.Real for everything, optionally layering
// msgshim.MPLS on top so AddLabelRoute/DeleteLabelRoute actually reach the
// kernel instead of returning errNoMPLSCapability.
func buildTransport(enableMPLS bool) transport.Transport {
	real := netlinkshim.NewReal()
	if !enableMPLS {
		return real
	}
	return msgshim.New(real)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("addr", addr).Info("Starting Prometheus metrics endpoint.")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Prometheus metrics endpoint exited.")
	}
}

func configureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithError(err).WithField("level", level).Warning("Failed to parse log level, defaulting to INFO.")
		return
	}
	log.SetLevel(lvl)
}

func waitForShutdownSignal() {
	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		cancel()
	}()
	<-ctx.Done()
}
