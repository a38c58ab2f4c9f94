// Copyright 2026 Dominik Schlosser
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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
	"github.com/dominikschlosser/certverify/internal/pipeline"
	"github.com/dominikschlosser/certverify/internal/web"
)

var (
	servePort    int
	serveKeyFile string
	serveDBPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification HTTP API",
	Long:  "Starts an HTTP server exposing the verification pipeline: POST /api/verify for image uploads, POST /api/scan for decoded QR content, POST /api/qr for QR generation, and GET /api/issuers/{id}/key for issuer public keys.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVarP(&serveKeyFile, "key", "k", "", "Trusted issuer public key (PEM or JWK)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "Record database path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	registry, err := verifyRegistry(serveKeyFile)
	if err != nil {
		return err
	}

	records, err := openRecords(serveDBPath)
	if err != nil {
		return err
	}
	if records != nil {
		defer records.Close()
	}

	var resolver attest.Resolver
	if records != nil {
		resolver = records
	}
	service := attest.NewService(registry, resolver)

	logger, err := pipeline.NewLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p := pipeline.New(forensics.NewEngine(logger), service, records, logger)
	server := web.NewServer(p, service)

	fmt.Printf("Starting certificate verification API at http://localhost:%d\n", servePort)
	return server.ListenAndServe(servePort)
}
