// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command afroadv is the operations CLI for the discovery chatbot: it
// indexes the platform catalog and event feeds into Qdrant and inspects
// the running deployment.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config mirrors config.yaml.
type Config struct {
	QdrantHost   string `yaml:"qdrant_host"`
	QdrantPort   int    `yaml:"qdrant_port"`
	EmbeddingURL string `yaml:"embedding_url"`
	CatalogPath  string `yaml:"catalog_path"`
	EventsPath   string `yaml:"events_path"`
	VectorSize   uint64 `yaml:"vector_size"`
}

var config Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		configPath := "config.yaml"
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			log.Fatalf("Error reading config.yaml: %v. Please ensure it exists.", err)
		}

		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			log.Fatalf("Error parsing config.yaml: %v", err)
		}
		applyDefaults(&config)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.QdrantHost == "" {
		cfg.QdrantHost = "localhost"
	}
	if cfg.QdrantPort == 0 {
		cfg.QdrantPort = 6334
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "./data/platforms.json"
	}
	if cfg.EventsPath == "" {
		cfg.EventsPath = "./data/events.json"
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 384
	}
}
