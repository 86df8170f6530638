// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/spf13/cobra"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/events"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/index"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/retrieval"
)

var (
	rootCmd = &cobra.Command{
		Use:   "afroadv",
		Short: "A CLI to manage the AfroAdventurers discovery chatbot",
		Long: `afroadv indexes the platform catalog and event feeds into the
vector database and inspects what the chatbot can currently see.`,
	}

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Embed and index the platform catalog and event feed into Qdrant",
		Run:   runIndex,
	}
	skipEvents bool

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Manage stored events",
	}
	eventsClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored events for one platform",
		Run:   runEventsClear,
	}
	clearPlatformID string

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and collection counts",
		Run:   runStats,
	}
)

func init() {
	indexCmd.Flags().BoolVar(&skipEvents, "skip-events", false, "index platforms only")
	eventsClearCmd.Flags().StringVar(&clearPlatformID, "platform", "", "platform id to clear (required)")
	_ = eventsClearCmd.MarkFlagRequired("platform")

	eventsCmd.AddCommand(eventsClearCmd)
	rootCmd.AddCommand(indexCmd, eventsCmd, statsCmd)
}

// eventFeed is the shape of the events JSON file produced by the discovery
// pipeline: events grouped by platform id.
type eventFeed map[string][]datatypes.Event

func connect(ctx context.Context) (*index.Index, *index.Index, index.Embedder) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: config.QdrantHost,
		Port: config.QdrantPort,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Qdrant: %v", err)
	}

	platformIdx := index.NewIndex(client, chatbot.PlatformCollection, config.VectorSize)
	eventIdx := index.NewIndex(client, chatbot.EventCollection, config.VectorSize)
	if err := platformIdx.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure platform collection: %v", err)
	}
	if err := eventIdx.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure event collection: %v", err)
	}

	return platformIdx, eventIdx, index.NewHTTPEmbedder(config.EmbeddingURL)
}

func runIndex(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	platformIdx, eventIdx, embedder := connect(ctx)

	catalog, err := retrieval.LoadCatalog(config.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load platform catalog: %v", err)
	}

	points := make([]index.Point, 0, catalog.Len())
	for _, p := range catalog.All() {
		vector, err := embedder.Embed(ctx, p.Document())
		if err != nil {
			log.Fatalf("Failed to embed platform %s: %v", p.ID, err)
		}
		points = append(points, index.Point{
			ID:     p.ID,
			Vector: vector,
			Payload: map[string]string{
				"name":          p.Name,
				"platform_type": p.Type,
			},
		})
	}
	if err := platformIdx.Upsert(ctx, points); err != nil {
		log.Fatalf("Failed to index platforms: %v", err)
	}
	fmt.Printf("Indexed %d platforms into %q\n", len(points), platformIdx.Collection())

	if skipEvents {
		return
	}

	feedBytes, err := os.ReadFile(config.EventsPath)
	if err != nil {
		fmt.Printf("No event feed at %s, skipping events\n", config.EventsPath)
		return
	}
	var feed eventFeed
	if err := json.Unmarshal(feedBytes, &feed); err != nil {
		log.Fatalf("Failed to parse event feed: %v", err)
	}

	search := events.NewSearch(embedder, eventIdx)
	total := 0
	for platformID, evs := range feed {
		// Re-indexing replaces a platform's events wholesale.
		if err := search.ClearPlatformEvents(ctx, platformID); err != nil {
			log.Fatalf("Failed to clear events for %s: %v", platformID, err)
		}
		if err := search.AddEvents(ctx, platformID, evs); err != nil {
			log.Fatalf("Failed to index events for %s: %v", platformID, err)
		}
		total += len(evs)
	}
	fmt.Printf("Indexed %d events across %d platforms into %q\n", total, len(feed), eventIdx.Collection())
}

func runEventsClear(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, eventIdx, embedder := connect(ctx)
	search := events.NewSearch(embedder, eventIdx)
	if err := search.ClearPlatformEvents(ctx, clearPlatformID); err != nil {
		log.Fatalf("Failed to clear events: %v", err)
	}
	fmt.Printf("Cleared events for platform %q\n", clearPlatformID)
}

func runStats(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	platformIdx, eventIdx, _ := connect(ctx)

	catalog, err := retrieval.LoadCatalog(config.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load platform catalog: %v", err)
	}

	platformCount, err := platformIdx.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count platforms: %v", err)
	}
	eventCount, err := eventIdx.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count events: %v", err)
	}

	fmt.Printf("Catalog platforms:  %d\n", catalog.Len())
	fmt.Printf("Indexed platforms:  %d\n", platformCount)
	fmt.Printf("Indexed events:     %d\n", eventCount)
}
