// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("afroadv/index")

// originalIDKey is the payload field holding the caller's string ID.
// Qdrant point IDs are numeric, so string IDs are hashed for the point ID
// and preserved here for round-tripping.
const originalIDKey = "original_id"

// Hit is one search result.
//
// Score is cosine similarity as reported by Qdrant: higher means more
// similar, 1.0 is an exact match. Every ranking layer above this package
// relies on that orientation.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]string
}

// Point is a vector plus its payload, keyed by a caller-chosen string ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Index wraps one Qdrant collection of cosine-distance vectors.
//
// # Description
//
// Index owns collection lifecycle (create if missing), upserts, filtered
// queries, filtered deletes, and counts. Filters are expressed as exact
// payload matches, which is all the retrieval layer needs.
//
// # Example
//
//	client, _ := qdrant.NewClient(&qdrant.Config{Host: "localhost", Port: 6334})
//	idx := NewIndex(client, "platforms", 384)
//	if err := idx.EnsureCollection(ctx); err != nil { ... }
//	hits, err := idx.Search(ctx, vec, 5, map[string]string{"platform_type": "Tech"})
type Index struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewIndex creates an Index over collection with vectorSize-dimensional
// vectors.
func NewIndex(client *qdrant.Client, collection string, vectorSize uint64) *Index {
	return &Index{client: client, collection: collection, vectorSize: vectorSize}
}

// Collection returns the collection name.
func (i *Index) Collection() string { return i.collection }

// EnsureCollection creates the collection if it does not already exist.
func (i *Index) EnsureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", i.collection, err)
	}
	if exists {
		return nil
	}

	slog.Info("Creating Qdrant collection", "collection", i.collection, "vector_size", i.vectorSize)
	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     i.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", i.collection, err)
	}
	return nil
}

// Upsert writes points with wait=true so a subsequent Search sees them.
func (i *Index) Upsert(ctx context.Context, points []Point) error {
	ctx, span := tracer.Start(ctx, "Index.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("qdrant.collection", i.collection),
		attribute.Int("qdrant.points", len(points)),
	)

	if len(points) == 0 {
		return nil
	}

	apiPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := map[string]any{originalIDKey: p.ID}
		for k, v := range p.Payload {
			payload[k] = v
		}
		apiPoints = append(apiPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(hashID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         apiPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", len(points), i.collection, err)
	}
	return nil
}

// Search returns the limit nearest points to vector, optionally restricted
// to exact payload matches. Results come back in descending score order.
func (i *Index) Search(ctx context.Context, vector []float32, limit int, match map[string]string) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("qdrant.collection", i.collection),
		attribute.Int("qdrant.limit", limit),
	)

	query := &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := buildFilter(match); f != nil {
		query.Filter = f
	}

	scored, err := i.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", i.collection, err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, sp := range scored {
		hits = append(hits, Hit{
			ID:      extractOriginalID(sp),
			Score:   float64(sp.Score),
			Payload: payloadStrings(sp.Payload),
		})
	}
	return hits, nil
}

// DeleteByMatch removes every point whose payload matches all given pairs.
func (i *Index) DeleteByMatch(ctx context.Context, match map[string]string) error {
	f := buildFilter(match)
	if f == nil {
		return fmt.Errorf("refusing to delete with an empty filter")
	}

	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points:         qdrant.NewPointsSelectorFilter(f),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", i.collection, err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (i *Index) Count(ctx context.Context) (uint64, error) {
	n, err := i.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: i.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", i.collection, err)
	}
	return n, nil
}

func buildFilter(match map[string]string) *qdrant.Filter {
	if len(match) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(match))
	for k, v := range match {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

func extractOriginalID(sp *qdrant.ScoredPoint) string {
	if sp.Payload != nil {
		if v, ok := sp.Payload[originalIDKey]; ok {
			return v.GetStringValue()
		}
	}
	if num := sp.Id.GetNum(); num != 0 {
		return fmt.Sprintf("%d", num)
	}
	return sp.Id.GetUuid()
}

func payloadStrings(payload map[string]*qdrant.Value) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == originalIDKey {
			continue
		}
		if s := v.GetStringValue(); s != "" {
			out[k] = s
		}
	}
	return out
}

// hashID maps a string ID onto the numeric point ID space. Collisions are
// astronomically unlikely at catalog scale and harmless: the colliding
// point would simply be overwritten.
func hashID(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}
