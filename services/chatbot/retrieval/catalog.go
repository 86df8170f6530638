// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval implements hybrid platform retrieval: vector similarity
// over the platform collection, exact keyword matching over the catalog,
// and a name-boost re-ranking pass that corrects for embeddings blurring
// short proper nouns.
package retrieval

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
)

// Catalog is the in-memory platform reference data, loaded once at startup.
//
// # Description
//
// The catalog is the source of truth for platform records; the vector
// index only stores document text and metadata for similarity search.
// Retrieval hydrates hits back into full Platform structs through the
// catalog. Records are read-only after load.
type Catalog struct {
	platforms []datatypes.Platform
	byID      map[string]int
}

// LoadCatalog reads a JSON platform file. The file is either a bare array
// of platforms or an object with a top-level "platforms" array.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform catalog: %w", err)
	}

	var platforms []datatypes.Platform
	if err := json.Unmarshal(data, &platforms); err != nil {
		var wrapper struct {
			Platforms []datatypes.Platform `json:"platforms"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil {
			return nil, fmt.Errorf("parsing platform catalog %s: %w", path, err)
		}
		platforms = wrapper.Platforms
	}

	return NewCatalog(platforms), nil
}

// NewCatalog builds a catalog from already-decoded platforms. Records with
// duplicate IDs keep the first occurrence.
func NewCatalog(platforms []datatypes.Platform) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(platforms))}
	for _, p := range platforms {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.platforms)
		c.platforms = append(c.platforms, p)
	}
	return c
}

// Get returns the platform with id, by value so callers can set the
// per-query relevance score without touching the catalog copy.
func (c *Catalog) Get(id string) (datatypes.Platform, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return datatypes.Platform{}, false
	}
	return c.platforms[idx], true
}

// All returns every platform in load order. The slice is a copy.
func (c *Catalog) All() []datatypes.Platform {
	out := make([]datatypes.Platform, len(c.platforms))
	copy(out, c.platforms)
	return out
}

// Len returns the number of platforms.
func (c *Catalog) Len() int { return len(c.platforms) }
