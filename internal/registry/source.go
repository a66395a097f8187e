package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// SourceRegistry defines the interface for marketplace source lookups.
// Orders and bid events carry a numeric source id; the registry maps it to a
// display name and domain for API responses.
type SourceRegistry interface {
	// LookupSource returns the source entry for an id, nil when unknown
	LookupSource(id int64) *SourceInfo

	// SourceName returns the source's display name, empty when unknown
	SourceName(id *int64) string
}

// SourceInfo represents a marketplace entry in the registry
type SourceInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Icon   string `json:"icon,omitempty"`
}

// SourceRegistryData represents the structure of the sources JSON file
type SourceRegistryData struct {
	Version int          `json:"version"`
	Sources []SourceInfo `json:"sources"`
}

// sourceRegistry is the internal implementation of SourceRegistry
type sourceRegistry struct {
	data *SourceRegistryData
	// Fast lookup map: id -> entry
	byID map[int64]*SourceInfo
}

// LoadSources loads the source registry from a JSON file
func LoadSources(filePath string) (SourceRegistry, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec,G304 // This should be a trusted file
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var registryData SourceRegistryData
	if err := json.Unmarshal(data, &registryData); err != nil {
		return nil, fmt.Errorf("failed to parse sources JSON: %w", err)
	}

	reg := &sourceRegistry{
		data: &registryData,
		byID: make(map[int64]*SourceInfo, len(registryData.Sources)),
	}
	for i := range registryData.Sources {
		source := &registryData.Sources[i]
		reg.byID[source.ID] = source
	}

	return reg, nil
}

// LookupSource returns the source entry for an id
func (r *sourceRegistry) LookupSource(id int64) *SourceInfo {
	if r == nil {
		return nil
	}
	return r.byID[id]
}

// SourceName returns the source's display name
func (r *sourceRegistry) SourceName(id *int64) string {
	if r == nil || id == nil {
		return ""
	}
	if source := r.byID[*id]; source != nil {
		return source.Name
	}
	return ""
}
