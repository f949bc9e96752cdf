package fhir

import (
	"encoding/json"
	"fmt"
)

// Bundle types used by this service.
const (
	BundleTypeCollection = "collection"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ParseBundle decodes a raw Bundle. The root must at least be a JSON object;
// resourceType and type are left for the caller to check.
func ParseBundle(raw json.RawMessage) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}
