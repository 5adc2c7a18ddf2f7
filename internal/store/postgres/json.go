// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import "encoding/json"

// blockMetadataJSON marshals block metadata for the JSONB column, never
// failing the insert on an unrepresentable value (metadata is caller-
// controlled and always JSON-marshalable in practice).
func blockMetadataJSON(m map[string]any) []byte {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

func unmarshalBlockMetadata(b []byte, out *map[string]any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}
