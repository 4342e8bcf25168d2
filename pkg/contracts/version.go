// Package contracts holds the versioned data contracts shared by every
// turnkernel capability: request envelopes, refusals, intent drafts, identity
// contexts and next-move kinds, together with their structural validators.
//
// Everything downstream of this package assumes validated data. Validation is
// fail-closed: any structural or range violation is reported as a schema
// refusal and nothing is partially processed.
package contracts

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the contract version spoken by this build.
const SchemaVersion = "1.0.0"

var schemaVersion = semver.MustParse(SchemaVersion)

// ClarifyEngineID is the single canonical clarifying-engine identifier.
// Any clarify directive MUST reference exactly this identifier.
const ClarifyEngineID = "engine.nlp.clarify.v1"

// CheckSchemaVersion returns nil only if v names exactly SchemaVersion.
// Any mismatch, including a newer patch, is a structural refusal.
func CheckSchemaVersion(v string) error {
	if v == "" {
		return fmt.Errorf("schema version missing")
	}
	got, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("schema version %q: %w", v, err)
	}
	if !got.Equal(schemaVersion) {
		return fmt.Errorf("schema version %s does not match %s", got, schemaVersion)
	}
	return nil
}
