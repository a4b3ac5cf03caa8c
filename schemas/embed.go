// Package schemas holds the JSON Schema documents shipped with the service.
package schemas

import _ "embed"

// ModelArtifact is the JSON Schema every model artifact must satisfy before it is compiled.
//
//go:embed model_artifact.schema.json
var ModelArtifact string
