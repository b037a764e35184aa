package sundaegql

import (
	_ "embed"
	"strings"
)

// SchemaPart is a labelled fragment appended to a resolver's schema.
type SchemaPart struct {
	Label  string
	Schema string
}

//go:embed common.gql
var CommonSchema string

// Common declares the scalars shared by every relay schema.
var Common = SchemaPart{
	Label:  "Common Types",
	Schema: CommonSchema,
}

// MergeSchemas appends each non-empty part to base under a "# Label" comment.
func MergeSchemas(base string, parts ...SchemaPart) string {
	var b strings.Builder
	b.WriteString(base)
	for _, part := range parts {
		if strings.TrimSpace(part.Schema) == "" {
			continue
		}
		b.WriteString("\n\n# ")
		b.WriteString(part.Label)
		b.WriteString("\n\n")
		b.WriteString(part.Schema)
	}
	return b.String()
}
