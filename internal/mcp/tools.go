package mcp

// CreateIndexInput defines the input schema for the create_index tool.
type CreateIndexInput struct {
	Path    string `json:"path" jsonschema:"index directory, created if absent"`
	Mapping string `json:"mapping" jsonschema:"JSON mapping with a properties object describing every field"`
}

// CreateIndexOutput reports the compiled schema of the opened index.
type CreateIndexOutput struct {
	Path      string        `json:"path"`
	Fields    []FieldOutput `json:"fields"`
	Search    []string      `json:"search_fields"`
	ID        string        `json:"id_field,omitempty"`
	Return    string        `json:"return_field,omitempty"`
	Documents uint64        `json:"documents"`
}

// FieldOutput describes one schema field.
type FieldOutput struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Options string `json:"options"`
}

// PathInput is the input of tools that only name an index.
type PathInput struct {
	Path string `json:"path" jsonschema:"index directory"`
}

// AddInput defines the input schema for the add tool.
type AddInput struct {
	Path       string `json:"path" jsonschema:"index directory"`
	Document   string `json:"document" jsonschema:"the document as a JSON object string"`
	SkipCommit bool   `json:"skip_commit,omitempty" jsonschema:"stage without committing; call commit later"`
}

// StatusOutput is the output of mutating tools.
type StatusOutput struct {
	OK      bool   `json:"ok"`
	Pending int    `json:"pending"`
	Message string `json:"message,omitempty"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Path         string   `json:"path" jsonschema:"index directory"`
	Query        string   `json:"query" jsonschema:"query string, e.g. hello or data.key1:awesome"`
	SearchFields []string `json:"search_fields,omitempty" jsonschema:"fields to search instead of the declared search fields"`
	ReturnFields []string `json:"return_fields,omitempty" jsonschema:"stored fields to return, default all"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// FindInput defines the input schema for the find tool.
type FindInput struct {
	Path  string `json:"path" jsonschema:"index directory"`
	Query string `json:"query" jsonschema:"identifier value to match exactly"`
}

// AggregateInput defines the input schema for the aggregate tool.
type AggregateInput struct {
	Path        string `json:"path" jsonschema:"index directory"`
	Query       string `json:"query" jsonschema:"query selecting the documents to aggregate"`
	Aggregation string `json:"aggregation" jsonschema:"JSON aggregation request, e.g. {\"count\":{\"value_count\":{\"field\":\"metadata.txid\"}}}"`
}
