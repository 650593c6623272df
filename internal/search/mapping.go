package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names shared by the mapping, documents and queries.
const (
	fieldUserID    = "user_id"
	fieldQuery     = "query"
	fieldKey       = "key"
	fieldTimestamp = "timestamp"
)

// buildIndexMapping creates the Bleve index mapping for past searches.
//
//   - query: simple analyzer, so a prefix matches any word of the query
//   - key: the whole lowercased query as one term, so a prefix matches its start
//   - user_id: exact match filter
//   - timestamp: unix millis, for recency sort and pruning
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	queryFieldMapping := bleve.NewTextFieldMapping()
	queryFieldMapping.Analyzer = simple.Name
	queryFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(fieldQuery, queryFieldMapping)

	keyFieldMapping := bleve.NewTextFieldMapping()
	keyFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(fieldKey, keyFieldMapping)

	userFieldMapping := bleve.NewTextFieldMapping()
	userFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(fieldUserID, userFieldMapping)

	timestampFieldMapping := bleve.NewNumericFieldMapping()
	timestampFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(fieldTimestamp, timestampFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
