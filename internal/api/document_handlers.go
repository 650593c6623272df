package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/moodtune/moodtune-sync/internal/remote"
)

func (s *Server) registerDocumentRoutes() {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID: "getDocument",
		Method:      http.MethodGet,
		Path:        "/v1/documents/{collection}/{id}",
		Summary:     "Get document",
		Description: "Returns one document by collection and id",
		Tags:        []string{tagDocuments},
		Security:    security,
	}, s.handleGetDocument)

	huma.Register(s.api, huma.Operation{
		OperationID:   "putDocument",
		Method:        http.MethodPut,
		Path:          "/v1/documents/{collection}/{id}",
		Summary:       "Write document",
		Description:   "Replaces a document, or merges into it when merge=true",
		Tags:          []string{tagDocuments},
		Security:      security,
		DefaultStatus: http.StatusNoContent,
		MaxBodyBytes:  MaxRequestBody,
	}, s.handlePutDocument)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteDocument",
		Method:        http.MethodDelete,
		Path:          "/v1/documents/{collection}/{id}",
		Summary:       "Delete document",
		Tags:          []string{tagDocuments},
		Security:      security,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteDocument)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDocuments",
		Method:      http.MethodGet,
		Path:        "/v1/documents/{collection}",
		Summary:     "List documents",
		Description: "Returns every document of a collection ordered by id",
		Tags:        []string{tagDocuments},
		Security:    security,
	}, s.handleListDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID:   "commitBatch",
		Method:        http.MethodPost,
		Path:          "/v1/batch",
		Summary:       "Commit batch",
		Description:   "Applies every write atomically: all of them or none",
		Tags:          []string{tagDocuments},
		Security:      security,
		DefaultStatus: http.StatusNoContent,
		MaxBodyBytes:  MaxRequestBody,
	}, s.handleCommitBatch)
}

// DocumentPathInput identifies one document.
type DocumentPathInput struct {
	Collection string `path:"collection" minLength:"1" maxLength:"128" doc:"Collection name"`
	ID         string `path:"id" minLength:"1" maxLength:"512" doc:"Document id"`
}

// DocumentOutput wraps a document for Huma.
type DocumentOutput struct {
	Body *remote.Document
}

// DocumentFields is the body of a document write.
type DocumentFields struct {
	Fields map[string]any `json:"fields" doc:"Field values; \"__server_timestamp__\" is replaced with the write time"`
}

// PutDocumentInput contains parameters for writing a document.
type PutDocumentInput struct {
	Collection string `path:"collection" minLength:"1" maxLength:"128" doc:"Collection name"`
	ID         string `path:"id" minLength:"1" maxLength:"512" doc:"Document id"`
	Merge      bool   `query:"merge" doc:"Keep existing fields that are not being written"`
	Body       DocumentFields
}

// ListDocumentsInput contains parameters for listing a collection.
type ListDocumentsInput struct {
	Collection string `path:"collection" minLength:"1" maxLength:"128" doc:"Collection name"`
}

// ListDocumentsResponse contains the documents of a collection.
type ListDocumentsResponse struct {
	Documents []*remote.Document `json:"documents" doc:"Documents ordered by id"`
	Count     int                `json:"count" doc:"Number of documents"`
}

// ListDocumentsOutput wraps the list response for Huma.
type ListDocumentsOutput struct {
	Body ListDocumentsResponse
}

// BatchOp is one write of a batch commit.
type BatchOp struct {
	Collection string         `json:"collection" minLength:"1" maxLength:"128" doc:"Collection name"`
	ID         string         `json:"id" minLength:"1" maxLength:"512" doc:"Document id"`
	Fields     map[string]any `json:"fields" doc:"Field values"`
	Merge      bool           `json:"merge,omitempty" required:"false" doc:"Keep existing fields that are not being written"`
}

// BatchRequest is the body of a batch commit.
type BatchRequest struct {
	Ops []BatchOp `json:"ops" minItems:"1" maxItems:"500" doc:"Writes to apply together"`
}

// BatchInput wraps the batch request for Huma.
type BatchInput struct {
	Body BatchRequest
}

// pathParam undoes the client's path escaping. chi matches on the raw path
// when one is present, so escaped ids arrive still escaped.
func pathParam(raw string) string {
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (s *Server) handleGetDocument(ctx context.Context, input *DocumentPathInput) (*DocumentOutput, error) {
	doc, err := s.docs.Get(ctx, pathParam(input.Collection), pathParam(input.ID))
	if err != nil {
		return nil, handlerError(err)
	}
	return &DocumentOutput{Body: doc}, nil
}

func (s *Server) handlePutDocument(ctx context.Context, input *PutDocumentInput) (*struct{}, error) {
	collection, id := pathParam(input.Collection), pathParam(input.ID)
	err := s.docs.Set(ctx, collection, id, input.Body.Fields, remote.SetOptions{Merge: input.Merge})
	if err != nil {
		s.logger.Warn("document write rejected",
			"collection", collection,
			"id", id,
			"user_id", getUserID(ctx),
			"error", err,
		)
		return nil, handlerError(err)
	}
	return &struct{}{}, nil
}

func (s *Server) handleDeleteDocument(ctx context.Context, input *DocumentPathInput) (*struct{}, error) {
	if err := s.docs.Delete(ctx, pathParam(input.Collection), pathParam(input.ID)); err != nil {
		return nil, handlerError(err)
	}
	return &struct{}{}, nil
}

func (s *Server) handleListDocuments(ctx context.Context, input *ListDocumentsInput) (*ListDocumentsOutput, error) {
	docs, err := s.docs.List(ctx, pathParam(input.Collection))
	if err != nil {
		return nil, handlerError(err)
	}
	if docs == nil {
		docs = []*remote.Document{}
	}
	return &ListDocumentsOutput{
		Body: ListDocumentsResponse{Documents: docs, Count: len(docs)},
	}, nil
}

func (s *Server) handleCommitBatch(ctx context.Context, input *BatchInput) (*struct{}, error) {
	ops := make([]remote.SetOp, len(input.Body.Ops))
	for i, op := range input.Body.Ops {
		ops[i] = remote.SetOp{
			Collection: op.Collection,
			ID:         op.ID,
			Fields:     op.Fields,
			Merge:      op.Merge,
		}
	}

	if err := s.docs.BatchCommit(ctx, ops); err != nil {
		s.logger.Warn("batch rejected", "ops", len(ops), "user_id", getUserID(ctx), "error", err)
		return nil, handlerError(err)
	}
	s.logger.Debug("batch committed", "ops", len(ops))
	return &struct{}{}, nil
}
