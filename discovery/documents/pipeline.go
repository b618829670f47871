// Package documents ingests uploaded engagement files and turns them into
// engagement context via the gateway.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

const MaxFileSizeBytes = 10 << 20

// Extensions the extractor can make sense of: PDF plus text-like formats.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
}

type Pipeline struct {
	store   contractx.Store
	blobs   contractx.BlobStore
	gateway contractx.Gateway
	spawner contractx.Spawner
}

func New(
	store contractx.Store,
	blobs contractx.BlobStore,
	gateway contractx.Gateway,
	spawner contractx.Spawner,
) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if spawner == nil {
		return nil, errors.New("spawner is required")
	}
	return &Pipeline{store: store, blobs: blobs, gateway: gateway, spawner: spawner}, nil
}

// Upload validates and stores one file: bytes into blob storage, metadata
// into the store, status pending.
func (p *Pipeline) Upload(ctx context.Context, engagementID, filename, contentType string, data []byte) (*contractx.EngagementDocument, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", contractx.ErrInvalidInput, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", contractx.ErrInvalidInput)
	}
	if len(data) > MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", contractx.ErrInvalidInput, MaxFileSizeBytes)
	}

	if _, err := p.store.GetEngagement(ctx, engagementID); err != nil {
		return nil, err
	}

	blobKey := uuid.NewString() + ext
	if err := p.blobs.Put(ctx, blobKey, contentType, data); err != nil {
		return nil, err
	}

	doc, err := p.store.CreateDocument(ctx, &contractx.EngagementDocument{
		EngagementID: engagementID,
		Filename:     filename,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		BlobKey:      blobKey,
	})
	if err != nil {
		// Best effort: don't leave an orphaned blob behind.
		if delErr := p.blobs.Delete(ctx, blobKey); delErr != nil {
			log.Warn().Err(delErr).Str("blob_key", blobKey).Msg("failed to clean up orphaned blob")
		}
		return nil, err
	}
	return doc, nil
}

// Extract claims every document of the engagement and dispatches the
// extraction as a detached task. Claiming is synchronous so a concurrent
// trigger fails with a conflict instead of double-running.
func (p *Pipeline) Extract(ctx context.Context, engagementID string) error {
	docs, err := p.store.ClaimDocumentsForProcessing(ctx, engagementID)
	if err != nil {
		return err
	}

	p.spawner.Spawn("extract-documents", func(ctx context.Context) {
		p.run(ctx, engagementID, docs)
	})
	return nil
}

// run does the extraction work. All documents of the engagement move through
// the status machine together; any failure marks the whole set failed. A
// secondary failure writing the failed status is swallowed so the detached
// task can never escalate.
func (p *Pipeline) run(ctx context.Context, engagementID string, docs []*contractx.EngagementDocument) {
	fail := func(cause error) {
		log.Error().Err(cause).Str("engagement_id", engagementID).Msg("document extraction failed")
		if err := p.store.FinishDocuments(ctx, engagementID, contractx.DocumentFailed, cause.Error()); err != nil {
			log.Error().Err(err).Str("engagement_id", engagementID).Msg("failed to record extraction failure")
		}
	}

	files := make([]contractx.DocumentFile, 0, len(docs))
	for _, doc := range docs {
		data, err := p.blobs.Get(ctx, doc.BlobKey)
		if err != nil {
			fail(fmt.Errorf("fetch document %s: %w", doc.Filename, err))
			return
		}
		files = append(files, contractx.DocumentFile{
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Data:        data,
		})
	}

	extraction, err := p.gateway.ExtractFromDocuments(ctx, files)
	if err != nil {
		fail(err)
		return
	}

	if err := p.store.UpdateEngagementFromDocuments(ctx, engagementID, extraction.Description, extraction.Context); err != nil {
		fail(err)
		return
	}
	if err := p.store.FinishDocuments(ctx, engagementID, contractx.DocumentCompleted, ""); err != nil {
		log.Error().Err(err).Str("engagement_id", engagementID).Msg("failed to mark documents completed")
	}
}
