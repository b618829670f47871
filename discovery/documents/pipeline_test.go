package documents

import (
	"bytes"
	"context"
	"errors"
	"testing"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

type fakeStore struct {
	contractx.Store

	engagement *contractx.Engagement
	docs       []*contractx.EngagementDocument
	createErr  error
	claimErr   error

	finishedStatus contractx.DocumentStatus
	finishedError  string
	updatedDesc    string
	updatedContext string
	updateErr      error
}

func (s *fakeStore) GetEngagement(ctx context.Context, id string) (*contractx.Engagement, error) {
	if s.engagement == nil || s.engagement.ID != id {
		return nil, contractx.ErrNotFound
	}
	return s.engagement, nil
}

func (s *fakeStore) CreateDocument(ctx context.Context, d *contractx.EngagementDocument) (*contractx.EngagementDocument, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	d.ID = "doc-1"
	d.ProcessingStatus = contractx.DocumentPending
	s.docs = append(s.docs, d)
	return d, nil
}

func (s *fakeStore) ClaimDocumentsForProcessing(ctx context.Context, engagementID string) ([]*contractx.EngagementDocument, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return s.docs, nil
}

func (s *fakeStore) FinishDocuments(ctx context.Context, engagementID string, status contractx.DocumentStatus, errorMessage string) error {
	s.finishedStatus = status
	s.finishedError = errorMessage
	return nil
}

func (s *fakeStore) UpdateEngagementFromDocuments(ctx context.Context, id, description, contextText string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedDesc = description
	s.updatedContext = contextText
	return nil
}

type fakeBlobs struct {
	data    map[string][]byte
	putErr  error
	getErr  error
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: map[string][]byte{}}
}

func (b *fakeBlobs) Put(ctx context.Context, key, contentType string, data []byte) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.data[key] = data
	return nil
}

func (b *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	data, ok := b.data[key]
	if !ok {
		return nil, contractx.ErrNotFound
	}
	return data, nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.data, key)
	return nil
}

type fakeGateway struct {
	contractx.Gateway

	extraction *contractx.DocumentExtraction
	err        error
	gotFiles   []contractx.DocumentFile
}

func (g *fakeGateway) ExtractFromDocuments(ctx context.Context, files []contractx.DocumentFile) (*contractx.DocumentExtraction, error) {
	g.gotFiles = files
	if g.err != nil {
		return nil, g.err
	}
	return g.extraction, nil
}

type syncSpawner struct{}

func (syncSpawner) Spawn(name string, fn func(ctx context.Context)) { fn(context.Background()) }

func newTestPipeline(t *testing.T, store *fakeStore, blobs *fakeBlobs, gw *fakeGateway) *Pipeline {
	t.Helper()
	p, err := New(store, blobs, gw, syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestUploadStoresBlobAndRow(t *testing.T) {
	t.Parallel()

	store := &fakeStore{engagement: &contractx.Engagement{ID: "e-1"}}
	blobs := newFakeBlobs()
	p := newTestPipeline(t, store, blobs, &fakeGateway{})

	doc, err := p.Upload(context.Background(), "e-1", "notes.txt", "text/plain", []byte("meeting notes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ProcessingStatus != contractx.DocumentPending {
		t.Fatalf("status = %q, want pending", doc.ProcessingStatus)
	}
	if doc.SizeBytes != int64(len("meeting notes")) {
		t.Fatalf("SizeBytes = %d", doc.SizeBytes)
	}
	if _, ok := blobs.data[doc.BlobKey]; !ok {
		t.Fatal("blob must be stored under the document's key")
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	t.Parallel()

	store := &fakeStore{engagement: &contractx.Engagement{ID: "e-1"}}
	p := newTestPipeline(t, store, newFakeBlobs(), &fakeGateway{})

	cases := []struct {
		name        string
		filename    string
		data        []byte
	}{
		{name: "unsupported extension", filename: "malware.exe", data: []byte("x")},
		{name: "no extension", filename: "README", data: []byte("x")},
		{name: "empty file", filename: "notes.txt", data: nil},
		{name: "oversized file", filename: "big.pdf", data: bytes.Repeat([]byte("a"), MaxFileSizeBytes+1)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.Upload(context.Background(), "e-1", tc.filename, "application/octet-stream", tc.data)
			if !errors.Is(err, contractx.ErrInvalidInput) {
				t.Fatalf("Upload() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestUploadUnknownEngagement(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeStore{}, newFakeBlobs(), &fakeGateway{})

	_, err := p.Upload(context.Background(), "missing", "notes.txt", "text/plain", []byte("x"))
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("Upload() error = %v, want ErrNotFound", err)
	}
}

func TestUploadCleansUpBlobWhenRowFails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{engagement: &contractx.Engagement{ID: "e-1"}, createErr: errors.New("db down")}
	blobs := newFakeBlobs()
	p := newTestPipeline(t, store, blobs, &fakeGateway{})

	if _, err := p.Upload(context.Background(), "e-1", "notes.txt", "text/plain", []byte("x")); err == nil {
		t.Fatal("Upload() must fail when the row cannot be created")
	}
	if len(blobs.deleted) != 1 {
		t.Fatalf("orphaned blob must be deleted, deletions = %v", blobs.deleted)
	}
}

func TestExtractHappyPath(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		engagement: &contractx.Engagement{ID: "e-1"},
		docs: []*contractx.EngagementDocument{
			{ID: "doc-1", EngagementID: "e-1", Filename: "notes.txt", ContentType: "text/plain", BlobKey: "k1"},
		},
	}
	blobs := newFakeBlobs()
	blobs.data["k1"] = []byte("meeting notes")
	gw := &fakeGateway{extraction: &contractx.DocumentExtraction{Description: "Rollout project", Context: "Ask about budget"}}
	p := newTestPipeline(t, store, blobs, gw)

	if err := p.Extract(context.Background(), "e-1"); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if store.finishedStatus != contractx.DocumentCompleted {
		t.Fatalf("final status = %q, want completed", store.finishedStatus)
	}
	if store.updatedDesc != "Rollout project" || store.updatedContext != "Ask about budget" {
		t.Fatalf("engagement update = %q / %q", store.updatedDesc, store.updatedContext)
	}
	if len(gw.gotFiles) != 1 || gw.gotFiles[0].Filename != "notes.txt" {
		t.Fatalf("gateway files = %+v", gw.gotFiles)
	}
}

func TestExtractConcurrentClaimConflict(t *testing.T) {
	t.Parallel()

	store := &fakeStore{claimErr: contractx.ErrConflict}
	p := newTestPipeline(t, store, newFakeBlobs(), &fakeGateway{})

	if err := p.Extract(context.Background(), "e-1"); !errors.Is(err, contractx.ErrConflict) {
		t.Fatalf("Extract() error = %v, want ErrConflict", err)
	}
}

func TestExtractGatewayFailureMarksFailed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		engagement: &contractx.Engagement{ID: "e-1"},
		docs: []*contractx.EngagementDocument{
			{ID: "doc-1", EngagementID: "e-1", Filename: "notes.txt", ContentType: "text/plain", BlobKey: "k1"},
		},
	}
	blobs := newFakeBlobs()
	blobs.data["k1"] = []byte("meeting notes")
	gw := &fakeGateway{err: contractx.ErrGateway}
	p := newTestPipeline(t, store, blobs, gw)

	if err := p.Extract(context.Background(), "e-1"); err != nil {
		t.Fatalf("Extract() error = %v, extraction failures must stay in the background", err)
	}
	if store.finishedStatus != contractx.DocumentFailed {
		t.Fatalf("final status = %q, want failed", store.finishedStatus)
	}
	if store.finishedError == "" {
		t.Fatal("failure message must be recorded")
	}
}

func TestExtractMissingBlobMarksFailed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		engagement: &contractx.Engagement{ID: "e-1"},
		docs: []*contractx.EngagementDocument{
			{ID: "doc-1", EngagementID: "e-1", Filename: "notes.txt", ContentType: "text/plain", BlobKey: "gone"},
		},
	}
	p := newTestPipeline(t, store, newFakeBlobs(), &fakeGateway{})

	if err := p.Extract(context.Background(), "e-1"); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if store.finishedStatus != contractx.DocumentFailed {
		t.Fatalf("final status = %q, want failed", store.finishedStatus)
	}
}
