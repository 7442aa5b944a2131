package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
	"github.com/bookhive/bookhive/src/internal/ragproxy"
)

type stubIndex struct {
	uploadDocs [][]int64
	askDocs    [][]int64
	askTopK    []int
	deleted    []int64

	uploadErr error
	askErr    error
	deleteErr error
	chunks    int
}

func (s *stubIndex) Upload(_ context.Context, _ string, _ []byte, docID int64) (*ragproxy.UploadResult, error) {
	s.uploadDocs = append(s.uploadDocs, []int64{docID})
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	chunks := s.chunks
	if chunks == 0 {
		chunks = 9
	}
	return &ragproxy.UploadResult{DocumentID: docID, ChunkCount: chunks}, nil
}

func (s *stubIndex) Ask(_ context.Context, _ string, topK int, docIDs []int64) (*ragproxy.Answer, error) {
	s.askDocs = append(s.askDocs, docIDs)
	s.askTopK = append(s.askTopK, topK)
	if s.askErr != nil {
		return nil, s.askErr
	}
	return &ragproxy.Answer{Answer: "stub answer", Context: []ragproxy.RetrievedChunk{}}, nil
}

func (s *stubIndex) Delete(_ context.Context, docID int64) error {
	s.deleted = append(s.deleted, docID)
	return s.deleteErr
}

func newTestRagService(db *gorm.DB, index *stubIndex) *RagService {
	return NewRagService(db, index, zap.NewNop())
}

func seedRagDoc(t *testing.T, db *gorm.DB, userID int64, filename string) *models.RagDocument {
	t.Helper()
	doc := &models.RagDocument{Filename: filename, ChunkCount: 3, UserID: userID}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func countRagDocs(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.RagDocument{}).Count(&n).Error)
	return n
}

func TestRagService(t *testing.T) {
	ctx := context.Background()

	t.Run("UploadStoresChunkCount", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		index := &stubIndex{chunks: 12}
		svc := newTestRagService(db, index)

		result, err := svc.Upload(ctx, member, "thesis.pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)
		assert.Equal(t, 12, result.ChunkCount)

		var doc models.RagDocument
		require.NoError(t, db.First(&doc, result.DocumentID).Error)
		assert.Equal(t, "thesis.pdf", doc.Filename)
		assert.Equal(t, 12, doc.ChunkCount)
		assert.Equal(t, member.ID, doc.UserID)
		require.Len(t, index.uploadDocs, 1)
		assert.Equal(t, doc.ID, index.uploadDocs[0][0])
	})

	t.Run("UploadRejectsNonPDF", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		index := &stubIndex{}
		svc := newTestRagService(db, index)

		_, err := svc.Upload(ctx, member, "notes.txt", []byte("plain text"))
		requireAppError(t, err, http.StatusBadRequest, "Only PDF files are supported")
		assert.Empty(t, index.uploadDocs)
		assert.Zero(t, countRagDocs(t, db))
	})

	t.Run("UploadRollsBackOnIndexFailure", func(t *testing.T) {
		cases := []struct {
			name       string
			indexErr   error
			wantStatus int
			wantMsg    string
		}{
			{"Busy", ragproxy.ErrBusy, http.StatusServiceUnavailable,
				"RAG service is busy or timed out. Try a smaller PDF."},
			{"Timeout", ragproxy.ErrTimeout, http.StatusGatewayTimeout,
				"RAG service request timed out. The document may be too large."},
			{"StatusPassThrough", &ragproxy.StatusError{Code: http.StatusUnprocessableEntity, Body: "corrupt pdf"},
				http.StatusUnprocessableEntity, "RAG service error: corrupt pdf"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				db := setupServicesTestDB(t)
				member := seedUser(t, db, "reader@example.com", models.RoleMember)
				svc := newTestRagService(db, &stubIndex{uploadErr: tc.indexErr})

				_, err := svc.Upload(ctx, member, "big.pdf", []byte("%PDF"))
				requireAppError(t, err, tc.wantStatus, tc.wantMsg)
				assert.Zero(t, countRagDocs(t, db), "failed upload must not leave a row behind")
			})
		}
	})

	t.Run("AskRequiresQuestion", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		svc := newTestRagService(db, &stubIndex{})

		_, err := svc.Ask(ctx, member, "   ", 5, 0)
		requireAppError(t, err, http.StatusBadRequest, "Question cannot be empty")
	})

	t.Run("AskScopesToOwnDocuments", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		other := seedUser(t, db, "other@example.com", models.RoleMember)
		mine1 := seedRagDoc(t, db, member.ID, "a.pdf")
		mine2 := seedRagDoc(t, db, member.ID, "b.pdf")
		seedRagDoc(t, db, other.ID, "theirs.pdf")

		index := &stubIndex{}
		svc := newTestRagService(db, index)

		answer, err := svc.Ask(ctx, member, "what is chapter 2 about?", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "stub answer", answer.Answer)
		require.Len(t, index.askDocs, 1)
		assert.Equal(t, []int64{mine1.ID, mine2.ID}, index.askDocs[0])
		assert.Equal(t, defaultAskTopK, index.askTopK[0])
	})

	t.Run("StaffSearchesAllDocuments", func(t *testing.T) {
		db := setupServicesTestDB(t)
		librarian := seedUser(t, db, "lib@example.com", models.RoleLibrarian)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		d1 := seedRagDoc(t, db, member.ID, "a.pdf")
		d2 := seedRagDoc(t, db, librarian.ID, "b.pdf")

		index := &stubIndex{}
		svc := newTestRagService(db, index)

		_, err := svc.Ask(ctx, librarian, "anything?", 3, 0)
		require.NoError(t, err)
		require.Len(t, index.askDocs, 1)
		assert.Equal(t, []int64{d1.ID, d2.ID}, index.askDocs[0])
		assert.Equal(t, 3, index.askTopK[0])
	})

	t.Run("AskSpecificDocumentAccess", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		other := seedUser(t, db, "other@example.com", models.RoleMember)
		librarian := seedUser(t, db, "lib@example.com", models.RoleLibrarian)
		theirs := seedRagDoc(t, db, other.ID, "theirs.pdf")

		index := &stubIndex{}
		svc := newTestRagService(db, index)

		_, err := svc.Ask(ctx, member, "what?", 5, theirs.ID)
		requireAppError(t, err, http.StatusForbidden, "You don't have access to this document")

		_, err = svc.Ask(ctx, member, "what?", 5, 9999)
		requireAppError(t, err, http.StatusForbidden, "You don't have access to this document")

		_, err = svc.Ask(ctx, librarian, "what?", 5, theirs.ID)
		require.NoError(t, err)
		require.Len(t, index.askDocs, 1)
		assert.Equal(t, []int64{theirs.ID}, index.askDocs[0])
	})

	t.Run("AskWithNoUploads", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		svc := newTestRagService(db, &stubIndex{})

		_, err := svc.Ask(ctx, member, "anything?", 5, 0)
		requireAppError(t, err, http.StatusNotFound, "You haven't uploaded any documents yet")
	})

	t.Run("AskMapsIndexErrors", func(t *testing.T) {
		cases := []struct {
			name       string
			indexErr   error
			wantStatus int
			wantMsg    string
		}{
			{"NothingIndexed", ragproxy.ErrNoDocuments, http.StatusNotFound,
				"No documents found. Upload documents first."},
			{"Timeout", ragproxy.ErrTimeout, http.StatusGatewayTimeout,
				"RAG service request timed out"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				db := setupServicesTestDB(t)
				member := seedUser(t, db, "reader@example.com", models.RoleMember)
				seedRagDoc(t, db, member.ID, "a.pdf")
				svc := newTestRagService(db, &stubIndex{askErr: tc.indexErr})

				_, err := svc.Ask(ctx, member, "anything?", 5, 0)
				requireAppError(t, err, tc.wantStatus, tc.wantMsg)
			})
		}
	})

	t.Run("DeleteOwnerOrStaff", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		other := seedUser(t, db, "other@example.com", models.RoleMember)
		librarian := seedUser(t, db, "lib@example.com", models.RoleLibrarian)
		mine := seedRagDoc(t, db, member.ID, "mine.pdf")
		theirs := seedRagDoc(t, db, other.ID, "theirs.pdf")

		index := &stubIndex{}
		svc := newTestRagService(db, index)

		err := svc.Delete(ctx, member, theirs.ID)
		requireAppError(t, err, http.StatusForbidden, "You don't have permission to delete this document")

		require.NoError(t, svc.Delete(ctx, member, mine.ID))
		assert.Equal(t, []int64{mine.ID}, index.deleted)
		assert.Equal(t, int64(1), countRagDocs(t, db))

		require.NoError(t, svc.Delete(ctx, librarian, theirs.ID))
		assert.Zero(t, countRagDocs(t, db))

		err = svc.Delete(ctx, librarian, theirs.ID)
		requireAppError(t, err, http.StatusNotFound, "Document not found")
	})

	t.Run("DeleteProceedsWhenIndexFails", func(t *testing.T) {
		db := setupServicesTestDB(t)
		member := seedUser(t, db, "reader@example.com", models.RoleMember)
		doc := seedRagDoc(t, db, member.ID, "mine.pdf")

		index := &stubIndex{deleteErr: &ragproxy.StatusError{Code: 500, Body: "index locked"}}
		svc := newTestRagService(db, index)

		require.NoError(t, svc.Delete(ctx, member, doc.ID))
		assert.Zero(t, countRagDocs(t, db), "ownership row goes away even when the index call fails")
	})
}
