package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/ragproxy"
)

// DocumentIndex is the slice of the document microservice the service layer
// depends on. *ragproxy.Client satisfies it.
type DocumentIndex interface {
	Upload(ctx context.Context, filename string, content []byte, docID int64) (*ragproxy.UploadResult, error)
	Ask(ctx context.Context, question string, topK int, docIDs []int64) (*ragproxy.Answer, error)
	Delete(ctx context.Context, docID int64) error
}

const defaultAskTopK = 5

// RagService owns document ownership rows; chunking, embeddings, and
// answering live in the external index.
type RagService struct {
	db     *gorm.DB
	index  DocumentIndex
	logger *zap.Logger
}

func NewRagService(db *gorm.DB, index DocumentIndex, logger *zap.Logger) *RagService {
	return &RagService{db: db, index: index, logger: logger}
}

// available rejects calls when no index was configured.
func (s *RagService) available() error {
	if s.index == nil {
		return apperrors.Unavailable("RAG service is not configured")
	}
	return nil
}

// Upload records the document, ships it to the index, and stores the chunk
// count the index reports. The ownership row is rolled back when the index
// rejects the file, so a failed upload leaves no trace.
func (s *RagService) Upload(ctx context.Context, actor *models.User, filename string, content []byte) (*ragproxy.UploadResult, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, apperrors.BadRequest("Only PDF files are supported")
	}

	doc := models.RagDocument{Filename: filename, UserID: actor.ID}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, apperrors.Internal("Upload failed", err)
	}

	result, err := s.index.Upload(ctx, filename, content, doc.ID)
	if err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&models.RagDocument{}, doc.ID).Error; delErr != nil {
			s.logger.Error("failed to roll back document record",
				zap.Int64("document_id", doc.ID),
				zap.Error(delErr))
		}
		return nil, mapUploadErr(err)
	}

	if err := s.db.WithContext(ctx).Model(&doc).Update("chunk_count", result.ChunkCount).Error; err != nil {
		return nil, apperrors.Internal("Upload failed", err)
	}

	s.logger.Info("document indexed",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", result.ChunkCount),
		zap.Int64("user_id", actor.ID))
	return result, nil
}

// Ask answers a question over the caller's documents. docID zero means all
// documents the caller can see; a concrete docID scopes to that document
// after an access check.
func (s *RagService) Ask(ctx context.Context, actor *models.User, question string, topK int, docID int64) (*ragproxy.Answer, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.BadRequest("Question cannot be empty")
	}
	if topK <= 0 {
		topK = defaultAskTopK
	}

	var docIDs []int64
	if docID != 0 {
		var doc models.RagDocument
		err := s.db.WithContext(ctx).First(&doc, docID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperrors.Forbidden("You don't have access to this document")
		case err != nil:
			return nil, apperrors.Internal("Failed to answer question", err)
		}
		if !canAccessDocument(actor, &doc) {
			return nil, apperrors.Forbidden("You don't have access to this document")
		}
		docIDs = []int64{docID}
	} else {
		ids, err := s.visibleDocumentIDs(ctx, actor)
		if err != nil {
			return nil, apperrors.Internal("Failed to answer question", err)
		}
		if len(ids) == 0 {
			return nil, apperrors.New(http.StatusNotFound, "You haven't uploaded any documents yet")
		}
		docIDs = ids
	}

	answer, err := s.index.Ask(ctx, question, topK, docIDs)
	if err != nil {
		return nil, mapAskErr(err)
	}
	return answer, nil
}

// Delete removes a document the actor owns (staff may remove any). The
// vector store copy goes first, best effort; the ownership row is deleted
// regardless of the index outcome.
func (s *RagService) Delete(ctx context.Context, actor *models.User, docID int64) error {
	if err := s.available(); err != nil {
		return err
	}
	var doc models.RagDocument
	err := s.db.WithContext(ctx).First(&doc, docID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound("Document")
	case err != nil:
		return apperrors.Internal("Failed to delete document", err)
	}
	if !canAccessDocument(actor, &doc) {
		return apperrors.Forbidden("You don't have permission to delete this document")
	}

	if err := s.index.Delete(ctx, docID); err != nil {
		s.logger.Warn("failed to delete document from rag service",
			zap.Int64("document_id", docID),
			zap.Error(err))
	}

	if err := s.db.WithContext(ctx).Delete(&models.RagDocument{}, docID).Error; err != nil {
		return apperrors.Internal("Failed to delete document from database", err)
	}
	return nil
}

// canAccessDocument: staff see every document, members only their own.
func canAccessDocument(actor *models.User, doc *models.RagDocument) bool {
	return actor.IsStaff() || doc.UserID == actor.ID
}

func (s *RagService) visibleDocumentIDs(ctx context.Context, actor *models.User) ([]int64, error) {
	q := s.db.WithContext(ctx).Model(&models.RagDocument{})
	if !actor.IsStaff() {
		q = q.Where("user_id = ?", actor.ID)
	}
	var ids []int64
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func mapUploadErr(err error) error {
	var statusErr *ragproxy.StatusError
	switch {
	case errors.Is(err, ragproxy.ErrBusy):
		return apperrors.Unavailable("RAG service is busy or timed out. Try a smaller PDF.")
	case errors.Is(err, ragproxy.ErrTimeout):
		return apperrors.New(http.StatusGatewayTimeout, "RAG service request timed out. The document may be too large.")
	case errors.As(err, &statusErr):
		return apperrors.New(statusErr.Code, statusErr.Error())
	default:
		return apperrors.Internal("Upload failed", err)
	}
}

func mapAskErr(err error) error {
	var statusErr *ragproxy.StatusError
	switch {
	case errors.Is(err, ragproxy.ErrNoDocuments):
		return apperrors.New(http.StatusNotFound, "No documents found. Upload documents first.")
	case errors.Is(err, ragproxy.ErrTimeout):
		return apperrors.New(http.StatusGatewayTimeout, "RAG service request timed out")
	case errors.As(err, &statusErr):
		return apperrors.New(statusErr.Code, statusErr.Error())
	default:
		return apperrors.Internal("Failed to answer question", err)
	}
}
