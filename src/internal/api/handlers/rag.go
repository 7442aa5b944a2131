package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/services"
)

// RagHandler serves the document Q&A proxy: PDF upload, questions, and
// document removal.
type RagHandler struct {
	rag *services.RagService
}

func NewRagHandler(rag *services.RagService) *RagHandler {
	return &RagHandler{rag: rag}
}

// Upload stores a PDF's ownership row and forwards the file to the document
// service. The row is rolled back when indexing fails.
func (h *RagHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.BadRequest("A PDF file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.Internal("Failed to read uploaded file", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return apperrors.Internal("Failed to read uploaded file", err)
	}

	result, err := h.rag.Upload(c.Request().Context(), auth.CurrentUser(c), fileHeader.Filename, content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// AskRequest asks a question about uploaded documents. doc_id 0 scopes the
// question to every document the caller may read.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	DocID    int64  `json:"doc_id"`
}

// Ask answers a question from the caller's indexed documents.
func (h *RagHandler) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}

	answer, err := h.rag.Ask(c.Request().Context(), auth.CurrentUser(c), req.Question, req.TopK, req.DocID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

// Delete removes a document from the vector store and the database. The
// uploader or staff.
func (h *RagHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.rag.Delete(c.Request().Context(), auth.CurrentUser(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
