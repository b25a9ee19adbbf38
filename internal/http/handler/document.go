package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"taxdocs/internal/http/middleware"
	"taxdocs/internal/model"
	"taxdocs/internal/repository"
	"taxdocs/internal/service"
)

type uploadResponse struct {
	Message    string `json:"message"`
	DocumentID int64  `json:"documentId"`
	Filename   string `json:"filename"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type documentResponse struct {
	ID         int64              `json:"id"`
	FileName   string             `json:"fileName"`
	FileType   model.DocumentType `json:"fileType"`
	Year       string             `json:"year"`
	UploadDate time.Time          `json:"uploadDate"`
	FileURL    string             `json:"fileUrl"`
	FileSize   int64              `json:"fileSize"`
	MimeType   string             `json:"mimeType"`
}

type adminDocumentResponse struct {
	documentResponse
	UserID    int64  `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

func downloadURL(id int64) string {
	return "/documents/download/" + strconv.FormatInt(id, 10)
}

func toDocumentResponse(d model.Document) documentResponse {
	return documentResponse{
		ID:         d.ID,
		FileName:   d.OriginalName,
		FileType:   d.DocumentType,
		Year:       d.AssessmentYear,
		UploadDate: d.UploadedAt,
		FileURL:    downloadURL(d.ID),
		FileSize:   d.Size,
		MimeType:   d.MimeType,
	}
}

// caller returns the identity stored by the auth middleware. Routes without it are a wiring bug.
func caller(c *fiber.Ctx) (model.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return model.Identity{}, fiber.NewError(fiber.StatusUnauthorized, "access token required")
	}
	return id, nil
}

func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// UploadDocument accepts one multipart file with its document type and assessment year.
//
// @Summary Upload a tax document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "PDF, JPEG or PNG, at most 5 MiB"
// @Param documentType formData string true "aadhar, pan, form16 or other"
// @Param year formData string true "Assessment year, four digits"
// @Success 201 {object} uploadResponse
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 415 {object} errorPayload
// @Router /documents/upload [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), id, service.UploadInput{
			Reader:       f,
			Filename:     fh.Filename,
			MimeType:     fh.Header.Get(fiber.HeaderContentType),
			Size:         fh.Size,
			DocumentType: model.DocumentType(strings.TrimSpace(c.FormValue("documentType"))),
			Year:         strings.TrimSpace(c.FormValue("year")),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{
			Message:    "Document uploaded successfully",
			DocumentID: doc.ID,
			Filename:   doc.OriginalName,
		})
	}
}

// ListMyDocuments returns the caller's documents, newest first.
//
// @Summary List own documents
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Success 200 {array} documentResponse
// @Router /documents/my-documents [get]
func ListMyDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}

		docs, err := docSvc.ListOwn(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}

		res := make([]documentResponse, 0, len(docs))
		for _, d := range docs {
			res = append(res, toDocumentResponse(d))
		}
		return c.JSON(res)
	}
}

// DownloadDocument streams one of the caller's documents as an attachment.
//
// @Summary Download own document
// @Tags documents
// @Produce application/octet-stream
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {file} file
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/download/{id} [get]
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		docID, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		dl, err := docSvc.Download(c.UserContext(), id, docID)
		if err != nil {
			return writeServiceError(c, err)
		}

		contentType := dl.Document.MimeType
		if contentType == "" {
			contentType = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderContentDisposition, contentDisposition(dl.Document.OriginalName))
		c.Set("X-Content-Type-Options", "nosniff")
		// fasthttp closes the body once it has been written out.
		return c.SendStream(dl.Body, int(dl.Size))
	}
}

// DeleteDocument removes one of the caller's documents.
//
// @Summary Delete own document
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} messageResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		docID, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := docSvc.Delete(c.UserContext(), id, docID); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(messageResponse{Message: "Document deleted successfully"})
	}
}

// AdminListDocuments lists every client's documents with owner details.
//
// @Summary List all documents
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Owner name, email or file name"
// @Param year query string false "Assessment year"
// @Param type query string false "Document type"
// @Success 200 {array} adminDocumentResponse
// @Failure 403 {object} errorPayload
// @Router /admin/documents [get]
func AdminListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}

		items, err := docSvc.ListAll(c.UserContext(), id, repository.AdminFilter{
			Search:       c.Query("search"),
			Year:         strings.TrimSpace(c.Query("year")),
			DocumentType: model.DocumentType(strings.TrimSpace(c.Query("type"))),
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		res := make([]adminDocumentResponse, 0, len(items))
		for _, it := range items {
			res = append(res, adminDocumentResponse{
				documentResponse: toDocumentResponse(it.Document),
				UserID:           it.Owner.ID,
				UserName:         it.Owner.DisplayName(),
				UserEmail:        it.Owner.Email,
			})
		}
		return c.JSON(res)
	}
}
