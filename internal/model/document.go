package model

import "time"

// DocumentType is the closed set of tax document categories a client can upload.
type DocumentType string

const (
	DocumentTypeAadhar DocumentType = "aadhar"
	DocumentTypePAN    DocumentType = "pan"
	DocumentTypeForm16 DocumentType = "form16"
	DocumentTypeOther  DocumentType = "other"
)

// Valid reports whether t is one of the known categories.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeAadhar, DocumentTypePAN, DocumentTypeForm16, DocumentTypeOther:
		return true
	}
	return false
}

// Document represents an uploaded file owned by exactly one user.
// This is a pure domain model with no database-specific dependencies or tags.
// All fields are immutable once the record is created.
type Document struct {
	ID             int64        `json:"id"`
	OwnerID        int64        `json:"owner_id"`
	StorageKey     string       `json:"storage_key"`
	OriginalName   string       `json:"original_name"`
	StoragePath    string       `json:"storage_path"`
	Size           int64        `json:"size"`
	MimeType       string       `json:"mime_type"`
	DocumentType   DocumentType `json:"document_type"`
	AssessmentYear string       `json:"assessment_year"`
	UploadedAt     time.Time    `json:"uploaded_at"`
}

// OwnerSummary carries the owner display fields shown in the admin listing.
type OwnerSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// DisplayName joins first and last name, skipping empty parts.
func (o OwnerSummary) DisplayName() string {
	switch {
	case o.FirstName == "":
		return o.LastName
	case o.LastName == "":
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}

// DocumentWithOwner pairs a document with its owner for cross-user oversight.
type DocumentWithOwner struct {
	Document
	Owner OwnerSummary `json:"owner"`
}
