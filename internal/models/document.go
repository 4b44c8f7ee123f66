package models

import "time"

type DocumentMetadata struct {
	FileName  string `json:"file_name" bson:"file_name"`
	FileType  string `json:"file_type" bson:"file_type"`
	FileSize  int64  `json:"file_size" bson:"file_size"`
	PageCount *int   `json:"page_count" bson:"page_count"`
}

// Document is an uploaded file attached to a session. DocID is the hex
// SHA-256 of the raw bytes, so the same file always has the same id.
type Document struct {
	DocID      string           `json:"doc_id" bson:"doc_id"`
	Metadata   DocumentMetadata `json:"metadata" bson:"metadata"`
	StorageURL string           `json:"storage_url" bson:"storage_url"`
	UploadedAt time.Time        `json:"uploaded_at" bson:"uploaded_at"`
}

// Chunk metadata keys stored alongside every indexed vector.
const (
	MetaDocID      = "doc_id"
	MetaUserID     = "user_id"
	MetaSessionID  = "session_id"
	MetaChunkIndex = "chunk_index"
)
