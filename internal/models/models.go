// Package models defines the message contracts exchanged between pipeline
// stages over the broker, plus their JSON wire encoding.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TelegramDocument is the message minted by the chat listener for every
// chat attachment worth downloading.
type TelegramDocument struct {
	JobID      uuid.UUID `json:"job_id"`
	DocID      int64     `json:"doc_id"`
	ChatID     int64     `json:"chat_id"`
	MessageID  int       `json:"message_id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Timestamp  time.Time `json:"timestamp"`
	ChannelURL string    `json:"channel_url,omitempty"`
}

// DownloadedFile is proof of successful retrieval to local, content-addressed
// storage.
type DownloadedFile struct {
	JobID       uuid.UUID        `json:"job_id"`
	DocID       int64            `json:"doc_id"`
	SHA256      string           `json:"sha256"`
	StoragePath string           `json:"storage_path"`
	SizeBytes   int64            `json:"size_bytes"`
	MimeType    string           `json:"mime_type"`
	Extractable bool             `json:"extractable"`
	Original    TelegramDocument `json:"original"`
}

// ExtractedFile is one file produced by archive extraction: a leaf, or a
// nested archive that is itself extracted in turn.
type ExtractedFile struct {
	JobID        uuid.UUID `json:"job_id"`
	ParentSHA256 string    `json:"parent_sha256"`
	SHA256       string    `json:"sha256"`
	StoragePath  string    `json:"storage_path"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mime_type"`
	Depth        int       `json:"depth"`
}

// IOCMatch is one pattern hit found while scanning a file.
type IOCMatch struct {
	JobID      uuid.UUID `json:"job_id"`
	FileSHA256 string    `json:"file_sha256"`
	FilePath   string    `json:"file_path"`
	IOCType    string    `json:"ioc_type"`
	Value      string    `json:"value"`
	Context    string    `json:"context"`
	LineNumber int       `json:"line_number"`
}

// DefaultMimeType is used for extracted files when the type cannot be
// inferred from content or extension.
const DefaultMimeType = "application/octet-stream"
