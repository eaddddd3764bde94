package service

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/pkg/config"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

type fileStore interface {
	StoredName(subdir, userID, originalName string) string
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// UploadPolicy validates and stores multipart uploads. The declared
// Content-Type header is ignored; the type is sniffed from the content.
type UploadPolicy struct {
	store fileStore
	cfg   config.UploadsConfig
}

// NewUploadPolicy constructs an UploadPolicy.
func NewUploadPolicy(store fileStore, cfg config.UploadsConfig) *UploadPolicy {
	return &UploadPolicy{store: store, cfg: cfg}
}

// SaveDocument stores an application document and returns its file reference.
func (p *UploadPolicy) SaveDocument(header *multipart.FileHeader, userID, fileType string) (*models.FileRef, error) {
	return p.save(header, userID, fileType, p.cfg.DocumentSubdir, p.cfg.MaxDocumentBytes)
}

// SaveProof stores a payment proof and returns its file reference.
func (p *UploadPolicy) SaveProof(header *multipart.FileHeader, userID string) (*models.FileRef, error) {
	return p.save(header, userID, "payment_proof", p.cfg.PaymentSubdir, p.cfg.MaxProofBytes)
}

// Remove deletes a stored upload, tolerating files that are already gone.
func (p *UploadPolicy) Remove(storedName string) error {
	return p.store.Delete(storedName)
}

func (p *UploadPolicy) save(header *multipart.FileHeader, userID, fileType, subdir string, maxBytes int64) (*models.FileRef, error) {
	if header.Size > maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file %s exceeds the %d byte limit", header.Filename, maxBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open upload")
	}
	defer file.Close() //nolint:errcheck

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to inspect upload")
	}
	if !p.allowed(detected) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file %s has unsupported type %s", header.Filename, detected.String()))
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewind upload")
	}

	storedName := p.store.StoredName(subdir, userID, header.Filename)
	if _, err := p.store.SaveStream(storedName, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to store upload")
	}

	return &models.FileRef{
		OriginalName: header.Filename,
		StoredName:   storedName,
		MIME:         detected.String(),
		Size:         header.Size,
		Type:         fileType,
	}, nil
}

func (p *UploadPolicy) allowed(detected *mimetype.MIME) bool {
	for _, mime := range p.cfg.AllowedMIMEs {
		if detected.Is(mime) {
			return true
		}
	}
	return false
}
