package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Crisjan0/enrollment-portal-api/pkg/config"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

func TestUploadPolicySaveDocument(t *testing.T) {
	store := &fakeFileStore{}
	policy := newTestUploadPolicy(store)

	ref, err := policy.SaveDocument(makeFileHeader(t, "birth.pdf", pdfContent), "user-1", "birth_certificate")
	require.NoError(t, err)
	assert.Equal(t, "birth.pdf", ref.OriginalName)
	assert.Equal(t, "application/pdf", ref.MIME)
	assert.Equal(t, "birth_certificate", ref.Type)
	assert.Contains(t, ref.StoredName, "enrollment_applications/")
	assert.Len(t, store.saved, 1)
}

func TestUploadPolicyRejectsUndeclaredType(t *testing.T) {
	policy := newTestUploadPolicy(&fakeFileStore{})

	// Plain text is not on the allow list regardless of the file extension.
	_, err := policy.SaveDocument(makeFileHeader(t, "notes.pdf", []byte("just some text")), "user-1", "birth_certificate")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUploadPolicyRejectsOversizedFile(t *testing.T) {
	store := &fakeFileStore{}
	policy := NewUploadPolicy(store, config.UploadsConfig{
		MaxDocumentBytes: 8,
		MaxProofBytes:    8,
		AllowedMIMEs:     []string{"application/pdf"},
		DocumentSubdir:   "enrollment_applications",
		PaymentSubdir:    "payments",
	})

	_, err := policy.SaveDocument(makeFileHeader(t, "birth.pdf", pdfContent), "user-1", "birth_certificate")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}

func TestUploadPolicySaveProofUsesPaymentSubdir(t *testing.T) {
	store := &fakeFileStore{}
	policy := newTestUploadPolicy(store)

	ref, err := policy.SaveProof(makeFileHeader(t, "proof.pdf", pdfContent), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "payment_proof", ref.Type)
	assert.Contains(t, ref.StoredName, "payments/")
}
