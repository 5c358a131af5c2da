package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/storage"
)

var (
	pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	zipHeader = []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")
)

type fakeStore struct {
	calls       int
	dest        storage.Destination
	filename    string
	size        int64
	contentType string
	err         error
}

func (f *fakeStore) Upload(_ context.Context, dest storage.Destination, filename string, body io.Reader, size int64, contentType string) (string, error) {
	f.calls++
	f.dest, f.filename, f.size, f.contentType = dest, filename, size, contentType
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.accp.example/" + string(dest) + "/01H-" + filename, nil
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	require.NoError(t, mw.WriteField("note", "ignored"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, store *fakeStore, path, field, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h := NewHandler(NewService(store, DefaultMaxFileSize))
	if path == "/upload/abstract" {
		h.Abstract(rec, req)
	} else {
		h.VerifyDoc(rec, req)
	}
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestUpload_PDFSucceeds(t *testing.T) {
	store := &fakeStore{}

	rec := doUpload(t, store, "/upload/verify-doc", "file", "card.pdf", "application/pdf", pdfHeader)

	require.Equal(t, http.StatusOK, rec.Code)
	var res Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "card.pdf", res.Filename)
	assert.Equal(t, "https://cdn.accp.example/verification/01H-card.pdf", res.URL)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, storage.DestinationVerification, store.dest)
	assert.Equal(t, int64(len(pdfHeader)), store.size)
	assert.Equal(t, "application/pdf", store.contentType)
}

func TestUpload_AbstractDestination(t *testing.T) {
	store := &fakeStore{}

	rec := doUpload(t, store, "/upload/abstract", "file", "poster.png", "image/png", pngHeader)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.DestinationAbstract, store.dest)
	assert.Equal(t, "image/png", store.contentType)
}

func TestUpload_ZipRejectedWithoutStorageCall(t *testing.T) {
	store := &fakeStore{}

	rec := doUpload(t, store, "/upload/verify-doc", "file", "docs.zip", "application/zip", zipHeader)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeInvalidFileType, errorBody(t, rec).Code)
	assert.Equal(t, 0, store.calls)
}

func TestUpload_RenamedZipRejectedBySniffing(t *testing.T) {
	store := &fakeStore{}

	rec := doUpload(t, store, "/upload/verify-doc", "file", "docs.pdf", "application/pdf", zipHeader)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidType, errorBody(t, rec).Error)
	assert.Equal(t, 0, store.calls)
}

func TestUpload_TooLarge(t *testing.T) {
	store := &fakeStore{}
	content := make([]byte, DefaultMaxFileSize+1)
	copy(content, pdfHeader)

	rec := doUpload(t, store, "/upload/verify-doc", "file", "big.pdf", "application/pdf", content)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, httputil.CodeFileTooLarge, body.Code)
	assert.Equal(t, msgTooLarge, body.Error)
	assert.Equal(t, 0, store.calls)
}

func TestUpload_ExactlyAtLimitAccepted(t *testing.T) {
	store := &fakeStore{}
	content := make([]byte, DefaultMaxFileSize)
	copy(content, pdfHeader)

	rec := doUpload(t, store, "/upload/verify-doc", "file", "max.pdf", "application/pdf", content)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultMaxFileSize, store.size)
}

func TestUpload_MissingFile(t *testing.T) {
	store := &fakeStore{}

	rec := doUpload(t, store, "/upload/verify-doc", "document", "card.pdf", "application/pdf", pdfHeader)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgMissingFile, errorBody(t, rec).Error)
	assert.Equal(t, 0, store.calls)
}

func TestUpload_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload/verify-doc", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	NewHandler(NewService(&fakeStore{}, 0)).VerifyDoc(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeMissingFile, errorBody(t, rec).Code)
}

func TestUpload_StorageErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
		msg  string
	}{
		{"not configured", &storage.ConfigError{Setting: "STORAGE_BUCKET"}, httputil.CodeStorageNotConfigured, msgNotConfigured},
		{"folder not configured", &storage.ConfigError{Setting: "STORAGE_VERIFICATION_FOLDER", Folder: true}, httputil.CodeStorageFolderNotConfigured, msgFolderNotConfigured},
		{"generic", errors.New("s3 put object: AccessDenied"), httputil.CodeUploadFailed, msgUploadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{err: tc.err}

			rec := doUpload(t, store, "/upload/verify-doc", "file", "card.pdf", "application/pdf", pdfHeader)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "STORAGE_")
			body := errorBody(t, rec)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.msg, body.Error)
		})
	}
}

func TestAllowed(t *testing.T) {
	assert.True(t, allowed("application/pdf"))
	assert.True(t, allowed("IMAGE/JPEG"))
	assert.True(t, allowed("image/jpg"))
	assert.True(t, allowed("image/png; charset=binary"))
	assert.False(t, allowed("application/zip"))
	assert.False(t, allowed(""))
}

func TestService_ReadsNoMoreThanLimitPlusOne(t *testing.T) {
	svc := NewService(&fakeStore{}, 16)
	src := &countingReader{r: bytes.NewReader(append(append([]byte{}, pdfHeader...), make([]byte, 1<<20)...))}

	_, err := svc.Upload(context.Background(), storage.DestinationVerification, "a.pdf", "application/pdf", src)

	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.LessOrEqual(t, src.n, int64(17))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
