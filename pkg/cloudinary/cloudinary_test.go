package cloudinary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	params uploader.UploadParams
	result *uploader.UploadResult
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, _ interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestUploadKeepsDocumentsRaw(t *testing.T) {
	fake := &fakeUploader{result: &uploader.UploadResult{PublicID: "notes/abc.pdf", SecureURL: "https://res.example/notes/abc.pdf"}}
	storage := newStorage(fake, "/notes/", zerolog.Nop())

	url, err := storage.Upload(context.Background(), "abc.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "https://res.example/notes/abc.pdf", url)
	require.Equal(t, "raw", fake.params.ResourceType)
	require.Equal(t, "abc.pdf", fake.params.PublicID)
	require.Equal(t, "notes", fake.params.Folder)
}

func TestUploadStripsExtensionForImages(t *testing.T) {
	fake := &fakeUploader{result: &uploader.UploadResult{SecureURL: "https://res.example/img.png"}}
	storage := newStorage(fake, "", zerolog.Nop())

	_, err := storage.Upload(context.Background(), "diagram.PNG", strings.NewReader("png"))
	require.NoError(t, err)
	require.Equal(t, "image", fake.params.ResourceType)
	require.Equal(t, "diagram", fake.params.PublicID)
}

func TestUploadSurfacesErrors(t *testing.T) {
	storage := newStorage(&fakeUploader{err: errors.New("boom")}, "", zerolog.Nop())
	_, err := storage.Upload(context.Background(), "a.pdf", strings.NewReader("x"))
	require.ErrorContains(t, err, "boom")

	rejected := &fakeUploader{result: &uploader.UploadResult{Error: api.ErrorResp{Message: "invalid signature"}}}
	storage = newStorage(rejected, "", zerolog.Nop())
	_, err = storage.Upload(context.Background(), "a.pdf", strings.NewReader("x"))
	require.ErrorContains(t, err, "invalid signature")

	_, err = storage.Upload(context.Background(), " ", strings.NewReader("x"))
	require.Error(t, err)
}
