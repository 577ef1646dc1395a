package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dish-journal/internal/config"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
)

func TestImageName(t *testing.T) {
	t.Parallel()

	name := ImageName(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), 2)
	assert.Regexp(t, regexp.MustCompile(`^240305_143000_dish2_[0-9a-f]{8}\.jpg$`), name)
	assert.NotEqual(t, name, ImageName(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), 2))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir(), "images")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Save(ctx, "a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/images/a.jpg", url)

	data, err := store.Load(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, store.Delete(ctx, url))
	_, err = store.Load(ctx, url)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.NoError(t, store.Delete(ctx, url), "deleting a missing image is not an error")
}

func TestLocalStoreRejectsForeignPaths(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir(), "/images/")
	require.NoError(t, err)

	for _, url := range []string{"/images/../secret", "/other/a.jpg", "/images/", "https://cdn/a.jpg"} {
		_, err := store.Load(context.Background(), url)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), url)
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	t.Parallel()

	api := newFakeS3()
	store := newS3Store(api, "bucket", "https://cdn.example.com")
	ctx := context.Background()

	url, err := store.Save(ctx, "a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/dishes/a.jpg", url)
	assert.Equal(t, "image/jpeg", api.types["dishes/a.jpg"])

	data, err := store.Load(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, store.Delete(ctx, url))
	_, err = store.Load(ctx, url)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = store.Load(ctx, "https://elsewhere.example.com/dishes/a.jpg")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

type failingS3 struct{ fakeS3 }

func (*failingS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("access denied")
}

func TestS3StoreSaveFailureIsExternal(t *testing.T) {
	t.Parallel()

	store := newS3Store(&failingS3{}, "bucket", "https://cdn.example.com")
	_, err := store.Save(context.Background(), "a.jpg", []byte("x"), "image/jpeg")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	store, err := New(context.Background(), config.StorageConfig{Backend: "local", ImageDir: t.TempDir(), PublicPrefix: "/images"})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
