package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateContentType(t *testing.T) {
	require.NoError(t, ValidateContentType("image/jpeg"))
	require.NoError(t, ValidateContentType("IMAGE/PNG; charset=binary"))
	require.Error(t, ValidateContentType("application/pdf"))
	require.Error(t, ValidateContentType("image/svg+xml"))
	require.NoError(t, ValidateContentType("image/webp"))
	require.Error(t, ValidateContentType("image/heic"))
}

func TestValidateFileSize(t *testing.T) {
	require.Error(t, ValidateFileSize(0, 10))
	require.NoError(t, ValidateFileSize(10, 10))
	require.Error(t, ValidateFileSize(11, 10))
}

func TestObjectKeyIsUniquePerCall(t *testing.T) {
	a := ObjectKey("assessments/x/pickup", "front", "image/jpeg")
	b := ObjectKey("assessments/x/pickup", "front", "image/jpeg")

	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "assessments/x/pickup/front_"))
	require.True(t, strings.HasSuffix(a, ".jpg"))
	require.Len(t, strings.TrimSuffix(strings.TrimPrefix(a, "assessments/x/pickup/front_"), ".jpg"), 8)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k", "image/png", strings.NewReader("pixels"), 6))
	rc, err := store.Open(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "pixels", string(data))

	url, err := store.PresignGet(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "k", url.FileKey)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Open(ctx, "k")
	require.True(t, errors.Is(err, ErrObjectNotFound))
	require.NoError(t, store.Delete(ctx, "k"))
}
