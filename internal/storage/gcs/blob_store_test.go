package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "thumbs", PublicBaseURL: "https://cdn.example/"})
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPublicBaseURL, store.baseURL)
}

func TestPutObjectUploadsAndReturnsPublicURL(t *testing.T) {
	t.Parallel()

	var (
		gotName string
		gotBody string
	)
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprintln(w, `{"name":"content-00000001/thumbnail.jpg","bucket":"thumbs"}`)
	}))

	url, err := store.PutObject(context.Background(), "content-00000001/thumbnail.jpg", "image/jpeg",
		bytes.NewReader([]byte("jpeg-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/thumbs/content-00000001/thumbnail.jpg", url)
	assert.Equal(t, "content-00000001/thumbnail.jpg", gotName)
	assert.Contains(t, gotBody, "jpeg-bytes")
	assert.Contains(t, gotBody, "image/jpeg")
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := store.PutObject(context.Background(), "", "image/png", strings.NewReader("x"))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "logo.png", "image/png", strings.NewReader("x"))
	require.Error(t, err)
}

func TestDeleteObject(t *testing.T) {
	t.Parallel()

	var method, path string
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, store.DeleteObject(context.Background(), "chatgpt.png"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Contains(t, path, "/b/thumbs/o/chatgpt.png")
}

func TestDeleteMissingObjectIsNotAnError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"error":{"code":404,"message":"No such object"}}`)
	}))

	require.NoError(t, store.DeleteObject(context.Background(), "gone.png"))
}
