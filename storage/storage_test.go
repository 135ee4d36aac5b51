package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{
			name:     "catalog load",
			filename: "catalog.json",
			data:     []byte(`{"version":"1","activities":[{"id":"via-ferrata","category":"adventure"}]}`),
		},
		{
			name:     "empty catalog",
			filename: "empty.json",
			data:     []byte(`{"activities":[]}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.filename)
			require.NoError(t, os.WriteFile(filePath, tt.data, 0o644))

			loaded, err := NewFileSource(filePath).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.data, loaded)
		})
	}

	t.Run("load nonexistent file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(tmpDir, "nonexistent.json")).Load(context.Background())
		assert.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	sink := NewFileSink(dir)

	require.NoError(t, sink.Save(context.Background(), "../escape.json", []byte(`{}`)))
	data, err := os.ReadFile(filepath.Join(dir, "escape.json"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3SourceAndSink(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"bucket/catalog.json": []byte(`{"activities":[]}`)}}

	data, err := NewS3Source(fake, "bucket", "catalog.json").Load(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"activities":[]}`, string(data))

	_, err = NewS3Source(fake, "bucket", "missing.json").Load(context.Background())
	assert.ErrorContains(t, err, "s3://bucket/missing.json")

	sink := NewS3Sink(fake, "bucket", "curations")
	require.NoError(t, sink.Save(context.Background(), "run-1.json", []byte(`{"ok":true}`)))
	assert.Equal(t, []byte(`{"ok":true}`), fake.objects["bucket/curations/run-1.json"])
}

func TestS3Sink_Error(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	err := NewS3Sink(fake, "bucket", "").Save(context.Background(), "x.json", nil)
	assert.ErrorContains(t, err, "access denied")
}

func TestTestSourceAndMemorySink(t *testing.T) {
	data, err := NewTestSource([]byte("x")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	_, err = NewTestSourceWithError().Load(context.Background())
	assert.Error(t, err)

	sink := NewMemorySink()
	require.NoError(t, sink.Save(context.Background(), "a", []byte("1")))
	assert.Equal(t, map[string][]byte{"a": []byte("1")}, sink.Saved())
}
