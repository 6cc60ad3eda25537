package utils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveStore_PutJSON(t *testing.T) {
	putter := &fakePutter{}
	store := NewArchiveStore(putter, "quest-archive")

	err := store.PutJSON(context.Background(), "quest-history/user-1/2025-07-07.json", map[string]any{"user_id": "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "quest-archive", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "quest-history/user-1/2025-07-07.json", aws.ToString(putter.input.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))

	var doc map[string]string
	require.NoError(t, json.Unmarshal(putter.body, &doc))
	assert.Equal(t, "user-1", doc["user_id"])
}

func TestArchiveStore_PutJSONErrors(t *testing.T) {
	store := NewArchiveStore(&fakePutter{err: errors.New("access denied")}, "b")
	err := store.PutJSON(context.Background(), "k", map[string]any{})
	assert.ErrorContains(t, err, "access denied")

	err = NewArchiveStore(&fakePutter{}, "b").PutJSON(context.Background(), "k", make(chan int))
	assert.ErrorContains(t, err, "encode k")
}

func TestR2Config_Enabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.False(t, R2Config{AccountID: "a", AccessKeyID: "k", AccessKeySecret: "s"}.Enabled())
	assert.True(t, R2Config{AccountID: "a", AccessKeyID: "k", AccessKeySecret: "s", Bucket: "b"}.Enabled())
}
