package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"writer-backend/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.txt", want: "user/file.txt"},
		{name: "simple prefix", prefix: "exports", key: "user/file.txt", want: "exports/user/file.txt"},
		{name: "prefix trailing slash", prefix: "exports/", key: "user/file.txt", want: "exports/user/file.txt"},
		{name: "prefix and key slashes", prefix: "/exports/", key: "/user/file.txt", want: "exports/user/file.txt"},
		{name: "nested prefix", prefix: "exports/v1", key: "user/file.txt", want: "exports/v1/user/file.txt"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	body   string
	getErr error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	_ = ctx
	_ = optFns
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.put = params
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	_ = ctx
	_ = optFns
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestSaveUsesPrefixAndEncryption(t *testing.T) {
	client := &fakeS3{}
	store := NewWithClient(client, "bucket", "exports/", "kms-key")

	obj, err := store.Save(context.Background(), "user-1", "guide.html", "text/html; charset=utf-8", strings.NewReader("<h1>x</h1>"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(aws.ToString(client.put.Key), "exports/") {
		t.Fatalf("expected prefixed key, got %q", aws.ToString(client.put.Key))
	}
	if client.put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected kms encryption, got %q", client.put.ServerSideEncryption)
	}
	if obj.SizeBytes != int64(len("<h1>x</h1>")) {
		t.Fatalf("unexpected size %d", obj.SizeBytes)
	}
	if strings.HasPrefix(obj.Key, "exports/") {
		t.Fatalf("returned key must not include the bucket prefix: %q", obj.Key)
	}
}

func TestOpenMapsMissingKey(t *testing.T) {
	client := &fakeS3{getErr: &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}}
	store := NewWithClient(client, "bucket", "", "")

	_, err := store.Open(context.Background(), "abc/guide.html")
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
