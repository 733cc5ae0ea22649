package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeS3 struct {
	key   string
	body  []byte
	ctype string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.ctype = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresign struct {
	err error
}

func (f fakePresign) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + aws.ToString(in.Key)}, nil
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip-final-1-abc123.mp4")
	if err := os.WriteFile(path, []byte("moov"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPublish(t *testing.T) {
	api := &fakeS3{}
	p := newS3Publisher(api, fakePresign{}, "reels", "outputs", quietLogger())

	url, err := p.Publish(context.Background(), writeArtifact(t))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if api.key != "outputs/clip-final-1-abc123.mp4" {
		t.Errorf("key = %q", api.key)
	}
	if string(api.body) != "moov" || api.ctype != "video/mp4" {
		t.Errorf("uploaded %q as %q", api.body, api.ctype)
	}
	if url != "https://signed.example/outputs/clip-final-1-abc123.mp4" {
		t.Errorf("url = %q", url)
	}
}

func TestPublish_PresignFallback(t *testing.T) {
	p := newS3Publisher(&fakeS3{}, fakePresign{err: errors.New("no creds")}, "reels", "", quietLogger())
	url, err := p.Publish(context.Background(), writeArtifact(t))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if url != "s3://reels/clip-final-1-abc123.mp4" {
		t.Errorf("url = %q", url)
	}
}

func TestPublish_UploadError(t *testing.T) {
	p := newS3Publisher(&fakeS3{err: errors.New("403")}, fakePresign{}, "reels", "x/", quietLogger())
	if _, err := p.Publish(context.Background(), writeArtifact(t)); err == nil {
		t.Fatal("expected upload error")
	}
}
