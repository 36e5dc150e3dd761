package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"car_scrooper/config"
)

type fakePutter struct {
	objects map[string]string
	types   map[string]string
	failOn  string
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.failOn {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = string(data)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher_PublishDir(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{"cars.json": "{}", "offers.html": "<html></html>"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	putter := &fakePutter{objects: map[string]string{}, types: map[string]string{}}
	pub := &S3Publisher{client: putter, cfg: config.S3Config{Bucket: "reports", Prefix: "/crawl_reports/"}}

	keys, err := pub.PublishDir(context.Background(), "otomoto", dir, []string{"cars.json", "offers.html"})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "crawl_reports/otomoto/cars.json" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if putter.objects["crawl_reports/otomoto/offers.html"] != "<html></html>" {
		t.Fatalf("unexpected uploaded body %q", putter.objects["crawl_reports/otomoto/offers.html"])
	}
	if putter.types["crawl_reports/otomoto/cars.json"] != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", putter.types["crawl_reports/otomoto/cars.json"])
	}
}

func TestS3Publisher_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.json", "c.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	putter := &fakePutter{objects: map[string]string{}, types: map[string]string{}, failOn: "otomoto/b.json"}
	pub := &S3Publisher{client: putter, cfg: config.S3Config{Bucket: "reports"}}

	keys, err := pub.PublishDir(context.Background(), "otomoto", dir, []string{"a.json", "b.json", "c.json"})
	if err == nil {
		t.Fatalf("expected upload error")
	}
	if len(keys) != 1 || len(putter.objects) != 1 {
		t.Fatalf("expected to stop after first upload, got keys %v", keys)
	}
}

func TestS3Publisher_PublicURL(t *testing.T) {
	tests := []struct {
		cfg  config.S3Config
		want string
	}{
		{config.S3Config{Bucket: "b", Region: "eu-central-1"}, "https://b.s3.eu-central-1.amazonaws.com/k"},
		{config.S3Config{Bucket: "b", Endpoint: "https://fra1.digitaloceanspaces.com"}, "https://b.fra1.digitaloceanspaces.com/k"},
		{config.S3Config{Bucket: "b", Endpoint: "http://localhost:9000/"}, "http://localhost:9000/b/k"},
	}
	for _, tt := range tests {
		pub := &S3Publisher{cfg: tt.cfg}
		if got := pub.PublicURL("k"); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}
