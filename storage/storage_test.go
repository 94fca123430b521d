package storage

import "testing"

func TestBrowserStreamURL(t *testing.T) {
	got, err := BrowserStreamURL("http://minio:9000/videos/ab/cd.mp4?X-Amz-Signature=abc123")
	if err != nil {
		t.Fatalf("BrowserStreamURL returned error: %v", err)
	}
	want := "/storage/videos/ab/cd.mp4?X-Amz-Signature=abc123"
	if got != want {
		t.Fatalf("BrowserStreamURL = %q, want %q", got, want)
	}
}

func TestBrowserStreamURL_NoQuery(t *testing.T) {
	got, err := BrowserStreamURL("http://minio:9000/videos/key.webm")
	if err != nil {
		t.Fatalf("BrowserStreamURL returned error: %v", err)
	}
	if got != "/storage/videos/key.webm" {
		t.Fatalf("BrowserStreamURL = %q", got)
	}
}

func TestBrowserStreamURL_Invalid(t *testing.T) {
	if _, err := BrowserStreamURL("://bad-url"); err == nil {
		t.Fatal("expected error for invalid presigned URL, got nil")
	}
}
