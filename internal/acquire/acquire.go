package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Fetch returns the raw bytes of a dataset source. Supported sources:
// "gs://bucket/object", "http://..." / "https://...", or a local file path.
func Fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "gs://"):
		return fetchGCS(ctx, source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return fetchHTTP(ctx, source)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", source, err)
		}
		return data, nil
	}
}

// FetchCSV fetches a source and, if the payload is a zip archive, extracts
// the first CSV member. Published datasets commonly arrive zipped.
func FetchCSV(ctx context.Context, source string) ([]byte, error) {
	data, err := Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	if isZip(data) {
		return ExtractCSVFromZip(data)
	}
	return data, nil
}

// fetchGCS downloads the object bytes from the given GCS URI. It assumes
// Application Default Credentials are configured.
func fetchGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchGCS: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchGCS: reading bytes: %w", err)
	}

	return data, nil
}

func fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchHTTP: building request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchHTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchHTTP: %s returned %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetchHTTP: reading body: %w", err)
	}

	return data, nil
}

// ExtractCSVFromZip opens a zip payload in memory and returns the first .csv
// member.
func ExtractCSVFromZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %q: %w", f.Name, err)
		}
		defer rc.Close()

		out, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read zip member %q: %w", f.Name, err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("zip archive contains no csv file")
}

// Filename extracts the object filename from a source, e.g.
// "gs://bucket/folder/data.csv" -> "data.csv".
func Filename(source string) string {
	trimmed := strings.TrimPrefix(source, "gs://")
	if parts := strings.SplitN(trimmed, "/", 2); len(parts) == 2 {
		trimmed = parts[1]
	}
	return path.Base(trimmed)
}

func splitGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 0x03 && data[3] == 0x04
}
