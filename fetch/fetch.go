// Package fetch downloads GTFS static feeds and searches a remote feed repository.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultRepositoryURL is the base URL of the GTFS data repository searched by default.
const DefaultRepositoryURL = "https://api.gtfs-data.jp/v2"

// Download saves the feed at url into dir under a random name and returns the path of the file.
func Download(ctx context.Context, client *http.Client, url, dir string) (string, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.New().String()+".zip")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Query selects the feeds valid on a date. Extent and Pref are optional.
type Query struct {
	// TargetDate is a YYYY-MM-DD date.
	TargetDate string
	// Extent is a bounding box "minLon,minLat,maxLon,maxLat".
	Extent string
	// Pref is a prefecture code.
	Pref string
}

// Feed is one feed file listed by the repository.
type Feed struct {
	OrganizationID    string `json:"organization_id"`
	OrganizationName  string `json:"organization_name"`
	FeedID            string `json:"feed_id"`
	FeedName          string `json:"feed_name"`
	FeedPref          string `json:"feed_pref"`
	FeedLicenseID     string `json:"feed_license_id"`
	FileUID           string `json:"file_uid"`
	FileFromDate      string `json:"file_from_date"`
	FileToDate        string `json:"file_to_date"`
	FileURL           string `json:"file_url"`
	FileLastUpdatedAt string `json:"file_last_updated_at"`
}

type searchResponse struct {
	Body []Feed `json:"body"`
}

// SearchFeeds lists the feeds of the repository at baseURL that match the query.
func SearchFeeds(ctx context.Context, client *http.Client, baseURL string, query Query) ([]Feed, error) {
	params := url.Values{}
	params.Set("target_date", query.TargetDate)
	if query.Extent != "" {
		params.Set("extent", query.Extent)
	}
	if query.Pref != "" {
		params.Set("pref", query.Pref)
	}
	resp, err := get(ctx, client, baseURL+"/files?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode feed search response: %w", err)
	}
	return body.Body, nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}
