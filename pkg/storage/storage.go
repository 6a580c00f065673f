package storage

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"kost-service/pkg/config"
)

// Client uploads and deletes images against the Cloudinary HTTP API using
// signed requests.
type Client struct {
	cfg  config.StorageConfig
	http *http.Client
}

// NewClient creates a storage client from configuration
func NewClient(cfg config.StorageConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether upload credentials are present
func (c *Client) Configured() bool {
	return c.cfg.CloudName != "" && c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Upload streams an image to object storage and returns its public URL.
// Category becomes a path segment under the configured folder.
func (c *Client) Upload(file io.Reader, filename, category string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("storage: missing credentials")
	}

	publicID := uuid.New().String()
	folder := c.cfg.Folder
	if category != "" {
		folder = folder + "/" + category
	}
	if folder != "" {
		publicID = folder + "/" + publicID
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := c.sign("public_id=" + publicID + "&timestamp=" + timestamp)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("storage: build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("storage: read file: %w", err)
	}
	_ = writer.WriteField("api_key", c.cfg.APIKey)
	_ = writer.WriteField("public_id", publicID)
	_ = writer.WriteField("timestamp", timestamp)
	_ = writer.WriteField("signature", signature)
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: close form: %w", err)
	}

	endpoint := "https://api.cloudinary.com/v1_1/" + c.cfg.CloudName + "/image/upload"
	req, err := http.NewRequest(http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: upload: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("storage: upload failed with status %d: %s", res.StatusCode, string(body))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("storage: decode response: %w", err)
	}
	if parsed.SecureURL == "" {
		return "", fmt.Errorf("storage: upload returned no URL")
	}
	return parsed.SecureURL, nil
}

// Delete removes the object behind a previously returned public URL
func (c *Client) Delete(publicURL string) error {
	if !c.Configured() {
		return fmt.Errorf("storage: missing credentials")
	}

	publicID, err := publicIDFromURL(publicURL)
	if err != nil {
		return err
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := c.sign("public_id=" + publicID + "&timestamp=" + timestamp)

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("api_key", c.cfg.APIKey)
	form.Set("timestamp", timestamp)
	form.Set("signature", signature)

	endpoint := "https://api.cloudinary.com/v1_1/" + c.cfg.CloudName + "/image/destroy"
	res, err := c.http.PostForm(endpoint, form)
	if err != nil {
		return fmt.Errorf("storage: delete: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("storage: delete failed with status %d: %s", res.StatusCode, string(body))
	}
	return nil
}

func (c *Client) sign(params string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(params+c.cfg.APISecret)))
}

// publicIDFromURL extracts the storage public ID from a delivery URL of the
// form https://res.cloudinary.com/<cloud>/image/upload/v123/<folder>/<id>.<ext>
func publicIDFromURL(publicURL string) (string, error) {
	parsed, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("storage: invalid URL: %w", err)
	}

	parts := strings.Split(strings.TrimPrefix(parsed.Path, "/"), "/")
	uploadIdx := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIdx = i
			break
		}
	}
	if uploadIdx == -1 || uploadIdx+1 >= len(parts) {
		return "", fmt.Errorf("storage: unrecognized URL format: %s", publicURL)
	}

	rest := parts[uploadIdx+1:]
	// Skip the version segment (v<digits>) when present
	if len(rest) > 1 && strings.HasPrefix(rest[0], "v") && len(rest[0]) > 1 {
		allDigits := true
		for _, r := range rest[0][1:] {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			rest = rest[1:]
		}
	}

	id := strings.Join(rest, "/")
	ext := path.Ext(id)
	return strings.TrimSuffix(id, ext), nil
}
