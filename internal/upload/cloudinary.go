package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkordes/triptales/internal/domain"
)

// CloudinaryConfig configures unsigned uploads to Cloudinary.
// No API secret is involved: the upload preset must be marked unsigned.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string

	// Endpoint overrides the upload URL derived from CloudName.
	Endpoint string

	// Client defaults to an *http.Client with a 60 second timeout.
	Client *http.Client
}

// CloudinaryBackend uploads images with an unsigned upload preset.
type CloudinaryBackend struct {
	endpoint string
	preset   string
	client   *http.Client
}

// NewCloudinaryBackend validates cfg and builds the backend.
func NewCloudinaryBackend(cfg CloudinaryConfig) (*CloudinaryBackend, error) {
	if cfg.UploadPreset == "" {
		return nil, errors.New("upload preset is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.CloudName == "" {
			return nil, errors.New("cloud name or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cfg.CloudName)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &CloudinaryBackend{endpoint: endpoint, preset: cfg.UploadPreset, client: client}, nil
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Put posts obj as multipart form data and returns secure_url/public_id.
func (c *CloudinaryBackend) Put(ctx context.Context, obj Object) (domain.Asset, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, obj.Name))
	h.Set("Content-Type", obj.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: build form: %w", err)
	}
	if _, err := part.Write(obj.Data); err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: build form: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.preset); err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return domain.Asset{}, fmt.Errorf("cloudinary: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out cloudinaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Asset{}, fmt.Errorf("cloudinary: decode response: %w", err)
	}
	if out.SecureURL == "" {
		return domain.Asset{}, errors.New("cloudinary: response has no secure_url")
	}
	return domain.Asset{URL: out.SecureURL, ID: out.PublicID}, nil
}
