package mediaup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kelseyhightower/envconfig"
	"resty.dev/v3"
)

// Config comes from the environment: the upload endpoint carries an account
// name and an unsigned preset, never a secret key on the client side.
type Config struct {
	BaseURL      string `envconfig:"MEDIA_UPLOAD_URL" default:"https://api.cloudinary.com"`
	CloudName    string `envconfig:"MEDIA_CLOUD_NAME"`
	UploadPreset string `envconfig:"MEDIA_UPLOAD_PRESET" default:"nitedcrypto_posts"`
}

// UploadResult is the endpoint's response for a stored asset.
type UploadResult struct {
	SecureURL    string `json:"secure_url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Client uploads media files to the CDN endpoint.
type Client struct {
	cfg    Config
	client *resty.Client
}

func NewClient() (*Client, error) {
	var cfg Config
	if err := envconfig.Process("nitedsync", &cfg); err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg), nil
}

func NewClientWithConfig(cfg Config) *Client {
	client := resty.NewWithTransportSettings(&resty.TransportSettings{
		DialerTimeout:         5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	})

	return &Client{cfg: cfg, client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Upload sends one file as multipart form data and returns the stored
// asset's metadata.
func (c *Client) Upload(ctx context.Context, filename string, reader io.Reader) (*UploadResult, error) {
	var result UploadResult

	res, err := c.client.R().
		WithContext(ctx).
		SetFileReader("file", filename, reader).
		SetFormData(map[string]string{
			"upload_preset": c.cfg.UploadPreset,
		}).
		SetResult(&result).
		Post(fmt.Sprintf("%s/v1_1/%s/auto/upload", c.cfg.BaseURL, c.cfg.CloudName))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("upload failed: %s", res.Status())
	}

	return &result, nil
}
