package utils

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"unihub/config"
)

var ErrMediaStore = errors.New("media store")

// MediaStore hosts uploaded files remotely.
type MediaStore interface {
	Upload(ctx context.Context, localPath string, opts UploadOptions) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

type UploadOptions struct {
	// ResourceType is image, video or auto.
	ResourceType string
	Folder       string
}

// UploadResult is the subset of the provider response the handlers keep.
type UploadResult struct {
	PublicID     string  `json:"public_id"`
	SecureURL    string  `json:"secure_url"`
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	ResourceType string  `json:"resource_type"`
	Format       string  `json:"format"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Bytes        int64   `json:"bytes"`
	Duration     float64 `json:"duration"`
}

// Thumbnail falls back to the media URL when the provider reports none.
func (r *UploadResult) Thumbnail() string {
	if r.ThumbnailURL != "" {
		return r.ThumbnailURL
	}
	return r.SecureURL
}

type destroyResult struct {
	Result string `json:"result"`
}

type cloudinaryErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CloudinaryClient talks to the Cloudinary upload API with signed requests.
type CloudinaryClient struct {
	cfg    config.CloudinaryConfig
	client *resty.Client
	now    func() time.Time
}

func NewCloudinaryClient(cfg config.CloudinaryConfig) *CloudinaryClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.cloudinary.com"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/v1_1/"+cfg.CloudName).
		SetTimeout(2 * time.Minute)

	return &CloudinaryClient{cfg: cfg, client: client, now: time.Now}
}

func (c *CloudinaryClient) Upload(ctx context.Context, localPath string, opts UploadOptions) (*UploadResult, error) {
	resourceType := opts.ResourceType
	if resourceType == "" {
		resourceType = "auto"
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if opts.Folder != "" {
		params["folder"] = opts.Folder
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.cfg.APIKey

	var result UploadResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetFile("file", localPath).
		SetFormData(params).
		SetResult(&result).
		Post("/" + resourceType + "/upload")

	err = checkResponse(resp, err)
	MediaOperationsTotal.WithLabelValues("upload", ResultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	if result.PublicID == "" {
		return nil, errors.Join(ErrMediaStore, errors.New("upload response missing public_id"))
	}

	return &result, nil
}

// Delete removes publicID, trying the image namespace first and then video.
func (c *CloudinaryClient) Delete(ctx context.Context, publicID string) error {
	result, err := c.destroy(ctx, publicID, "image")
	if err == nil && result == "not found" {
		result, err = c.destroy(ctx, publicID, "video")
	}
	MediaOperationsTotal.WithLabelValues("delete", ResultLabel(err)).Inc()
	if err != nil {
		return err
	}

	LogEvent("media_deleted", map[string]interface{}{"public_id": publicID, "result": result})
	return nil
}

func (c *CloudinaryClient) destroy(ctx context.Context, publicID, resourceType string) (string, error) {
	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.cfg.APIKey

	var result destroyResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(params).
		SetResult(&result).
		Post("/" + resourceType + "/destroy")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}

	return result.Result, nil
}

// sign builds the request signature: parameters sorted by key, joined as
// key=value pairs with '&', the API secret appended, then SHA-1 hashed.
func (c *CloudinaryClient) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Join(ErrMediaStore, err)
	}
	if !resp.IsError() {
		return nil
	}

	var errResp cloudinaryErrorResponse
	if jerr := json.Unmarshal(resp.Body(), &errResp); jerr != nil || errResp.Error.Message == "" {
		return errors.Join(ErrMediaStore, fmt.Errorf("(HTTP Status: %d) unexpected response", resp.StatusCode()))
	}
	return errors.Join(ErrMediaStore, fmt.Errorf("(HTTP Status: %d) %s", resp.StatusCode(), errResp.Error.Message))
}
