package gcs

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrSigningUnavailable is returned when the client has no service account key.
var ErrSigningUnavailable = errors.New("gcs: url signing requires service account credentials")

// SignedURL returns a V2 signed PUT URL for a direct upload of contentType.
func (c *Client) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", errors.New("gcs: content type required")
	}
	return c.sign(http.MethodPut, bucket, object, contentType, expires)
}

// SignedReadURL returns a V2 signed GET URL for object.
func (c *Client) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	return c.sign(http.MethodGet, bucket, object, "", expires)
}

func (c *Client) sign(method, bucket, object, contentType string, expires time.Duration) (string, error) {
	if c == nil || c.serviceAccount == nil || c.serviceAccount.privateKey == nil {
		return "", ErrSigningUnavailable
	}
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" {
		return "", errors.New("gcs: bucket required")
	}
	object = strings.TrimPrefix(object, "/")
	if object == "" {
		return "", errors.New("gcs: object required")
	}
	if expires <= 0 {
		return "", errors.New("gcs: expiry must be positive")
	}

	expiresAt := strconv.FormatInt(time.Now().Add(expires).Unix(), 10)
	resource := "/" + bucket + "/" + object
	payload := strings.Join([]string{method, "", contentType, expiresAt, resource}, "\n")
	hash := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.serviceAccount.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("gcs: sign url: %w", err)
	}

	query := url.Values{}
	query.Set("GoogleAccessId", c.serviceAccount.clientEmail)
	query.Set("Expires", expiresAt)
	query.Set("Signature", base64.StdEncoding.EncodeToString(sig))

	u := url.URL{
		Scheme:   "https",
		Host:     "storage.googleapis.com",
		Path:     resource,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// Upload writes data to object in a single media request.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" || object == "" {
		return errors.New("gcs: bucket and object required")
	}
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o?uploadType=media&name=%s",
		uploadBase, url.PathEscape(bucket), url.QueryEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer closeBody(ctx, c.logg, resp.Body, "gcs: closing upload body failed")

	if err := googleapi.CheckResponse(resp); err != nil {
		return fmt.Errorf("gcs: upload %s: %w", object, err)
	}
	return nil
}

// DeleteObject removes object. A missing object counts as deleted so the
// deletion worker can be retried safely.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" || object == "" {
		return errors.New("gcs: bucket and object required")
	}
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", apiBase, url.PathEscape(bucket), url.PathEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer closeBody(ctx, c.logg, resp.Body, "gcs: closing delete body failed")

	if err := googleapi.CheckResponse(resp); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("gcs: delete %s: %w", object, err)
	}
	return nil
}

// IsNotFound reports whether err is a GCS 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c == nil || c.tokenSource == nil || c.httpClient == nil {
		return nil, errors.New("gcs client not initialized")
	}
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

func (c *Client) bucketOrDefault(bucket string) string {
	if bucket != "" {
		return bucket
	}
	if c == nil {
		return ""
	}
	return c.defaultBucket
}
