/*
Copyright © 2026 the gwfdata authors.
This file is part of gwfdata.

gwfdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gwfdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gwfdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the credentials for S3-compatible object stores.
type MinIOConfig struct {
	// Endpoint is used when a destination does not name one.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// CreateBuckets creates missing destination buckets.
	CreateBuckets bool
}

// Validate checks that c is usable for the given endpoint.
func (c MinIOConfig) Validate() error {
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("minio access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("minio secret key is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("minio endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// MinIOTransferer uploads files to addresses of the form
// minio://endpoint/bucket/key. If endpoint is empty
// (minio:///bucket/key) the configured endpoint is used.
type MinIOTransferer struct {
	Config MinIOConfig

	mu      sync.Mutex
	clients map[string]*minio.Client
}

// NewMinIOTransferer returns a transferer that uses the credentials in c.
func NewMinIOTransferer(c MinIOConfig) (*MinIOTransferer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &MinIOTransferer{Config: c}, nil
}

// parseMinIO splits a minio:// address into its parts.
func parseMinIO(addr, defaultEndpoint string) (endpoint, bucket, key string, err error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", "", addressErrorf(addr, "cloud: parsing minio address %q: %v", addr, err)
	}
	if u.Scheme != "minio" {
		return "", "", "", addressErrorf(addr, "cloud: %q is not a minio address", addr)
	}
	endpoint = u.Host
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if endpoint == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", addressErrorf(addr, "cloud: minio address %q must be minio://endpoint/bucket/key", addr)
	}
	return endpoint, parts[0], parts[1], nil
}

func (t *MinIOTransferer) client(endpoint string) (*minio.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[endpoint]; ok {
		return c, nil
	}
	if err := t.Config.Validate(); err != nil {
		return nil, err
	}
	c, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(t.Config.AccessKey, t.Config.SecretKey, ""),
		Secure:    t.Config.UseSSL,
		Region:    t.Config.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, err
	}
	if t.clients == nil {
		t.clients = make(map[string]*minio.Client)
	}
	t.clients[endpoint] = c
	return c, nil
}

// Transfer uploads the file at localPath to destination.
func (t *MinIOTransferer) Transfer(ctx context.Context, localPath, destination string) (string, error) {
	endpoint, bucket, key, err := parseMinIO(destination, t.Config.Endpoint)
	if err != nil {
		return "", err
	}
	c, err := t.client(endpoint)
	if err != nil {
		return "", err
	}
	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if !t.Config.CreateBuckets {
			return "", fmt.Errorf("bucket %s does not exist on %s", bucket, endpoint)
		}
		if err := c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: t.Config.Region}); err != nil {
			return "", fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}
	_, err = c.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{ContentType: "application/x-netcdf"})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", localPath, err)
	}
	return fmt.Sprintf("minio://%s/%s/%s", endpoint, bucket, key), nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
