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
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
)

// readBlob copies the given blob from the given bucket to w.
func readBlob(ctx context.Context, bucket *blob.Bucket, key string, w io.Writer) error {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("reading blob key %s: %v", key, err)
	}
	defer r.Close()
	if _, err = io.Copy(w, r); err != nil {
		return fmt.Errorf("reading blob key %s: %v", key, err)
	}
	return nil
}

// writeBlob copies the contents of r to the given key in the given bucket.
// The blob is only created if the whole copy succeeds.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key string, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/x-netcdf"})
	if err != nil {
		return fmt.Errorf("gwfdata/cloud: creating writer for blob %s: %v", key, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		cancel() // Abort the write.
		w.Close()
		return fmt.Errorf("gwfdata/cloud: copying blob %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("gwfdata/cloud: writing blob %s: %v", key, err)
	}
	return nil
}

// BlobTransferer uploads files to blob storage addresses of the form
// gs://bucket/key, s3://bucket/key, or file:///dir/key.
type BlobTransferer struct{}

// Transfer uploads the file at localPath to destination and returns
// destination.
func (BlobTransferer) Transfer(ctx context.Context, localPath, destination string) (string, error) {
	bucketName, key, err := splitBlob(destination)
	if err != nil {
		return "", err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return "", err
	}
	defer bucket.Close()
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("gwfdata/cloud: opening file '%s' for upload: %v", localPath, err)
	}
	defer f.Close()
	if err := writeBlob(ctx, bucket, key, f); err != nil {
		return "", err
	}
	return destination, nil
}
