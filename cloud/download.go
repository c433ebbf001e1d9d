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
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Download checks if path is an existing local file. If not, and path is
// an http(s) or blob storage address, it downloads the file to a
// temporary directory and returns the local path. For shapefiles, the
// associated .dbf, .shx, and .prj files are downloaded as well and the
// path to the .shp file is returned. The caller must call cleanup once
// the local copy is no longer needed; it removes any downloaded files.
func Download(ctx context.Context, path string) (local string, cleanup func(), err error) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, func() {}, nil
	}
	var dir string
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		dir, local, err = downloadHTTP(ctx, path)
	case IsBlob(path):
		dir, local, err = downloadBlob(ctx, path)
	default:
		return path, func() {}, nil
	}
	if err != nil {
		return "", nil, err
	}
	return local, func() { os.RemoveAll(dir) }, nil
}

// downloadHTTP downloads a file from the specified URL and returns
// the temporary directory holding it and the path to the downloaded file.
func downloadHTTP(ctx context.Context, path string) (dir, local string, err error) {
	dir, err = ioutil.TempDir("", "gwfdata")
	if err != nil {
		return "", "", fmt.Errorf("gwfdata/cloud: creating temporary download directory: %v", err)
	}
	fnames := expandShp(path)
	for _, fname := range fnames {
		if err := httpGet(ctx, fname, filepath.Join(dir, filepath.Base(fname))); err != nil {
			os.RemoveAll(dir)
			return "", "", err
		}
	}
	return dir, filepath.Join(dir, filepath.Base(fnames[0])), nil
}

func httpGet(ctx context.Context, addr, dst string) error {
	req, err := http.NewRequest(http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("gwfdata/cloud: downloading %s: %v", addr, err)
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gwfdata/cloud: downloading %s: %v", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gwfdata/cloud: downloading %s: %s", addr, resp.Status)
	}
	w, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("gwfdata/cloud: creating file for download: %v", err)
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		w.Close()
		return fmt.Errorf("gwfdata/cloud: downloading %s: %v", addr, err)
	}
	return w.Close()
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, path string) (dir, local string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("gwfdata/cloud: %v", err)
	}
	dir, err = ioutil.TempDir("", "gwfdata")
	if err != nil {
		return "", "", fmt.Errorf("gwfdata/cloud: creating temporary download directory: %v", err)
	}
	fnames := expandShp(u.Path)
	for _, fname := range fnames {
		bucketName, key, err := splitBlob(u.Scheme + "://" + u.Host + fname)
		if err != nil {
			os.RemoveAll(dir)
			return "", "", err
		}
		if err := fetchBlob(ctx, bucketName, key, filepath.Join(dir, filepath.Base(fname))); err != nil {
			os.RemoveAll(dir)
			return "", "", err
		}
	}
	return dir, filepath.Join(dir, filepath.Base(fnames[0])), nil
}

func fetchBlob(ctx context.Context, bucketName, key, dst string) error {
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer bucket.Close()
	w, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("gwfdata/cloud: creating file for download: %v", err)
	}
	if err := readBlob(ctx, bucket, key, w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise.
func expandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
