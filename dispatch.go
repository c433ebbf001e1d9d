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

package gwfdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gwf/gwfdata/internal/hash"
	"github.com/sirupsen/logrus"
)

// A Transferer moves a local file to a remote destination and returns the
// location of the transferred copy.
type Transferer interface {
	Transfer(ctx context.Context, localPath, destination string) (string, error)
}

// OutputReceipt describes a dispatched subset.
type OutputReceipt struct {
	ID     string
	Method ReturnMethod

	// Path is the local file written. It is empty for remote methods,
	// whose staged copy is removed after the transfer.
	Path string

	// Destination is where the result was delivered.
	Destination string

	Bytes       int64
	SHA256      string
	Fingerprint string

	// CreatedAt is not written into the output file.
	CreatedAt time.Time
}

// Dispatcher delivers subset results.
type Dispatcher struct {
	// Transfer handles the remote return methods. If it is nil, remote
	// dispatch fails with a *TransferError.
	Transfer Transferer

	// StagingDir holds files awaiting remote transfer. If empty, the
	// system temporary directory is used.
	StagingDir string

	Log logrus.FieldLogger
}

// Dispatch delivers r by the given return method. For the local-file
// method destination is the output file path, or an existing directory
// to write into. For remote methods it is the address understood by the
// Transferer. Failed transfers are returned as *TransferError and are
// not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, r *SubsetResult, method ReturnMethod, destination string) (*OutputReceipt, error) {
	if !method.valid() {
		return nil, &UnsupportedReturnMethodError{Method: string(method)}
	}
	if destination == "" {
		return nil, &ConfigurationError{Field: "destination", Err: fmt.Errorf("no output destination given")}
	}
	receipt := &OutputReceipt{
		ID:          uuid.New().String(),
		Method:      method,
		Fingerprint: r.Fingerprint(),
		CreatedAt:   time.Now().UTC(),
	}

	if !method.Remote() {
		path := destination
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = filepath.Join(path, outputName(r))
		}
		n, sum, err := writeAtomic(ctx, r, path)
		if err != nil {
			return nil, err
		}
		receipt.Path, receipt.Destination, receipt.Bytes, receipt.SHA256 = path, path, n, sum
		d.log().WithFields(logrus.Fields{
			"dataset": r.Dataset,
			"path":    path,
			"bytes":   n,
		}).Info("wrote subset")
		return receipt, nil
	}

	dir := d.StagingDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("gwfdata: creating staging directory: %w", err)
	}
	// Each dispatch stages into its own directory so that concurrent
	// dispatches of identical results do not share a file.
	stage, err := os.MkdirTemp(dir, "gwfdata-"+receipt.ID[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("gwfdata: creating staging directory: %w", err)
	}
	defer os.RemoveAll(stage)
	staged := filepath.Join(stage, outputName(r))
	n, sum, err := writeAtomic(ctx, r, staged)
	if err != nil {
		return nil, err
	}
	receipt.Bytes, receipt.SHA256 = n, sum

	if d.Transfer == nil {
		return nil, &TransferError{Destination: destination, Err: fmt.Errorf("no transfer backend configured")}
	}
	loc, err := d.Transfer.Transfer(ctx, staged, destination)
	if err != nil {
		return nil, &TransferError{Destination: destination, Err: err}
	}
	receipt.Destination = loc
	d.log().WithFields(logrus.Fields{
		"dataset":     r.Dataset,
		"method":      string(method),
		"destination": loc,
		"bytes":       n,
	}).Info("transferred subset")
	return receipt, nil
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// outputName is the default file name for r.
func outputName(r *SubsetResult) string {
	return fmt.Sprintf("%s_%s.nc", r.Dataset, hash.Short(r.Fingerprint(), 12))
}

// writeAtomic writes r to a temporary file next to path and renames it
// onto path. Nothing is left at path or in its directory on failure.
// It returns the size and SHA-256 checksum of the file.
func writeAtomic(ctx context.Context, r *SubsetResult, path string) (n int64, sum string, err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return 0, "", fmt.Errorf("gwfdata: creating output file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err = r.WriteNetCDF(f); err != nil {
		return 0, "", err
	}
	if err = f.Sync(); err != nil {
		return 0, "", fmt.Errorf("gwfdata: writing output file: %w", err)
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return 0, "", fmt.Errorf("gwfdata: writing output file: %w", err)
	}
	h := sha256.New()
	if n, err = io.Copy(h, f); err != nil {
		return 0, "", fmt.Errorf("gwfdata: checksumming output file: %w", err)
	}
	if err = f.Close(); err != nil {
		return 0, "", fmt.Errorf("gwfdata: closing output file: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return 0, "", err
	}
	if err = os.Chmod(tmp, 0644); err != nil {
		return 0, "", fmt.Errorf("gwfdata: writing output file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return 0, "", fmt.Errorf("gwfdata: moving output file into place: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
