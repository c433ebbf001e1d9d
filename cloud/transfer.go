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
	"net/url"
	"sort"
	"strings"
)

// An AddressError reports a destination that no attempt at a transfer
// can reach, such as a malformed address or a scheme with no backend.
type AddressError struct {
	Addr string
	msg  string
}

func (e *AddressError) Error() string { return e.msg }

func addressErrorf(addr, format string, a ...interface{}) error {
	return &AddressError{Addr: addr, msg: fmt.Sprintf(format, a...)}
}

// A Transferer moves a local file to a remote destination and returns
// the location of the transferred copy.
type Transferer interface {
	Transfer(ctx context.Context, localPath, destination string) (string, error)
}

// Transferers chooses a Transferer by the scheme of the destination
// address.
type Transferers map[string]Transferer

// NewTransferers returns the blob storage transferers, plus a MinIO
// transferer if m is not nil.
func NewTransferers(m *MinIOTransferer) Transferers {
	t := Transferers{
		"file": BlobTransferer{},
		"gs":   BlobTransferer{},
		"s3":   BlobTransferer{},
	}
	if m != nil {
		t["minio"] = m
	}
	return t
}

// Transfer passes the transfer to the Transferer for the scheme of
// destination.
func (t Transferers) Transfer(ctx context.Context, localPath, destination string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", addressErrorf(destination, "cloud: parsing destination %q: %v", destination, err)
	}
	tr, ok := t[strings.ToLower(u.Scheme)]
	if !ok {
		return "", addressErrorf(destination, "cloud: no transfer backend for destination %q; available schemes are %v",
			destination, t.schemes())
	}
	return tr.Transfer(ctx, localPath, destination)
}

func (t Transferers) schemes() []string {
	s := make([]string, 0, len(t))
	for k := range t {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}
