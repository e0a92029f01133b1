/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package finalize

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

type format struct {
	ext    string
	writer func(w io.Writer) (io.WriteCloser, error)
}

func (f *Finalizer) formats() []format {
	var formats []format
	if f.cfg.Gzip {
		level := f.cfg.GzipLevel
		formats = append(formats, format{
			ext: ".gz",
			writer: func(w io.Writer) (io.WriteCloser, error) {
				return gzip.NewWriterLevel(w, level)
			},
		})
	}
	if f.cfg.Brotli {
		level := f.cfg.BrotliLevel
		formats = append(formats, format{
			ext: ".br",
			writer: func(w io.Writer) (io.WriteCloser, error) {
				return brotli.NewWriterLevel(w, level), nil
			},
		})
	}
	return formats
}

// Sidecars writes a compressed companion of path for every enabled format,
// unless path already carries that format's extension. Failures never touch
// path itself; the companions that were written are returned with the
// joined errors of the rest.
func (f *Finalizer) Sidecars(path string) ([]Sidecar, error) {
	formats := f.formats()
	if len(formats) == 0 || !f.fs.Exists(path) {
		return nil, nil
	}

	var written []Sidecar
	var errs []error
	for _, ft := range formats {
		if strings.EqualFold(filepath.Ext(path), ft.ext) {
			continue
		}
		sc, err := f.compress(path, ft)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.logger.Debug("Created compressed version", "path", sc.Path)
		written = append(written, sc)
	}
	return written, errors.Join(errs...)
}

func (f *Finalizer) compress(path string, ft format) (Sidecar, error) {
	target := path + ft.ext
	tmp := f.TempPath(target)

	if err := f.writeCompressed(path, tmp, ft); err != nil {
		_ = f.removeIfExists(tmp)
		return Sidecar{}, err
	}
	if err := f.fs.Rename(tmp, target); err != nil {
		_ = f.removeIfExists(tmp)
		return Sidecar{}, &Error{Op: "rename", Path: target, Err: err}
	}

	info, err := f.fs.Stat(target)
	if err != nil {
		return Sidecar{}, &Error{Op: "stat", Path: target, Err: err}
	}
	return Sidecar{Path: target, Size: info.Size()}, nil
}

func (f *Finalizer) writeCompressed(src, dst string, ft format) (err error) {
	in, err := f.fs.Open(src)
	if err != nil {
		return &Error{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := f.fs.Create(dst)
	if err != nil {
		return &Error{Op: "create", Path: dst, Err: err}
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = &Error{Op: "close", Path: dst, Err: cerr}
		}
	}()

	zw, err := ft.writer(out)
	if err != nil {
		return &Error{Op: "compress", Path: dst, Err: err}
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		return &Error{Op: "compress", Path: dst, Err: err}
	}
	if err := zw.Close(); err != nil {
		return &Error{Op: "compress", Path: dst, Err: err}
	}
	return nil
}
