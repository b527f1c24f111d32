package archive

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode/v2"

	"modlab/errs"
)

// rarArchive reads rar containers. Rar is sequential, so every member access
// rewinds and walks headers from the start.
type rarArchive struct {
	file *os.File
	path string
}

func openRar(path string) (*rarArchive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &rarArchive{file: file, path: path}, nil
}

func (a *rarArchive) newReader(password string) (*rardecode.Reader, error) {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var opts []rardecode.Option
	if password != "" {
		opts = append(opts, rardecode.Password(password))
	}
	reader, err := rardecode.NewReader(a.file, opts...)
	if err != nil {
		if isPasswordErr(err) {
			if password == "" {
				return nil, errs.ErrPasswordRequired
			}
			return nil, errs.ErrWrongPassword
		}
		return nil, errs.ErrArchiveCorrupt
	}
	return reader, nil
}

func (a *rarArchive) List() ([]string, error) {
	reader, err := a.newReader("")
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isPasswordErr(err) {
				return nil, errs.ErrPasswordRequired
			}
			return nil, errs.ErrArchiveCorrupt
		}
		if header.IsDir {
			continue
		}
		names = append(names, header.Name)
	}
	return names, nil
}

func (a *rarArchive) Encrypted() (bool, error) {
	reader, err := a.newReader("")
	if err != nil {
		if errors.Is(err, errs.ErrPasswordRequired) {
			return true, nil
		}
		return false, err
	}
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return isPasswordErr(err), nil
		}
		if header.IsDir {
			continue
		}
		buf := make([]byte, 1)
		_, err = reader.Read(buf)
		if err != nil && err != io.EOF {
			return true, nil
		}
		return false, nil
	}
}

func (a *rarArchive) Open(member, password string) (io.ReadCloser, error) {
	reader, err := a.newReader(password)
	if err != nil {
		return nil, err
	}
	want := filepath.ToSlash(member)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isPasswordErr(err) {
				return nil, errs.ErrWrongPassword
			}
			return nil, errs.ErrArchiveCorrupt
		}
		if strings.EqualFold(filepath.ToSlash(header.Name), want) {
			return io.NopCloser(reader), nil
		}
	}
	return nil, errs.ErrMemberNotFound
}

func (a *rarArchive) Close() error { return a.file.Close() }
