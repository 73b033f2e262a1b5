package domain

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

type SourceKind int

const (
	SourcePath SourceKind = iota
	SourceURI
	SourceFD
	SourceReader
)

func (k SourceKind) String() string {
	switch k {
	case SourcePath:
		return "path"
	case SourceURI:
		return "uri"
	case SourceFD:
		return "fd"
	case SourceReader:
		return "reader"
	default:
		return "unknown"
	}
}

// Source describes where the engine reads media from. Only the fields of
// the selected Kind are meaningful.
type Source struct {
	Kind SourceKind

	// SourcePath
	Path string

	// SourceURI
	URI     string
	Headers map[string]string
	Cookies []*http.Cookie

	// SourceFD. A negative Length means "to the end of the file".
	// The caller keeps ownership of File.
	File   *os.File
	Offset int64
	Length int64

	// SourceReader
	Reader io.ReaderAt
	Size   int64
}

func PathSource(path string) Source {
	return Source{Kind: SourcePath, Path: path}
}

func URISource(uri string, headers map[string]string, cookies []*http.Cookie) Source {
	return Source{Kind: SourceURI, URI: uri, Headers: headers, Cookies: cookies}
}

func FDSource(f *os.File, offset, length int64) Source {
	return Source{Kind: SourceFD, File: f, Offset: offset, Length: length}
}

func ReaderSource(r io.ReaderAt, size int64) Source {
	return Source{Kind: SourceReader, Reader: r, Size: size}
}

// Location is a human readable identifier for the source, used as the
// history key.
func (s Source) Location() string {
	switch s.Kind {
	case SourcePath:
		return s.Path
	case SourceURI:
		return s.URI
	case SourceFD:
		if s.File == nil {
			return "fd:<nil>"
		}
		return fmt.Sprintf("fd:%s@%d+%d", s.File.Name(), s.Offset, s.Length)
	case SourceReader:
		return fmt.Sprintf("reader:%d", s.Size)
	default:
		return ""
	}
}

func (s Source) Validate() error {
	switch s.Kind {
	case SourcePath:
		if s.Path == "" {
			return errors.New("empty path")
		}
	case SourceURI:
		if s.URI == "" {
			return errors.New("empty uri")
		}
	case SourceFD:
		if s.File == nil {
			return errors.New("nil file")
		}
		if s.Offset < 0 {
			return fmt.Errorf("negative offset %d", s.Offset)
		}
	case SourceReader:
		if s.Reader == nil {
			return errors.New("nil reader")
		}
		if s.Size < 0 {
			return fmt.Errorf("negative size %d", s.Size)
		}
	default:
		return fmt.Errorf("unknown source kind %d", s.Kind)
	}
	return nil
}
