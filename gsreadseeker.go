package fracback

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// GSReadSeekCloser decorates a Google Storage object handle with io.Reader,
// io.Seeker and io.Closer. Only rewinding seeks are supported, which is all
// that compression sniffing needs.
type GSReadSeekCloser struct {
	*storage.ObjectHandle
	Context context.Context
	r       *storage.Reader
	offset  int64
}

func (s *GSReadSeekCloser) Read(buf []byte) (int, error) {
	if s.r == nil {
		r, err := s.NewRangeReader(s.Context, s.offset, -1)
		if err != nil {
			return 0, err
		}
		s.r = r
	}

	n, err := s.r.Read(buf)
	s.offset += int64(n)

	return n, err
}

func (s *GSReadSeekCloser) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64

	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = s.offset + offset
	default:
		return 0, fmt.Errorf("io.Seeker 'whence' value %d is not implemented", whence)
	}

	if newOffset < 0 {
		return 0, fmt.Errorf("cannot seek to negative offset %d", newOffset)
	}

	// Seeking is not possible on the object stream. Drop the reader and
	// reopen at the new offset on the next Read.
	if s.r != nil {
		s.r.Close()
		s.r = nil
	}
	s.offset = newOffset

	return s.offset, nil
}

func (s *GSReadSeekCloser) Close() error {
	if s.r == nil {
		return nil
	}

	err := s.r.Close()
	s.r = nil

	return err
}

// IsGoogleStoragePath reports whether path points into a bucket.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// MaybeOpenSeekerFromGoogleStorage opens gs://bucket/object paths when a
// client is supplied and local files otherwise.
func MaybeOpenSeekerFromGoogleStorage(path string, client *storage.Client) (ReadSeekCloser, error) {
	if IsGoogleStoragePath(path) {
		if client == nil {
			return nil, fmt.Errorf("%s: no Google Storage client configured", path)
		}

		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 || pathParts[1] == "" {
			return nil, fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}

		handle := client.Bucket(pathParts[0]).Object(pathParts[1])

		// Fail early on missing objects rather than on first Read.
		if _, err := handle.Attrs(context.Background()); err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return &GSReadSeekCloser{
			ObjectHandle: handle,
			Context:      context.Background(),
		}, nil
	}

	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Open opens a local, home-relative or gs:// path and transparently
// decompresses it.
func Open(path string, client *storage.Client) (io.ReadCloser, error) {
	rsc, err := MaybeOpenSeekerFromGoogleStorage(path, client)
	if err != nil {
		return nil, err
	}

	rc, err := MaybeDecompress(rsc)
	if err != nil {
		rsc.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return rc, nil
}

// ReadAll reads the full decompressed contents of path.
func ReadAll(path string, client *storage.Client) ([]byte, error) {
	rc, err := Open(path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
