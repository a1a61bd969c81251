package fracback

import (
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType attempts to detect the compression of a stream by checking
// its leading bytes against known signatures. Streams shorter than the
// longest signature are treated as uncompressed.
func DetectDataType(r io.Reader) (DataType, error) {
	buff := make([]byte, 6)
	n, err := io.ReadFull(r, buff)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return DataTypeNoCompression, nil
	} else if err != nil {
		return DataTypeInvalid, err
	}

Outer:
	for dt, sig := range byteCodeSigs {
		if len(sig) > n {
			continue
		}
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return dt, nil
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompress sniffs the compression of rsc, rewinds it, and returns a
// reader over the decompressed contents. Closing the returned reader closes
// rsc.
func MaybeDecompress(rsc ReadSeekCloser) (io.ReadCloser, error) {
	dt, err := DetectDataType(rsc)
	if err != nil {
		return nil, err
	}

	if _, err := rsc.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch dt {
	case DataTypeGzip:
		gz, err := gzip.NewReader(rsc)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: gz, closers: []io.Closer{gz, rsc}}, nil
	case DataTypeZip:
		return &stackedCloser{Reader: zipstream.NewReader(rsc), closers: []io.Closer{rsc}}, nil
	case DataTypeBZip2:
		return &stackedCloser{Reader: bzip2.NewReader(rsc), closers: []io.Closer{rsc}}, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(rsc, 0)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: reader, closers: []io.Closer{rsc}}, nil
	case DataTypeZ:
		zr, err := zlib.NewReader(rsc)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, rsc}}, nil
	}

	return rsc, nil
}

// stackedCloser closes the decompressor and then the underlying source.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *stackedCloser) Close() error {
	var first error
	for _, v := range c.closers {
		if err := v.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
