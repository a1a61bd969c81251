package fracback

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDetermineDelimiter(t *testing.T) {
	for _, v := range []struct {
		input    string
		expected rune
	}{
		{"onset\tduration\ttrial_type\n0\t2\t0back\n2\t2\t2back\n4\t2\tfixation\n", '\t'},
		{"onset,duration,trial_type\n", ','},
		{"onset\tduration\n", '\t'},
		{"", '\t'},
	} {
		if got := DetermineDelimiterBytes([]byte(v.input)); got != v.expected {
			t.Errorf("%q: expected %q, got %q", v.input, v.expected, got)
		}
	}
}

func TestDetectDataType(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("onset\tduration\n"))
	gz.Close()

	dt, err := DetectDataType(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeGzip {
		t.Errorf("expected gzip, got %d", dt)
	}

	dt, err = DetectDataType(bytes.NewReader([]byte("on")))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeNoCompression {
		t.Errorf("expected no compression for a short stream, got %d", dt)
	}
}

func TestOpenGzipAndPlain(t *testing.T) {
	dir := t.TempDir()
	contents := "onset\tduration\ttrial_type\tresponse_time\n0\t2\t0back\t0.8\n"

	plain := filepath.Join(dir, "events.tsv")
	if err := os.WriteFile(plain, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(contents))
	gz.Close()
	compressed := filepath.Join(dir, "events.tsv.gz")
	if err := os.WriteFile(compressed, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, compressed} {
		rc, err := Open(path, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != contents {
			t.Errorf("%s: expected %q, got %q", path, contents, string(got))
		}
	}
}

func TestOpenGoogleStorageWithoutClient(t *testing.T) {
	if _, err := Open("gs://bucket/sub-01_events.tsv", nil); err == nil {
		t.Error("expected an error without a storage client")
	}
}

func TestGlobLocal(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"02_1-fracback.log", "01_2-fracback.log", "01_1-fracback.log", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Glob(filepath.Join(dir, "*.log"), nil)
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		filepath.Join(dir, "01_1-fracback.log"),
		filepath.Join(dir, "01_2-fracback.log"),
		filepath.Join(dir, "02_1-fracback.log"),
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	if _, err := Glob("gs://bucket/logs/*.log", nil); err == nil {
		t.Errorf("expected an error for a bucket pattern without a client")
	}
}

func TestLiteralPrefix(t *testing.T) {
	for _, v := range []struct {
		pattern, expected string
	}{
		{"logs/*.log", "logs/"},
		{"logs/01_?-fracback.log", "logs/01_"},
		{"logs/01_1-fracback.log", "logs/01_1-fracback.log"},
		{"[ab]/x", ""},
	} {
		if got := literalPrefix(v.pattern); got != v.expected {
			t.Errorf("%s: expected %q, got %q", v.pattern, v.expected, got)
		}
	}
}
