package fracback

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// Glob expands pattern against the local filesystem, or against a bucket
// for gs:// patterns. Bucket objects are listed under the longest prefix
// free of wildcards and then matched with path.Match. Results are sorted.
func Glob(pattern string, client *storage.Client) ([]string, error) {
	if !IsGoogleStoragePath(pattern) {
		expanded, err := ExpandHome(pattern)
		if err != nil {
			return nil, err
		}

		out, err := filepath.Glob(expanded)
		if err != nil {
			return nil, pfx.Err(err)
		}
		sort.Strings(out)

		return out, nil
	}

	if client == nil {
		return nil, fmt.Errorf("%s: no Google Storage client configured", pattern)
	}

	bucket, objectPattern, err := splitGoogleStoragePath(pattern)
	if err != nil {
		return nil, err
	}

	// Validate the pattern before listing the bucket.
	if _, err := path.Match(objectPattern, ""); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", pattern, err))
	}

	query := &storage.Query{Prefix: literalPrefix(objectPattern)}
	itr := client.Bucket(bucket).Objects(context.Background(), query)

	var out []string
	for {
		attrs, err := itr.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}

		if ok, _ := path.Match(objectPattern, attrs.Name); ok {
			out = append(out, "gs://"+bucket+"/"+attrs.Name)
		}
	}
	sort.Strings(out)

	return out, nil
}

func splitGoogleStoragePath(p string) (bucket, object string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(p, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%s: expected gs://bucket/object", p)
	}

	return parts[0], parts[1], nil
}

// literalPrefix is the part of pattern before its first wildcard.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
