package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"gopkg.in/yaml.v3"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const s3Scheme = "s3://"

// FileFetcher reads a JSON or YAML document from a local path or from
// s3://bucket/key. The format follows the file extension.
type FileFetcher struct {
	S3 s3iface.S3API
}

func (f *FileFetcher) Fetch(ctx context.Context, src model.ContextSourceConfig, req *model.AuthorizationRequest) (map[string]interface{}, error) {
	path := configString(src.Config, "path")
	if path == "" {
		return nil, fmt.Errorf("source %s: path not configured", src.ID)
	}
	path, err := expandLocation(path, req.Document())
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}

	var data []byte
	if strings.HasPrefix(path, s3Scheme) {
		data, err = f.readS3(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}

	doc, err := decodeDocument(path, data)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return doc, nil
}

// expandLocation fills placeholders in a local path or s3 location. Each
// substituted value must stay a single path segment.
func expandLocation(tmpl string, doc map[string]interface{}) (string, error) {
	var unsafe []string
	location := expandTemplate(tmpl, doc, func(v string) string {
		if !isPathSegment(v) {
			unsafe = append(unsafe, v)
		}
		return v
	})
	if len(unsafe) > 0 {
		return "", fmt.Errorf("%w: %q is not a valid path segment", bouncer_errors.ErrInvalidSourcePath, unsafe[0])
	}
	return location, nil
}

func isPathSegment(v string) bool {
	return !strings.ContainsAny(v, "/\\\x00") && !strings.Contains(v, "..")
}

func (f *FileFetcher) readS3(ctx context.Context, location string) ([]byte, error) {
	if f.S3 == nil {
		return nil, fmt.Errorf("s3 client not configured")
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q", location)
	}
	out, err := f.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, maxSourceBodySize))
}

func decodeDocument(path string, data []byte) (map[string]interface{}, error) {
	var v interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return asDocument(v), nil
}
