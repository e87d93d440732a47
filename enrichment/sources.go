package enrichment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

// SourceFetcher loads the data of one context source for one request.
type SourceFetcher interface {
	Fetch(ctx context.Context, src model.ContextSourceConfig, req *model.AuthorizationRequest) (map[string]interface{}, error)
}

// Fetchers maps a source type to the fetcher that serves it.
type Fetchers map[model.SourceType]SourceFetcher

func (f Fetchers) fetcherFor(t model.SourceType) (SourceFetcher, error) {
	fetcher, ok := f[t]
	if !ok || fetcher == nil {
		return nil, fmt.Errorf("%w: %s", bouncer_errors.ErrUnsupportedSource, t)
	}
	return fetcher, nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// expandTemplate replaces {dotted.path} placeholders with values from the
// request document. Unresolved placeholders become empty strings.
func expandTemplate(tmpl string, doc map[string]interface{}, escape func(string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := m[1 : len(m)-1]
		v, ok := lookupPath(doc, path)
		if !ok || v == nil {
			return ""
		}
		s := fmt.Sprint(v)
		if escape != nil {
			s = escape(s)
		}
		return s
	})
}

func configString(cfg map[string]interface{}, key string) string {
	if cfg == nil {
		return ""
	}
	s, _ := cfg[key].(string)
	return s
}

func configInt(cfg map[string]interface{}, key string, def int) int {
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func configStringMap(cfg map[string]interface{}, key string) map[string]string {
	out := map[string]string{}
	raw, ok := cfg[key].(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// resolveParams turns a "params" config entry into query arguments. A list
// yields positional arguments, a map yields named ones; string values are
// dotted paths into the request document.
func resolveParams(raw interface{}, doc map[string]interface{}) ([]interface{}, map[string]interface{}) {
	resolve := func(v interface{}) interface{} {
		path, ok := v.(string)
		if !ok {
			return v
		}
		if val, found := lookupPath(doc, path); found {
			return val
		}
		return nil
	}

	switch p := raw.(type) {
	case []interface{}:
		args := make([]interface{}, 0, len(p))
		for _, v := range p {
			args = append(args, resolve(v))
		}
		return args, nil
	case map[string]interface{}:
		named := make(map[string]interface{}, len(p))
		for k, v := range p {
			named[k] = resolve(v)
		}
		return nil, named
	default:
		return nil, nil
	}
}
