package memory

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"

	memerrors "github.com/thotran113254/mem0-rest/pkg/errors"
)

const (
	// DefaultLimit is used when a search or list request does not set one.
	DefaultLimit = 100
	// DefaultMaxLimit caps search and list sizes.
	DefaultMaxLimit = 1000
)

// ValidateScope requires at least one scope identifier.
func ValidateScope(op string, s Scope) error {
	if strings.TrimSpace(s.UserID) == "" &&
		strings.TrimSpace(s.AgentID) == "" &&
		strings.TrimSpace(s.RunID) == "" {
		return memerrors.NewValidationError(op, "One of the filters: user_id, agent_id or run_id is required!")
	}
	return nil
}

// normalizeScope trims whitespace from every identifier.
func normalizeScope(s Scope) Scope {
	return Scope{
		UserID:  strings.TrimSpace(s.UserID),
		AgentID: strings.TrimSpace(s.AgentID),
		RunID:   strings.TrimSpace(s.RunID),
	}
}

// resolveLimit applies the default and rejects values outside [1, max].
func resolveLimit(op string, limit, max int) (int, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > max {
		limit = max
	}
	if limit < 1 {
		return 0, memerrors.NewValidationError(op, fmt.Sprintf("limit must be between 1 and %d", max))
	}
	return limit, nil
}

// NormalizeFilters converts metadata filter values to the scalar types the
// index can match on: string, bool and int64. JSON numbers with a fractional
// part and structured values are rejected.
func NormalizeFilters(op string, filters map[string]any) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, memerrors.NewValidationError(op, "filter keys must not be empty")
		}
		nv, ok := NormalizeScalar(v)
		if !ok {
			return nil, memerrors.NewValidationError(op,
				fmt.Sprintf("filter %q must be a string, boolean or number", key))
		}
		out[key] = nv
	}
	return out, nil
}

// NormalizeScalar maps v to string, bool, int64 or float64. Integral numbers
// become int64 so 3 and 3.0 compare equal. ok is false for NaN, infinities
// and non-scalar values.
func NormalizeScalar(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		if x > math.MaxInt64 {
			return nil, false
		}
		return int64(x), true
	case float32:
		return NormalizeScalar(float64(x))
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, false
		}
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), true
		}
		return x, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return NormalizeScalar(f)
		}
		return nil, false
	}
	return nil, false
}

// MatchesMetadata reports whether every filter key equals the stored value.
func MatchesMetadata(filters, metadata map[string]any) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		ng, ok := NormalizeScalar(got)
		if !ok || ng != want {
			return false
		}
	}
	return true
}

// candidateTexts trims and de-duplicates candidate statements, keeping order.
func candidateTexts(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func validateTurns(op string, turns []Turn) error {
	if len(turns) == 0 {
		return memerrors.NewValidationError(op, "messages must not be empty")
	}
	for i, t := range turns {
		if strings.TrimSpace(t.Role) == "" {
			return memerrors.NewValidationError(op, fmt.Sprintf("messages[%d].role is required", i))
		}
	}
	return nil
}

// hashText is the content fingerprint stored with each memory.
func hashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
