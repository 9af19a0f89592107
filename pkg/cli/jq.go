package cli

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// JQ is a pre-parsed jq expression used to reshape command output.
// The expression is parsed up front so flag errors surface before any
// request is made.
type JQ struct {
	expr  string
	query *gojq.Query
}

// ParseJQ parses a jq expression. An empty expression yields a nil JQ,
// which Apply treats as the identity.
func ParseJQ(expr string) (*JQ, error) {
	if expr == "" {
		return nil, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	return &JQ{expr: expr, query: query}, nil
}

// String returns the original expression.
func (q *JQ) String() string {
	if q == nil {
		return ""
	}
	return q.expr
}

// Apply runs the expression over the value and returns the results.
// The value is round-tripped through JSON first so struct fields are
// addressed by their wire names. A single result is returned bare;
// multiple results come back as a slice.
func (q *JQ) Apply(v any) (any, error) {
	if q == nil || q.query == nil {
		return v, nil
	}

	// gojq operates on the plain map/slice forms produced by
	// encoding/json.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jq input: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("decode jq input: %w", err)
	}

	var results []any
	iter := q.query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq error: %w", err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, fmt.Errorf("jq expression returned no result")
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
