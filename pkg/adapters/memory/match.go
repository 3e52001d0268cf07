package memory

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aretw0/strata/pkg/core"
)

// matches evaluates Mongo-style criteria against one record.
func matches(rec core.Record, criteria map[string]any) (bool, error) {
	for key, cond := range criteria {
		ok, err := matchKey(rec, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(rec core.Record, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := asList(cond)
		if !ok {
			return false, fmt.Errorf("%s expects a list, got %T", key, cond)
		}
		return matchLogical(rec, key, clauses)
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("unsupported top-level operator %s", key)
	}

	value, present := lookup(rec, key)
	if ops, ok := operators(cond); ok {
		return matchOperators(value, present, ops)
	}
	if re, ok := cond.(primitive.Regex); ok {
		return matchRegex(value, re.Pattern, re.Options)
	}
	return equalOrContains(value, present, cond), nil
}

func matchLogical(rec core.Record, op string, clauses []any) (bool, error) {
	for _, clause := range clauses {
		m, ok := asMap(clause)
		if !ok {
			return false, fmt.Errorf("%s clause must be a document, got %T", op, clause)
		}
		ok, err := matches(rec, m)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func matchOperators(value any, present bool, ops map[string]any) (bool, error) {
	for op, arg := range ops {
		var (
			ok  bool
			err error
		)
		switch op {
		case "$eq":
			ok = equalOrContains(value, present, arg)
		case "$ne":
			ok = !equalOrContains(value, present, arg)
		case "$in", "$nin":
			list, isList := asList(arg)
			if !isList {
				return false, fmt.Errorf("%s expects a list, got %T", op, arg)
			}
			ok, err = matchIn(value, present, list)
			if op == "$nin" {
				ok = !ok
			}
		case "$gt", "$gte", "$lt", "$lte":
			ok = present && matchRange(value, op, arg)
		case "$exists":
			want, isBool := arg.(bool)
			if !isBool {
				return false, fmt.Errorf("$exists expects a boolean, got %T", arg)
			}
			ok = present == want
		case "$regex":
			pattern, options, perr := regexArgs(arg, ops["$options"])
			if perr != nil {
				return false, perr
			}
			ok, err = matchRegex(value, pattern, options)
		case "$options":
			continue
		case "$not":
			inner, isOps := operators(arg)
			if !isOps {
				if re, isRe := arg.(primitive.Regex); isRe {
					ok, err = matchRegex(value, re.Pattern, re.Options)
					ok = !ok
					break
				}
				return false, fmt.Errorf("$not expects an operator document, got %T", arg)
			}
			ok, err = matchOperators(value, present, inner)
			ok = !ok
		default:
			return false, fmt.Errorf("unsupported operator %s", op)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchIn(value any, present bool, list []any) (bool, error) {
	for _, candidate := range list {
		if re, ok := candidate.(primitive.Regex); ok {
			hit, err := matchRegex(value, re.Pattern, re.Options)
			if err != nil {
				return false, err
			}
			if hit {
				return true, nil
			}
			continue
		}
		if equalOrContains(value, present, candidate) {
			return true, nil
		}
	}
	return false, nil
}

func matchRange(value any, op string, arg any) bool {
	if !sameBracket(value, arg) {
		return false
	}
	c := compare(value, arg)
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

func regexArgs(arg, options any) (string, string, error) {
	opts, _ := options.(string)
	switch re := arg.(type) {
	case string:
		return re, opts, nil
	case primitive.Regex:
		if opts == "" {
			opts = re.Options
		}
		return re.Pattern, opts, nil
	}
	return "", "", fmt.Errorf("$regex expects a string, got %T", arg)
}

func matchRegex(value any, pattern, options string) (bool, error) {
	var flags string
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	if list, ok := value.([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && re.MatchString(s) {
				return true, nil
			}
		}
		return false, nil
	}
	s, ok := value.(string)
	return ok && re.MatchString(s), nil
}

// equalOrContains follows Mongo equality: a null target matches a missing
// field, and an array field matches when any element is equal.
func equalOrContains(value any, present bool, target any) bool {
	if target == nil {
		return !present || value == nil
	}
	if !present {
		return false
	}
	if equal(value, target) {
		return true
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if equal(item, target) {
				return true
			}
		}
	}
	return false
}

func lookup(rec core.Record, path string) (any, bool) {
	var cur any = map[string]any(rec)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// operators returns cond as an operator document when every key is an operator.
func operators(cond any) (map[string]any, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case core.Criteria:
		return m, true
	case core.Record:
		return m, true
	case primitive.M:
		return m, true
	case primitive.D:
		return m.Map(), true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case primitive.A:
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if _, isID := v.(primitive.ObjectID); isID {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ma, ok := asMap(a); ok {
		mb, ok := asMap(b)
		return ok && reflect.DeepEqual(ma, mb)
	}
	return reflect.DeepEqual(a, b)
}

func sameBracket(a, b any) bool {
	return bracket(a) == bracket(b) && bracket(a) != bracketOther
}

const (
	bracketNull = iota
	bracketNumber
	bracketString
	bracketObjectID
	bracketBool
	bracketTime
	bracketOther
)

func bracket(v any) int {
	if v == nil {
		return bracketNull
	}
	if _, ok := toFloat(v); ok {
		return bracketNumber
	}
	switch v.(type) {
	case string:
		return bracketString
	case primitive.ObjectID:
		return bracketObjectID
	case bool:
		return bracketBool
	case time.Time:
		return bracketTime
	}
	return bracketOther
}

// compare orders values of the same BSON bracket; different brackets order
// by bracket.
func compare(a, b any) int {
	ba, bb := bracket(a), bracket(b)
	if ba != bb {
		return cmp.Compare(ba, bb)
	}
	switch ba {
	case bracketNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	case bracketString:
		return strings.Compare(a.(string), b.(string))
	case bracketObjectID:
		ia, ib := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(ia[:], ib[:])
	case bracketBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case bracketTime:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
