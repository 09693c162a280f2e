package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func isReservedProperty(k string) bool {
	switch k {
	case "PartitionKey", "RowKey", "Timestamp":
		return true
	}
	return strings.HasPrefix(k, "odata.") || strings.Contains(k, "@odata.")
}

// odataFilter renders the partition constraint plus every equality in f.
func odataFilter(sandbox string, f Filter) (string, error) {
	clauses := []string{"PartitionKey eq " + quote(sandbox)}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lit, err := literal(f[k])
		if err != nil {
			return "", fmt.Errorf("filter %s: %w", k, err)
		}
		prop := k
		if k == IDKey {
			prop = "RowKey"
		}
		clauses = append(clauses, prop+" eq "+lit)
	}
	return strings.Join(clauses, " and "), nil
}

func literal(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return quote(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10) + "L", nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
