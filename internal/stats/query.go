package stats

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Query evaluates a path against the statistics JSON. Both gjson paths
// (runs.#.docsPerSecond) and simple JSONPath ($.runs[0].timeInMs) are
// accepted.
func Query(data []byte, path string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty statistics document")
	}
	if path == "" {
		return "", fmt.Errorf("empty query path")
	}

	result := gjson.GetBytes(data, toGjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// toGjsonPath converts $.runs[0].x into runs.0.x. Other input is returned
// unchanged.
func toGjsonPath(path string) string {
	if path == "$" {
		return "@this"
	}
	if !strings.HasPrefix(path, "$") {
		return path
	}

	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	path = strings.NewReplacer("['", ".", "']", "", `["`, ".", `"]`, "").Replace(path)
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	return strings.TrimPrefix(path, ".")
}
