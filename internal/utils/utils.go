// SPDX-License-Identifier: AGPL-3.0-only
package utils

import "encoding/json"

// JsonUnmarshal unmarshals JSON data into v, treating empty input as a no-op.
// Tool requests may arrive with no arguments at all.
func JsonUnmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
