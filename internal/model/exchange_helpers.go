// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"encoding/json"

	"github.com/arva/mcp-chat/internal/logging"
)

// PersistAndLogExchange saves an exchange to the store (best-effort) and
// debug-logs it.
func PersistAndLogExchange(store ExchangeStore, ex *Exchange, logger *logging.Logger) {
	if store != nil {
		if err := store.SaveExchange(ex); err != nil {
			logger.Warnf("Failed to persist exchange %q: %v", ex.Query, err)
		}
	}

	jsonData, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		logger.Warnf("Failed to marshal exchange %q: %v", ex.Query, err)
	} else {
		logger.Debugf("Exchange: %s", string(jsonData))
	}
}
