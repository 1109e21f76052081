// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agui

import (
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// DecodeEvent parses one JSON event as produced by Encode. Any AG-UI event
// type is accepted; callers switch over the ones they render.
func DecodeEvent(data []byte) (Event, error) {
	ev, err := events.EventFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
