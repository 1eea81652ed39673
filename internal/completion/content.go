package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// messageContent is a reply body that providers send either as a plain
// string or as a list of typed chunks. Only "text" chunks are kept.
type messageContent struct {
	text string
}

type contentChunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON implements json.Unmarshaler
func (m *messageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		m.text = ""
		return nil

	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		m.text = s
		return nil

	case data[0] == '[':
		var chunks []contentChunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			return err
		}
		var sb strings.Builder
		for _, c := range chunks {
			if c.Type == "text" {
				sb.WriteString(c.Text)
			}
		}
		m.text = sb.String()
		return nil
	}

	return fmt.Errorf("unsupported message content: %s", data)
}

// Text returns the normalized, trimmed content
func (m messageContent) Text() string {
	return strings.TrimSpace(m.text)
}
