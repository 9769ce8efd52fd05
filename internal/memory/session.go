package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionMessage is one extracted (role, text) tuple from a transcript,
// carrying the identifiers every chunk derived from it will inherit.
type SessionMessage struct {
	MessageID string
	Role      Role
	Text      string
	CreatedAt time.Time
}

var textContentTypes = map[string]bool{"text": true, "thinking": true, "reasoning": true}

// rawEvent mirrors the on-disk JSONL event shape loosely enough to
// tolerate extra fields the transcript writer may add; unrecognized
// fields are ignored.
type rawEvent struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	Message   struct {
		Role      string          `json:"role"`
		Content   json.RawMessage `json:"content"`
		Timestamp string          `json:"timestamp"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractSessionMessages parses a JSONL transcript file into the message
// tuples the indexer chunks (§4.6). Lines that fail to parse, or whose
// type/role do not match the accepted set, are skipped rather than
// aborting the whole file.
func ExtractSessionMessages(path string) ([]SessionMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var out []SessionMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ev rawEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Type != "message" {
			continue
		}
		role := Role(ev.Message.Role)
		if role != RoleUser && role != RoleAssistant {
			continue
		}

		text := extractMessageText(ev.Message.Content)
		if strings.TrimSpace(text) == "" {
			continue
		}

		out = append(out, SessionMessage{
			MessageID: uuid.Must(uuid.NewV7()).String(),
			Role:      role,
			Text:      collapseWhitespace(text),
			CreatedAt: resolveTimestamp(ev),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return out, nil
}

// extractMessageText accepts either a bare JSON string or an array of
// content blocks; only text/thinking/reasoning blocks contribute.
func extractMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if textContentTypes[b.Type] && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveTimestamp prefers a numeric top-level event timestamp (unix
// seconds or millis); otherwise parses the message's RFC3339 timestamp.
func resolveTimestamp(ev rawEvent) time.Time {
	if len(ev.Timestamp) > 0 {
		var num float64
		if err := json.Unmarshal(ev.Timestamp, &num); err == nil {
			if num > 1e12 {
				return time.UnixMilli(int64(num))
			}
			return time.Unix(int64(num), 0)
		}
		var str string
		if err := json.Unmarshal(ev.Timestamp, &str); err == nil {
			if t, err := time.Parse(time.RFC3339, str); err == nil {
				return t
			}
			if secs, err := strconv.ParseInt(str, 10, 64); err == nil {
				return time.Unix(secs, 0)
			}
		}
	}
	if ev.Message.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, ev.Message.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// TranscriptHashBasis builds the normalized content whose hash decides
// whether a transcript needs re-indexing: one line per message, prefixed
// by its role label.
func TranscriptHashBasis(messages []SessionMessage) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
