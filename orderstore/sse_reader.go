package orderstore

import (
	"bufio"
	"io"
	"strings"
)

// SSERawEvent is a single parsed server-sent event.
type SSERawEvent struct {
	Event string
	Data  string
	ID    string
}

// SSEReader reads server-sent events from a stream.
type SSEReader struct {
	scanner *bufio.Scanner
}

func NewSSEReader(r io.Reader) *SSEReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEReader{scanner: sc}
}

// Next blocks until a complete event is available. It returns io.EOF at the
// end of the stream. Comment lines are surfaced as an event named
// "comment" so callers can treat them as keepalives.
func (s *SSEReader) Next() (SSERawEvent, error) {
	var ev SSERawEvent
	var data []string
	hasFields := false

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if hasFields {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			if !hasFields {
				return SSERawEvent{Event: "comment", Data: strings.TrimSpace(line[1:])}, nil
			}
			continue
		}

		field, value := line, ""
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			field = line[:idx]
			value = strings.TrimPrefix(line[idx+1:], " ")
		}
		switch field {
		case "event":
			ev.Event = value
			hasFields = true
		case "data":
			data = append(data, value)
			hasFields = true
		case "id":
			ev.ID = value
			hasFields = true
		}
	}

	if err := s.scanner.Err(); err != nil {
		return SSERawEvent{}, err
	}
	if hasFields {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return SSERawEvent{}, io.EOF
}
