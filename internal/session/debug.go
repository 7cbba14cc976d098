package session

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxBodyLogSize = 1024

// DebugLogger records requests and responses in verbose mode.
// A nil *DebugLogger is valid and logs nothing.
type DebugLogger struct {
	out io.Writer
	mu  sync.Mutex
}

func NewDebugLogger(out io.Writer) *DebugLogger {
	return &DebugLogger{out: out}
}

func (d *DebugLogger) LogRequest(sessionID string, req *http.Request, form url.Values) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\n[%s] >>> %s %s\n", shortID(sessionID), req.Method, req.URL.String()))
	if len(form) > 0 {
		buf.WriteString("  Form:\n")
		for name, values := range form {
			v := strings.Join(values, ", ")
			if name == "user[password]" || strings.Contains(name, "[password]") {
				v = "********"
			}
			buf.WriteString(fmt.Sprintf("    %s: %s\n", name, v))
		}
	}
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogResponse(sessionID string, resp *http.Response, body []byte, duration time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("[%s] <<< %d %s at %s (%s)\n",
		shortID(sessionID), resp.StatusCode, http.StatusText(resp.StatusCode),
		resp.Request.URL.Path, duration.Round(time.Millisecond)))
	if len(body) > 0 {
		buf.WriteString(fmt.Sprintf("  Body: %s\n", truncateBody(body)))
	}
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogError(sessionID string, errMsg string, duration time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.out, "[%s] !!! ERROR: %s (%s)\n", shortID(sessionID), errMsg, duration.Round(time.Millisecond))
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > maxBodyLogSize {
		return s[:maxBodyLogSize] + "... (truncated)"
	}
	return s
}

// shortID keeps log lines readable; the full UUID is still on the events.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
