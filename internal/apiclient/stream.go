package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-parfum/internal/events"
)

// Changes implements shopper.ChangeSource by reading the server-sent event
// stream at /lists/stream. The channel closes when ctx ends or the server
// drops the connection.
func (c *Client) Changes(ctx context.Context) (<-chan events.ListChange, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/lists/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	out := make(chan events.ListChange, 8)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		readEvents(ctx, bufio.NewScanner(resp.Body), out)
	}()
	return out, nil
}

func readEvents(ctx context.Context, sc *bufio.Scanner, out chan<- events.ListChange) {
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var change events.ListChange
			if err := json.Unmarshal([]byte(data.String()), &change); err == nil {
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
			data.Reset()
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
