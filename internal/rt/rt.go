// Package rt talks to the Request Tracker REST 1.0 interface, which is a
// line-oriented protocol tunnelled over HTTP POST.
package rt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Error carries the raw response lines of a failed RT exchange.
type Error struct {
	Lines []string
}

func (e *Error) Error() string {
	if len(e.Lines) == 0 {
		return "rt: empty response"
	}
	return "rt: " + e.Lines[0]
}

// Ticket is a new-ticket request.
type Ticket struct {
	Queue     string
	Requestor string
	Subject   string
	CC        []string
	Text      string
}

const defaultTimeout = 30 * time.Second

// Client creates tickets against one RT instance.
type Client struct {
	BaseURL string // for example https://rt.example.org
	User    string
	Pass    string
	Queue   string // default queue when the ticket names none
	HTTP    *http.Client
}

func NewClient(baseURL, user, pass, queue string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		User:    user,
		Pass:    pass,
		Queue:   queue,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

// encode renders the REST 1.0 new-ticket body. Multi-line text is indented by
// one leading space per line.
func (c *Client) encode(t Ticket) string {
	queue := t.Queue
	if queue == "" {
		queue = c.Queue
	}
	var b strings.Builder
	fmt.Fprintf(&b, "id: ticket/new\n")
	fmt.Fprintf(&b, "Queue: %s\n", queue)
	fmt.Fprintf(&b, "Requestor: %s\n", t.Requestor)
	fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
	fmt.Fprintf(&b, "Cc: %s\n", strings.Join(t.CC, ", "))
	b.WriteString("Text:")
	for _, line := range strings.Split(t.Text, "\n") {
		b.WriteString("\n ")
		b.WriteString(line)
	}
	b.WriteString("\n")
	return b.String()
}

var ticketCreatedRe = regexp.MustCompile(`^# Ticket (\d+) created\.`)

// CreateTicket posts a new ticket and returns its number. Any status other
// than 200, or a success body without a ticket-created line, is an *Error.
func (c *Client) CreateTicket(ctx context.Context, t Ticket) (int64, error) {
	form := url.Values{}
	form.Set("content", c.encode(t))
	form.Set("user", c.User)
	form.Set("pass", c.Pass)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/REST/1.0/ticket/new", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	return parseCreateResponse(lines)
}

func parseCreateResponse(lines []string) (int64, error) {
	if len(lines) == 0 {
		return 0, &Error{Lines: lines}
	}
	// first line: "<ver> <status> <text>", e.g. "RT/4.4.3 200 Ok"
	head := strings.Fields(lines[0])
	if len(head) < 2 || head[1] != "200" {
		return 0, &Error{Lines: lines}
	}
	for _, line := range lines[1:] {
		if m := ticketCreatedRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return 0, &Error{Lines: lines}
			}
			return n, nil
		}
	}
	return 0, &Error{Lines: lines}
}
