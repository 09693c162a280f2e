package structure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"mashetes/socket"
)

type recordingTransport struct {
	reqs  []socket.Request
	reply json.RawMessage
	err   error
}

func (r *recordingTransport) Request(ctx context.Context, req socket.Request) (json.RawMessage, error) {
	r.reqs = append(r.reqs, req)
	return r.reply, r.err
}

// payloadOf encodes the recorded payload the way the transport would.
func payloadOf(t *testing.T, req socket.Request) map[string]any {
	t.Helper()
	data, err := json.Marshal(req.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return out
}

func TestCommandsBuildExpectedPayloads(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		call    func(c *Client) (json.RawMessage, error)
		want    map[string]any
		timeout time.Duration
	}{
		{
			name: "subPages",
			call: func(c *Client) (json.RawMessage, error) { return c.SubPages(ctx, "home") },
			want: map[string]any{"command": "subPages", "from": "home"},
		},
		{
			name: "addPage",
			call: func(c *Client) (json.RawMessage, error) {
				return c.CreatePage(ctx, "home", map[string]any{"title": "News"})
			},
			want: map[string]any{"command": "addPage", "from": "home", "page": map[string]any{"title": "News"}},
		},
		{
			name: "moveMashetes",
			call: func(c *Client) (json.RawMessage, error) {
				return c.MoveMashetes(ctx, "home", []any{"m1", "m2"})
			},
			want: map[string]any{"command": "moveMashetes", "from": "home", "mashetes": []any{"m1", "m2"}},
		},
		{
			name: "allRoles",
			call: func(c *Client) (json.RawMessage, error) { return c.GetAllRoles(ctx) },
			want: map[string]any{"command": "allRoles"},
		},
		{
			name: "deletePage",
			call: func(c *Client) (json.RawMessage, error) { return c.DeleteCurrentPage(ctx, "news") },
			want: map[string]any{"command": "deletePage", "from": "news"},
		},
		{
			name: "changeMasheteOptions",
			call: func(c *Client) (json.RawMessage, error) {
				return c.SaveMasheteOptions(ctx, "home", "m1", map[string]any{"url": "https://example.com"})
			},
			want:    map[string]any{"command": "changeMasheteOptions", "from": "home", "id": "m1", "conf": map[string]any{"url": "https://example.com"}},
			timeout: 2000 * time.Millisecond,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &recordingTransport{reply: json.RawMessage(`{"ok":true}`)}
			res, err := tc.call(NewClient(tr))
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if string(res) != `{"ok":true}` {
				t.Fatalf("reply not passed through: %s", res)
			}
			if len(tr.reqs) != 1 {
				t.Fatalf("expected 1 request, got %d", len(tr.reqs))
			}
			req := tr.reqs[0]
			if req.Topic != Topic {
				t.Fatalf("unexpected topic %q", req.Topic)
			}
			if req.Timeout != tc.timeout {
				t.Fatalf("unexpected timeout %v", req.Timeout)
			}
			got := payloadOf(t, req)
			if len(got) != len(tc.want) {
				t.Fatalf("unexpected payload %#v", got)
			}
			for k, v := range tc.want {
				gv, _ := json.Marshal(got[k])
				wv, _ := json.Marshal(v)
				if string(gv) != string(wv) {
					t.Fatalf("payload[%s] = %s, want %s", k, gv, wv)
				}
			}
		})
	}
}

func TestFromIsResolvedPerCall(t *testing.T) {
	tr := &recordingTransport{}
	c := NewClient(tr)
	ctx := context.Background()
	c.SubPages(ctx, "first")
	c.SubPages(ctx, "second")
	if payloadOf(t, tr.reqs[0])["from"] != "first" || payloadOf(t, tr.reqs[1])["from"] != "second" {
		t.Fatalf("location not taken from the call: %#v %#v", tr.reqs[0].Payload, tr.reqs[1].Payload)
	}
}

func TestAskPropagatesTransportError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Ask(context.Background(), &recordingTransport{err: boom}, "t", nil, 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSaveMasheteOptionsTimesOutOverSocket(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	// A subscriber that never answers.
	sub := rc.Subscribe(context.Background(), Topic)
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	c := NewClient(socket.NewClient(rc, socket.Options{Timeout: time.Minute}))
	start := time.Now()
	_, err = c.SaveMasheteOptions(context.Background(), "home", "m1", map[string]any{})
	elapsed := time.Since(start)
	if !errors.Is(err, socket.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed < SaveOptionsTimeout || elapsed > SaveOptionsTimeout+3*time.Second {
		t.Fatalf("unexpected elapsed time %v", elapsed)
	}
}
