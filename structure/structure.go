package structure

import (
	"context"
	"encoding/json"
	"time"

	"mashetes/socket"
)

// Topic is the platform topic answering page-structure commands.
const Topic = "/portal/topics/structure"

// SaveOptionsTimeout bounds SaveMasheteOptions.
const SaveOptionsTimeout = 2000 * time.Millisecond

// Transport sends one request and returns the raw reply.
type Transport interface {
	Request(ctx context.Context, req socket.Request) (json.RawMessage, error)
}

// Ask builds a request envelope and forwards it to t. A zero timeout leaves the
// transport default in place.
func Ask(ctx context.Context, t Transport, topic string, payload any, timeout time.Duration) (json.RawMessage, error) {
	return t.Request(ctx, socket.Request{Topic: topic, Payload: payload, Timeout: timeout})
}

// Client issues page-structure commands on behalf of a widget.
// Every location-scoped command takes the caller's current location id.
type Client struct {
	transport Transport
}

func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

type command struct {
	Command  string `json:"command"`
	From     string `json:"from,omitempty"`
	Page     any    `json:"page,omitempty"`
	Mashetes any    `json:"mashetes,omitempty"`
	ID       string `json:"id,omitempty"`
	Conf     any    `json:"conf,omitempty"`
}

func (c *Client) SubPages(ctx context.Context, from string) (json.RawMessage, error) {
	return Ask(ctx, c.transport, Topic, command{Command: "subPages", From: from}, 0)
}

func (c *Client) CreatePage(ctx context.Context, from string, page any) (json.RawMessage, error) {
	return Ask(ctx, c.transport, Topic, command{Command: "addPage", From: from, Page: page}, 0)
}

func (c *Client) MoveMashetes(ctx context.Context, from string, mashetes any) (json.RawMessage, error) {
	return Ask(ctx, c.transport, Topic, command{Command: "moveMashetes", From: from, Mashetes: mashetes}, 0)
}

// GetAllRoles is not scoped to a location.
func (c *Client) GetAllRoles(ctx context.Context) (json.RawMessage, error) {
	return Ask(ctx, c.transport, Topic, command{Command: "allRoles"}, 0)
}

func (c *Client) DeleteCurrentPage(ctx context.Context, from string) (json.RawMessage, error) {
	return Ask(ctx, c.transport, Topic, command{Command: "deletePage", From: from}, 0)
}

func (c *Client) SaveMasheteOptions(ctx context.Context, from, id string, conf any) (json.RawMessage, error) {
	return Ask(ctx, c.transport, Topic, command{Command: "changeMasheteOptions", ID: id, Conf: conf, From: from}, SaveOptionsTimeout)
}
