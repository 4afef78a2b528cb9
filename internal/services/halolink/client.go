package halolink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
)

// Apollo graphql-ws message types the platform speaks.
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionKeepAlive = "ka"
	msgConnectionError     = "connection_error"
	msgStart               = "start"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgConnectionTerminate = "connection_terminate"
)

const apolloSubprotocol = "graphql-ws"

type wireMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type operationPayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type resultPayload struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Options configures a platform connection.
type Options struct {
	URL         string
	AccessToken string
	// LocalBearer adds the x-authentication-scheme header some deployments
	// require for service accounts.
	LocalBearer bool
}

// Client is a GraphQL-over-websocket connection to the image platform.
// Operations are single-flight: the reconciliation session issues one request
// at a time and the connection is not safe for concurrent use beyond the
// internal mutex.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID int
}

// Dial opens the websocket, performs the connection_init handshake, and
// returns a ready client.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	wsURL := strings.TrimSpace(opts.URL)
	if wsURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "halolink", "dial", "websocket url is required", nil)
	}

	header := http.Header{}
	if token := strings.TrimSpace(opts.AccessToken); token != "" {
		header.Set("Authorization", "bearer "+token)
	}
	if opts.LocalBearer {
		header.Set("x-authentication-scheme", "LocalBearer")
	}

	dialer := websocket.Dialer{Subprotocols: []string{apolloSubprotocol}}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		detail := "dial failed"
		if resp != nil {
			detail = fmt.Sprintf("dial failed with status %d", resp.StatusCode)
		}
		return nil, services.Wrap(services.ErrPlatformUnavailable, "halolink", "dial", detail, err)
	}

	client := &Client{conn: conn}
	if err := client.handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) handshake() error {
	if err := c.conn.WriteJSON(wireMessage{Type: msgConnectionInit, Payload: json.RawMessage(`{}`)}); err != nil {
		return services.Wrap(services.ErrPlatformUnavailable, "halolink", "handshake", "send connection_init", err)
	}
	for {
		var msg wireMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return services.Wrap(services.ErrPlatformUnavailable, "halolink", "handshake", "read ack", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgConnectionKeepAlive:
			continue
		case msgConnectionError:
			return services.Wrap(services.ErrPlatformUnavailable, "halolink", "handshake",
				"connection rejected: "+string(msg.Payload), nil)
		default:
			return services.Wrap(services.ErrPlatformUnavailable, "halolink", "handshake",
				"unexpected message "+msg.Type, nil)
		}
	}
}

// Close terminates the protocol session and the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	_ = c.conn.WriteJSON(wireMessage{Type: msgConnectionTerminate})
	return c.conn.Close()
}

// execute runs one GraphQL operation and decodes its data payload into out.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := strconv.Itoa(c.nextID)

	payload, err := json.Marshal(operationPayload{Query: query, Variables: variables})
	if err != nil {
		return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute", "encode operation", err)
	}
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetReadDeadline(deadline)
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(wireMessage{ID: id, Type: msgStart, Payload: payload}); err != nil {
		return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute", "send operation", err)
	}

	var data json.RawMessage
	for {
		var msg wireMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute", "read response", err)
		}
		if msg.Type == msgConnectionKeepAlive {
			continue
		}
		if msg.ID != id {
			continue
		}
		switch msg.Type {
		case msgData:
			var result resultPayload
			if err := json.Unmarshal(msg.Payload, &result); err != nil {
				return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute", "decode payload", err)
			}
			if len(result.Errors) > 0 {
				return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute",
					"graphql error: "+result.Errors[0].Message, nil)
			}
			data = result.Data
		case msgComplete:
			if data == nil {
				return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute", "operation completed without data", nil)
			}
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute", "decode data", err)
			}
			return nil
		case msgError:
			return services.Wrap(services.ErrPlatformUnavailable, "halolink", "execute",
				"operation failed: "+string(msg.Payload), nil)
		}
	}
}
