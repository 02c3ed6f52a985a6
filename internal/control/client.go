package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/protocol"
)

// DefaultTimeout bounds one client round trip, dial included.
const DefaultTimeout = 3 * time.Second

type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = config.DefaultSocketPath()
	}
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

func NewClientTimeout(socketPath string, timeout time.Duration) *Client {
	c := NewClient(socketPath)
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

func (c *Client) SocketPath() string {
	return c.socketPath
}

// Do performs one round trip. It never returns a transport error:
// failures are synthesized into envelopes so callers handle exactly one
// shape. The bool mirrors resp.OK.
func (c *Client) Do(req protocol.Request) (bool, protocol.Response) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isNotRunning(err) {
			return false, protocol.Response{
				Error:  "server not running",
				Code:   protocol.CodeNotRunning,
				Socket: c.socketPath,
			}
		}
		return false, transportFailure(err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return false, protocol.Response{Error: fmt.Sprintf("encoding request: %v", err)}
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return false, transportFailure(err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	line = bytes.TrimSpace(line)
	if err != nil && len(line) == 0 {
		if errors.Is(err, io.EOF) {
			return false, protocol.Response{Error: "empty response from server"}
		}
		return false, transportFailure(err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return false, protocol.Response{Error: fmt.Sprintf("invalid json response: %v", err)}
	}
	return resp.OK, resp
}

// Ping reports whether a daemon answers on the socket. It uses a
// zero-limit history read, the cheapest side-effect-free op.
func (c *Client) Ping() bool {
	ok, _ := c.Do(protocol.Request{Op: protocol.OpHistoryList, Limit: 0})
	return ok
}

// ExitCode maps a client result onto the CLI exit code contract: 0 on
// success, 2 for INVALID_ARG, 1 when the daemon is unreachable or the
// transport failed, 3 for any other failure.
func ExitCode(ok bool, resp protocol.Response) int {
	if ok {
		return 0
	}
	switch resp.Code {
	case protocol.CodeInvalidArg:
		return 2
	case protocol.CodeNotRunning, protocol.CodeTimeout, "":
		return 1
	default:
		return 3
	}
}

// isNotRunning reports whether a dial error means no daemon owns the
// socket: the path is absent or nothing accepts on it.
func isNotRunning(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}

func transportFailure(err error) protocol.Response {
	if os.IsTimeout(err) {
		return protocol.Response{Error: "timeout", Code: protocol.CodeTimeout}
	}
	return protocol.Response{Error: err.Error()}
}
