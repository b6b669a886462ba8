package source

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"
)

// PasswordEnv is the environment variable holding the websocket password.
const PasswordEnv = "IRDL_PASSWORD"

// wsReader returns the text of websocket messages as a byte stream, every
// message ends a line.
type wsReader struct {
	conn *websocket.Conn
	buf  []byte
}

func (w *wsReader) Read(p []byte) (int, error) {
	for len(w.buf) == 0 {
		_, data, err := w.conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if len(data) > 0 && data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		w.buf = data
	}

	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

// openWebsocket reads the capture text of a sniffer from a websocket with
// optional HTTP basic auth.
func openWebsocket(ctx context.Context, cfg Config) (*Source, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %v", ErrInvalidSource, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported URL scheme %q (use ws:// or wss://)", ErrInvalidSource, u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.SkipVerify}
	}

	headers := http.Header{}
	if cfg.Username != "" {
		pw, err := Password(cfg.Password)
		if err != nil {
			return nil, err
		}
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + pw))
		headers.Set("Authorization", "Basic "+credentials)
	}

	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(dctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return newStream(ctx, "websocket "+u.Host, &wsReader{conn: conn}, conn.Close), nil
}

// Password returns the configured password, the password of the environment
// or prompts for it on a terminal.
func Password(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no websocket password configured")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
