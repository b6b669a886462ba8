package source

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"

	"irdl/pkg/port"
)

func collect(c *qt.C, s *Source) []port.Edge {
	var edges []port.Edge
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-s.C:
			if !ok {
				return edges
			}
			edges = append(edges, e)
		case <-timeout:
			c.Fatal("source didn't end")
		}
	}
}

func TestFileSource(t *testing.T) {
	c := qt.New(t)

	name := filepath.Join(c.TempDir(), "frame.txt")
	err := os.WriteFile(name, []byte("# samplerate: 500000\n0 0\n2250 1\n4425 0\n"), 0o644)
	c.Assert(err, qt.IsNil)

	s, err := Open(context.Background(), Config{Type: TypeFile, File: name})
	c.Assert(err, qt.IsNil)
	c.Assert(s.SampleRate(), qt.Equals, int64(500000))
	c.Assert(s.Name(), qt.Equals, "file "+name)

	edges := collect(c, s)
	c.Assert(edges, qt.HasLen, 3)
	c.Assert(edges[2], qt.Equals, port.Edge{Tick: 4425})
	c.Assert(s.Err(), qt.IsNil)
	c.Assert(s.Close(), qt.IsNil)
}

func TestFileSourceSyntaxError(t *testing.T) {
	c := qt.New(t)

	name := filepath.Join(c.TempDir(), "broken.txt")
	c.Assert(os.WriteFile(name, []byte("0 0\n10 x\n"), 0o644), qt.IsNil)

	s, err := Open(context.Background(), Config{Type: TypeFile, File: name})
	c.Assert(err, qt.IsNil)
	c.Assert(collect(c, s), qt.HasLen, 1)
	c.Assert(s.Err(), qt.ErrorMatches, `capture syntax error: line 2: .*`)
	_ = s.Close()
}

func TestOpenErrors(t *testing.T) {
	c := qt.New(t)

	_, err := Open(context.Background(), Config{Type: "audio"})
	c.Assert(errors.Is(err, ErrInvalidSource), qt.IsTrue)

	_, err = Open(context.Background(), Config{Type: TypeWebsocket, URL: "http://localhost/edges"})
	c.Assert(errors.Is(err, ErrInvalidSource), qt.IsTrue)

	_, err = Open(context.Background(), Config{Type: TypeSerial})
	c.Assert(errors.Is(err, ErrInvalidSource), qt.IsTrue)

	_, err = Open(context.Background(), Config{Type: TypeFile, File: filepath.Join(c.TempDir(), "missing")})
	c.Assert(err, qt.ErrorMatches, `open capture: .*`)
}

func TestWebsocketSource(t *testing.T) {
	c := qt.New(t)

	auth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// a message may hold several lines and need not end with a newline
		_ = conn.WriteMessage(websocket.TextMessage, []byte("0 0\n4500 1"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("8850 0\n"))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s, err := Open(context.Background(), Config{Type: TypeWebsocket, URL: url, Username: "ir", Password: "secret"})
	c.Assert(err, qt.IsNil)
	defer s.Close()

	edges := collect(c, s)
	c.Assert(edges, qt.DeepEquals, []port.Edge{{Tick: 0}, {Tick: 4500, Level: true}, {Tick: 8850}})
	c.Assert(s.Err(), qt.IsNil)
	c.Assert(s.SampleRate(), qt.Equals, int64(0))
	c.Assert(<-auth, qt.Equals, "Basic "+base64.StdEncoding.EncodeToString([]byte("ir:secret")))
}

func TestPassword(t *testing.T) {
	c := qt.New(t)

	pw, err := Password("configured")
	c.Assert(err, qt.IsNil)
	c.Assert(pw, qt.Equals, "configured")

	c.Setenv(PasswordEnv, "from-env")
	pw, err = Password("")
	c.Assert(err, qt.IsNil)
	c.Assert(pw, qt.Equals, "from-env")
}
