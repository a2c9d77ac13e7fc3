// Package control implements the local command socket: a unix socket
// accepting newline-terminated ASCII commands from other processes,
// currently just "open <url>" to steer a running instance's UI.
package control

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ErrBadURL is returned for open targets that name no internal view.
var ErrBadURL = errors.New("unrecognized url")

// Command is one parsed control-socket line.
type Command struct {
	Name string
	Args []string
}

// Server listens on a unix socket and delivers parsed commands to a
// channel drained by the UI loop. Unknown commands are logged as
// errors, never fatal.
type Server struct {
	path     string
	listener net.Listener
	commands chan Command
	log      zerolog.Logger
}

// NewServer binds the socket, replacing any stale file at path.
func NewServer(path string, log zerolog.Logger) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	s := &Server{
		path:     path,
		listener: listener,
		commands: make(chan Command, 16),
		log:      log,
	}
	go s.accept()
	return s, nil
}

// Commands returns the channel of parsed commands.
func (s *Server) Commands() <-chan Command {
	return s.commands
}

// Close stops the listener and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error().Err(err).Msg("control socket accept")
			continue
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := Command{Name: parts[0], Args: parts[1:]}
		s.log.Debug().Str("command", cmd.Name).Strs("args", cmd.Args).Msg("control command received")

		select {
		case s.commands <- cmd:
		default:
			s.log.Error().Str("command", cmd.Name).Msg("control queue full, dropping")
		}
	}
}

// Send writes one command line to a running instance's socket.
func Send(path, line string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", path, err)
	}
	defer conn.Close()

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := conn.Write([]byte(line)); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// ResolveOpenTarget maps a URL-like string onto an internal navigation
// target. "mqtt://sensors/temp" names the message list for topic
// "sensors/temp"; a bare topic name works too.
func ResolveOpenTarget(url string) (topicName string, err error) {
	target := url
	if rest, ok := strings.CutPrefix(url, "mqtt://"); ok {
		target = rest
	} else if strings.Contains(url, "://") {
		return "", fmt.Errorf("%w: %q", ErrBadURL, url)
	}

	target = strings.Trim(target, "/")
	if target == "" {
		return "", fmt.Errorf("%w: %q", ErrBadURL, url)
	}
	return target, nil
}
