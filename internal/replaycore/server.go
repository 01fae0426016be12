package replaycore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/forgecast/forgecast/internal/logger"
)

// MessageKind is one of the four messages spec.md §6 "Server mode"
// accepts on the replay port.
type MessageKind string

const (
	MessageStartServer           MessageKind = "start-server"
	MessageQueueActionDictionary MessageKind = "queue-action-dictionary"
	MessageQueueActionLine       MessageKind = "queue-action-line"
	MessageFinishAndWait         MessageKind = "finish-and-wait"
)

// CallbackKind is one of the two events spec.md §6's callback port
// reports, realizing original_source's ReplayServer.h callback messages.
type CallbackKind string

const (
	CallbackHeartbeat CallbackKind = "heartbeat"
	CallbackExiting   CallbackKind = "exiting"
)

// ServerMessage is one newline-delimited JSON envelope read from the
// replay port.
type ServerMessage struct {
	Type MessageKind `json:"type"`
	Step *Step       `json:"step,omitempty"`
	Line string      `json:"line,omitempty"`
}

// CallbackMessage is one newline-delimited JSON envelope written to the
// callback port.
type CallbackMessage struct {
	Type    CallbackKind `json:"type"`
	Pending int          `json:"pending,omitempty"`
}

// SocketPaths returns the two Unix domain socket paths a server batch
// listens on, per SPEC_FULL.md §4: "<group>.replay-port.<batch-name>" and
// "<group>.dispatch-port.<batch-name>" under os.TempDir().
func SocketPaths(group, batchName string) (replayPort, dispatchPort string) {
	replayPort = filepath.Join(os.TempDir(), fmt.Sprintf("%s.replay-port.%s", group, batchName))
	dispatchPort = filepath.Join(os.TempDir(), fmt.Sprintf("%s.dispatch-port.%s", group, batchName))
	return
}

// Server accepts queued actions over a Unix domain socket and reports
// heartbeat/exit events over a second callback socket, resolving
// spec.md §9's "macOS named message port" open question (spec.md §6,
// §9 "Server mode transport").
type Server struct {
	ctx          *Context
	replayPort   string
	dispatchPort string

	tasks []*Task
}

// NewServer constructs a Server bound to the given socket paths. env and
// opts seed the shared Context for the lifetime of the batch.
func NewServer(replayPort, dispatchPort string, env map[string]string, opts Options) *Server {
	return &Server{
		ctx:          NewContext(env, opts),
		replayPort:   replayPort,
		dispatchPort: dispatchPort,
	}
}

// Serve listens on s.replayPort, processing messages until a
// finish-and-wait message arrives, then dispatches the accumulated tasks
// and returns. It removes any stale socket file left behind by a prior
// crashed run before binding.
func (s *Server) Serve() error {
	os.Remove(s.replayPort)
	listener, err := net.Listen("unix", s.replayPort)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", ErrIO, s.replayPort, err)
	}
	defer listener.Close()
	defer os.Remove(s.replayPort)

	cb, cbErr := s.dialCallback()
	if cbErr != nil {
		logger.Warn("callback port unavailable", "path", s.dispatchPort, "error", cbErr)
	}
	stopHeartbeat := s.startHeartbeat(cb)
	defer stopHeartbeat()

	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("%w: accept on %s: %v", ErrIO, s.replayPort, err)
		}
		done, err := s.handleConn(conn)
		conn.Close()
		if err != nil {
			return err
		}
		if done {
			break
		}
	}

	stopHeartbeat()
	if cb != nil {
		s.emitCallback(cb, CallbackMessage{Type: CallbackExiting})
		cb.Close()
	}
	return RunTasks(s.ctx, s.tasks)
}

func (s *Server) handleConn(conn net.Conn) (finished bool, err error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var msg ServerMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return false, fmt.Errorf("%w: server message: %v", ErrMalformedInput, err)
		}
		switch msg.Type {
		case MessageStartServer:
			logger.Info("server started", "replay_port", s.replayPort)
		case MessageQueueActionDictionary:
			if msg.Step == nil {
				return false, fmt.Errorf("%w: queue-action-dictionary missing step", ErrMalformedInput)
			}
			if err := msg.Step.validate(); err != nil {
				return false, err
			}
			made, err := parseStep(s.ctx, msg.Step)
			if err != nil {
				return false, err
			}
			s.tasks = append(s.tasks, made...)
		case MessageQueueActionLine:
			var step Step
			if err := json.Unmarshal([]byte(msg.Line), &step); err != nil {
				return false, fmt.Errorf("%w: queue-action-line: %v", ErrMalformedInput, err)
			}
			if err := step.validate(); err != nil {
				return false, err
			}
			made, err := parseStep(s.ctx, &step)
			if err != nil {
				return false, err
			}
			s.tasks = append(s.tasks, made...)
		case MessageFinishAndWait:
			return true, nil
		default:
			return false, fmt.Errorf("%w: unknown server message %q", ErrMalformedInput, msg.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return false, nil
}

func (s *Server) dialCallback() (net.Conn, error) {
	if s.dispatchPort == "" {
		return nil, nil
	}
	return net.Dial("unix", s.dispatchPort)
}

// startHeartbeat fires a heartbeat callback every 2 seconds while actions
// are queued, per SPEC_FULL.md SUPPLEMENT §4. It returns a stop function
// safe to call more than once.
func (s *Server) startHeartbeat(cb net.Conn) func() {
	if cb == nil {
		return func() {}
	}
	ticker := time.NewTicker(2 * time.Second)
	stop := make(chan struct{})
	var stopped bool
	go func() {
		for {
			select {
			case <-ticker.C:
				s.emitCallback(cb, CallbackMessage{Type: CallbackHeartbeat, Pending: len(s.tasks)})
			case <-stop:
				return
			}
		}
	}()
	return func() {
		if stopped {
			return
		}
		stopped = true
		ticker.Stop()
		close(stop)
	}
}

func (s *Server) emitCallback(cb net.Conn, msg CallbackMessage) {
	enc := json.NewEncoder(cb)
	if err := enc.Encode(msg); err != nil {
		logger.Warn("callback write failed", "error", err)
	}
}
