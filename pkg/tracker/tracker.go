// Package tracker turns connect and disconnect events into sessions.
//
// Events arrive either through direct calls or as a line protocol:
//
//	connect <uuid> [name]
//	disconnect <uuid>
//
// The same stream may carry commands, which are handed to a Commander so they
// run against the sessions this process holds open:
//
//	show <player>
//	top [n]
//	set <player> <duration...>
//	add <player> <duration...>     (also modify, mod)
//	reset <player>                 (also delete, del)
//
// Blank lines and lines starting with '#' are ignored.
package tracker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/0xmhha/onlinetime/pkg/identity"
	"github.com/0xmhha/onlinetime/pkg/logger"
)

// Sessions opens and closes sessions.
type Sessions interface {
	Start(ctx context.Context, id uuid.UUID, at time.Time) error
	StopAndCommit(ctx context.Context, id uuid.UUID, at time.Time) error
}

// NameIndex records the current name of an identity.
type NameIndex interface {
	SetEntry(ctx context.Context, id uuid.UUID, name string) error
}

// Commander runs a command line. name is the lower-cased command word.
type Commander interface {
	Command(ctx context.Context, name string, args []string) error
}

// Kind is the type of an Event.
type Kind int

const (
	Connect Kind = iota
	Disconnect
	Command
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Command:
		return "command"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is a single connect, disconnect or command. Name and Args are set
// for commands only.
type Event struct {
	Kind     Kind
	Identity identity.Identity
	Name     string
	Args     []string
}

// commandArgs is the allowed argument count of each command, as min and max.
// A max of -1 means unbounded.
var commandArgs = map[string][2]int{
	"show":   {1, 1},
	"top":    {0, 1},
	"set":    {2, -1},
	"add":    {2, -1},
	"modify": {2, -1},
	"mod":    {2, -1},
	"reset":  {1, 1},
	"delete": {1, 1},
	"del":    {1, 1},
}

// Tracker applies events to the session accumulator and the name index.
type Tracker struct {
	sessions Sessions
	names    NameIndex
	commands Commander
	clock    quartz.Clock
	logger   logger.Logger
}

// New creates a Tracker. A nil clock means the real clock; a nil logger
// discards output.
func New(sessions Sessions, names NameIndex, clock quartz.Clock, log logger.Logger) *Tracker {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Tracker{sessions: sessions, names: names, clock: clock, logger: log}
}

// WithCommander attaches c to run command lines and returns t.
func (t *Tracker) WithCommander(c Commander) *Tracker {
	t.commands = c
	return t
}

// Connect records the identity's current name and starts its session. A
// failed name update is logged and tracking still starts.
func (t *Tracker) Connect(ctx context.Context, ident identity.Identity, at time.Time) error {
	if ident.Name != "" {
		if err := t.names.SetEntry(ctx, ident.ID, ident.Name); err != nil {
			t.logger.Warn("failed to update name index", "id", ident.ID, "name", ident.Name, "error", err)
		}
	}
	if err := t.sessions.Start(ctx, ident.ID, at); err != nil {
		return fmt.Errorf("failed to start session for %s: %w", ident, err)
	}
	t.logger.Info("connected", "id", ident.ID, "name", ident.Name)
	return nil
}

// Disconnect closes the identity's session and commits its time.
func (t *Tracker) Disconnect(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := t.sessions.StopAndCommit(ctx, id, at); err != nil {
		return fmt.Errorf("failed to commit session for %s: %w", id, err)
	}
	t.logger.Info("disconnected", "id", id)
	return nil
}

// Apply dispatches ev at time at.
func (t *Tracker) Apply(ctx context.Context, ev Event, at time.Time) error {
	switch ev.Kind {
	case Connect:
		return t.Connect(ctx, ev.Identity, at)
	case Disconnect:
		return t.Disconnect(ctx, ev.Identity.ID, at)
	case Command:
		if t.commands == nil {
			return fmt.Errorf("%w: %s", ErrNoCommander, ev.Name)
		}
		return t.commands.Command(ctx, ev.Name, ev.Args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}
}

// Feed reads events from r until EOF or ctx is cancelled and applies each at
// the time it is read. Malformed lines and failed commands are logged and
// skipped; the first failure to apply a connect or disconnect is returned.
func (t *Tracker) Feed(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++

		ev, ok, err := ParseEvent(scanner.Text())
		if err != nil {
			t.logger.Warn("skipping event", "line", lineNo, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := t.Apply(ctx, ev, t.clock.Now()); err != nil {
			if ev.Kind == Command {
				t.logger.Warn("command failed", "line", lineNo, "command", ev.Name, "error", err)
				continue
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return nil
}

// ParseEvent decodes one line. ok is false for blank and comment lines.
func ParseEvent(line string) (ev Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Event{}, false, nil
	}

	fields := strings.Fields(line)
	word := strings.ToLower(fields[0])

	if limits, isCommand := commandArgs[word]; isCommand {
		args := fields[1:]
		if len(args) < limits[0] || (limits[1] >= 0 && len(args) > limits[1]) {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedEvent, line)
		}
		return Event{Kind: Command, Name: word, Args: args}, true, nil
	}

	switch word {
	case "connect":
		if len(fields) < 2 || len(fields) > 3 {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedEvent, line)
		}
		id, err := identity.Parse(fields[1])
		if err != nil {
			return Event{}, false, fmt.Errorf("%w: %q: %v", ErrMalformedEvent, line, err)
		}
		name := ""
		if len(fields) == 3 {
			name = fields[2]
		}
		return Event{Kind: Connect, Identity: identity.New(id, name)}, true, nil
	case "disconnect":
		if len(fields) != 2 {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedEvent, line)
		}
		id, err := identity.Parse(fields[1])
		if err != nil {
			return Event{}, false, fmt.Errorf("%w: %q: %v", ErrMalformedEvent, line, err)
		}
		return Event{Kind: Disconnect, Identity: identity.New(id, "")}, true, nil
	default:
		return Event{}, false, fmt.Errorf("%w: %q", ErrUnknownEvent, fields[0])
	}
}
