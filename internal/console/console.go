package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
	"github.com/rocketscienceinc/duel-backend/internal/session"
)

var ErrUnknownCommand = errors.New("unknown command")

type Command struct {
	Action entity.Action
	Leave  bool
}

var aliases = map[string]Command{
	"attack": {Action: entity.ActionAttack},
	"a":      {Action: entity.ActionAttack},
	"defend": {Action: entity.ActionDefend},
	"d":      {Action: entity.ActionDefend},
	"heal":   {Action: entity.ActionHeal},
	"h":      {Action: entity.ActionHeal},
	"leave":  {Leave: true},
	"q":      {Leave: true},
}

func ParseCommand(line string) (Command, error) {
	command, ok := aliases[strings.ToLower(strings.TrimSpace(line))]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, strings.TrimSpace(line))
	}

	return command, nil
}

type player interface {
	Events() <-chan session.Event
	Submit(ctx context.Context, action entity.Action) error
	Leave(ctx context.Context) error
}

// Play connects a terminal to a session until the session stops or ctx is done.
func Play(ctx context.Context, in io.Reader, out io.Writer, p player) error {
	lines := make(chan string)

	// the scanner blocks on in, it ends with the process
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	renderer := NewRenderer(out)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-p.Events():
			if !ok {
				return nil
			}

			if err := renderer.Render(event); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				// stdin closed, keep following the match
				lines = nil
				continue
			}

			if strings.TrimSpace(line) == "" {
				continue
			}

			if err := handleLine(ctx, out, p, line); err != nil {
				return err
			}
		}
	}
}

func handleLine(ctx context.Context, out io.Writer, p player, line string) error {
	command, err := ParseCommand(line)
	if err != nil {
		_, err = fmt.Fprintln(out, "Commands: attack (a), defend (d), heal (h), leave (q)")
		return err
	}

	if command.Leave {
		if err = p.Leave(ctx); err != nil && !errors.Is(err, session.ErrSessionClosed) {
			_, err = fmt.Fprintf(out, "Could not leave: %v\n", err)
			return err
		}

		return nil
	}

	err = p.Submit(ctx, command.Action)

	switch {
	case err == nil:
		_, err = fmt.Fprintf(out, "You chose %s.\n", command.Action)
	case errors.Is(err, apperror.ErrNotYourTurn):
		_, err = fmt.Fprintln(out, "Wait for your opponent.")
	case errors.Is(err, apperror.ErrActionAlreadySubmitted):
		_, err = fmt.Fprintln(out, "You already acted this turn.")
	case errors.Is(err, session.ErrSessionClosed), apperror.IsPrecondition(err):
		_, err = fmt.Fprintln(out, "The match is not running.")
	default:
		// the session already shows a notice for store failures
		err = nil
	}

	return err
}

// Renderer prints session events as plain text. It remembers how much history was shown.
type Renderer struct {
	w    io.Writer
	seen int
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (that *Renderer) Render(event session.Event) error {
	var b strings.Builder

	switch event.Kind {
	case session.EventSnapshot:
		that.snapshot(&b, event.View)
	case session.EventNotice, session.EventEnded:
		b.WriteString("* " + event.Message + "\n")
	case session.EventFatal:
		b.WriteString("! " + event.Message + "\n")
	}

	_, err := io.WriteString(that.w, b.String())

	return err
}

func (that *Renderer) snapshot(b *strings.Builder, view session.View) {
	if len(view.History) < that.seen {
		that.seen = 0
	}

	for _, line := range view.History[that.seen:] {
		b.WriteString("  " + line + "\n")
	}
	that.seen = len(view.History)

	if view.Status == entity.StatusWaiting {
		fmt.Fprintf(b, "[%s] waiting for an opponent\n", view.Code)
		return
	}

	fmt.Fprintf(b, "[%s] turn %d | %s %d/%d vs %s %d/%d\n", view.Code, view.Turn,
		view.Me.Pseudo, view.Me.PV, entity.MaxPV, view.Opponent.Pseudo, view.Opponent.PV, entity.MaxPV)

	switch {
	case view.Terminal:
	case view.NeedsAction:
		fmt.Fprintf(b, "Your move (attack/defend/heal), %ds left\n", view.SecondsLeft)
	default:
		fmt.Fprintf(b, "Waiting for %s...\n", view.Opponent.Pseudo)
	}
}
