package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/phinze/overlaystudio/internal/coordinator"
	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrQuit is returned by Exec when the user asks to leave.
var ErrQuit = errors.New("quit")

// Console maps line commands onto the editor: playback controls, overlay
// edits through the store's setters, and export.
type Console struct {
	coord     *coordinator.Coordinator
	out       io.Writer
	exportDir string
	logger    zerolog.Logger

	commands map[string]command
}

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

// NewConsole creates a console writing responses to out. Exports go to
// exportDir.
func NewConsole(coord *coordinator.Coordinator, out io.Writer, exportDir string, logger zerolog.Logger) *Console {
	c := &Console{
		coord:     coord,
		out:       out,
		exportDir: exportDir,
		logger:    logger.With().Str("component", "console").Logger(),
	}
	c.commands = map[string]command{
		"play":   {"play", c.play},
		"pause":  {"pause", c.pause},
		"toggle": {"toggle", c.toggle},
		"seek":   {"seek <position>", c.seek},
		"list":   {"list", c.list},
		"add":    {"add [key=value,...]", c.add},
		"remove": {"remove <id>", c.remove},
		"select": {"select <id>", c.selectOverlay},
		"text":   {"text <id> <text...>", c.setText},
		"move":   {"move <id> <x> <y>", c.move},
		"x":      {"x <id> <percent>", c.setX},
		"y":      {"y <id> <percent>", c.setY},
		"size":   {"size <id> <px>", c.setSize},
		"color":  {"color <id> <color>", c.setColor},
		"weight": {"weight <id> normal|bold", c.setWeight},
		"family": {"family <id> <family...>", c.setFamily},
		"export": {"export", c.export},
		"help":   {"help", c.help},
	}
	return c
}

// Run reads commands from in until EOF, quit, or ctx is done. Command
// errors are reported to out and do not stop the console.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
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
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			err := c.Exec(ctx, line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	if name == "quit" || name == "exit" {
		return ErrQuit
	}
	cmd, ok := c.commands[name]
	if !ok {
		return errors.Errorf("unknown command %q (try help)", name)
	}

	c.logger.Debug().Str("command", name).Strs("args", fields[1:]).Msg("exec")
	return cmd.run(ctx, fields[1:])
}

func (c *Console) play(ctx context.Context, args []string) error {
	if err := c.coord.Play(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "playing")
	return nil
}

func (c *Console) pause(ctx context.Context, args []string) error {
	c.coord.Pause()
	fmt.Fprintf(c.out, "paused at %s\n", formatDuration(c.coord.Position()))
	return nil
}

func (c *Console) toggle(ctx context.Context, args []string) error {
	state, err := c.coord.Toggle()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, state)
	return nil
}

func (c *Console) seek(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("seek <position>")
	}
	t, err := ParsePosition(args[0])
	if err != nil {
		return err
	}
	if err := c.coord.Seek(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "at %s\n", formatDuration(c.coord.Position()))
	return nil
}

func (c *Console) list(ctx context.Context, args []string) error {
	store := c.coord.Store()
	selected := store.SelectedID()
	for _, o := range store.List() {
		marker := " "
		if o.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %d %q x=%.0f y=%.0f size=%.0f color=%s weight=%s family=%q\n",
			marker, o.ID, o.Text, o.X, o.Y, o.FontSize, o.Color, o.FontWeight, o.FontFamily)
	}
	return nil
}

func (c *Console) add(ctx context.Context, args []string) error {
	fields, err := ParseOverlay(strings.Join(args, " "))
	if err != nil {
		return err
	}
	id := c.coord.Store().Add(fields)
	fmt.Fprintf(c.out, "added %d\n", id)
	return nil
}

func (c *Console) remove(ctx context.Context, args []string) error {
	id, err := idArg(args, 1, "remove <id>")
	if err != nil {
		return err
	}
	c.coord.Store().Remove(id)
	return nil
}

func (c *Console) selectOverlay(ctx context.Context, args []string) error {
	id, err := idArg(args, 1, "select <id>")
	if err != nil {
		return err
	}
	c.coord.Store().Select(id)
	return nil
}

func (c *Console) setText(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("text <id> <text...>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrap(err, "id")
	}
	c.coord.Store().SetText(id, strings.Join(args[1:], " "))
	return nil
}

func (c *Console) move(ctx context.Context, args []string) error {
	id, err := idArg(args, 3, "move <id> <x> <y>")
	if err != nil {
		return err
	}
	x, err := floatArg(args[1])
	if err != nil {
		return err
	}
	y, err := floatArg(args[2])
	if err != nil {
		return err
	}
	c.coord.Store().SetPosition(id, x, y)
	return nil
}

func (c *Console) setX(ctx context.Context, args []string) error {
	return c.setFloat(args, "x <id> <percent>", c.coord.Store().SetX)
}

func (c *Console) setY(ctx context.Context, args []string) error {
	return c.setFloat(args, "y <id> <percent>", c.coord.Store().SetY)
}

func (c *Console) setSize(ctx context.Context, args []string) error {
	return c.setFloat(args, "size <id> <px>", c.coord.Store().SetFontSize)
}

func (c *Console) setFloat(args []string, usage string, set func(int, float64) bool) error {
	id, err := idArg(args, 2, usage)
	if err != nil {
		return err
	}
	v, err := floatArg(args[1])
	if err != nil {
		return err
	}
	set(id, v)
	return nil
}

func (c *Console) setColor(ctx context.Context, args []string) error {
	id, err := idArg(args, 2, "color <id> <color>")
	if err != nil {
		return err
	}
	c.coord.Store().SetColor(id, args[1])
	return nil
}

func (c *Console) setWeight(ctx context.Context, args []string) error {
	id, err := idArg(args, 2, "weight <id> normal|bold")
	if err != nil {
		return err
	}
	w, err := ParseWeight(args[1])
	if err != nil {
		return err
	}
	c.coord.Store().SetFontWeight(id, w)
	return nil
}

func (c *Console) setFamily(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("family <id> <family...>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrap(err, "id")
	}
	c.coord.Store().SetFontFamily(id, strings.Join(args[1:], " "))
	return nil
}

func (c *Console) export(ctx context.Context, args []string) error {
	path, err := c.coord.SaveCurrentFrame(ctx, c.exportDir)
	if errors.Is(err, coordinator.ErrNoSource) {
		return errors.New("export unavailable: no video loaded")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %s\n", path)
	return nil
}

func (c *Console) help(ctx context.Context, args []string) error {
	usages := make([]string, 0, len(c.commands)+1)
	for _, cmd := range c.commands {
		usages = append(usages, cmd.usage)
	}
	usages = append(usages, "quit")
	sort.Strings(usages)
	for _, u := range usages {
		fmt.Fprintln(c.out, "  "+u)
	}
	fmt.Fprintf(c.out, "families: %s\n", strings.Join(overlay.Families, ", "))
	return nil
}

func usageError(usage string) error {
	return errors.Errorf("usage: %s", usage)
}

func idArg(args []string, n int, usage string) (int, error) {
	if len(args) != n {
		return 0, usageError(usage)
	}
	id, err := strconv.Atoi(args[0])
	return id, errors.Wrap(err, "id")
}

func floatArg(s string) (float64, error) {
	v, err := parseNumber(s)
	return v, errors.Wrapf(err, "number %q", s)
}
