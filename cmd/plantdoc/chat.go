package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vbonduro/plantdoc/internal/service"
	"github.com/vbonduro/plantdoc/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Diagnose a plant interactively in the terminal",
	Long: `Start a terminal conversation.

  /image <path>   upload a photo (starts a new diagnosis)
  /new            clear the conversation
  /quit           exit

Anything else is sent as your reply.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to LOG_FILE only so they do not interleave with the chat.
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		return newChat(a.service, cmd.InOrStdin(), cmd.OutOrStdout()).run(cmd.Context())
	},
}

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

// Local markers in the slot's event stream.
const (
	turnEnd     session.EventType = "turn_end"
	reportReady session.EventType = "report_ready"
)

type commandKind int

const (
	cmdText commandKind = iota
	cmdImage
	cmdNew
	cmdQuit
	cmdEmpty
	cmdUnknown
)

type chatCommand struct {
	kind commandKind
	arg  string
}

func parseChatLine(line string) chatCommand {
	line = strings.TrimSpace(line)
	if line == "" {
		return chatCommand{kind: cmdEmpty}
	}
	if !strings.HasPrefix(line, "/") {
		return chatCommand{kind: cmdText, arg: line}
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/image":
		return chatCommand{kind: cmdImage, arg: arg}
	case "/new":
		return chatCommand{kind: cmdNew}
	case "/quit", "/exit":
		return chatCommand{kind: cmdQuit}
	default:
		return chatCommand{kind: cmdUnknown, arg: name}
	}
}

type chat struct {
	svc  *service.ConversationService
	slot *session.Slot
	in   io.Reader
	out  io.Writer
	md   *glamour.TermRenderer
}

func newChat(svc *service.ConversationService, in io.Reader, out io.Writer) *chat {
	md, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	return &chat{svc: svc, slot: session.NewSlot("terminal"), in: in, out: out, md: md}
}

func (c *chat) run(ctx context.Context) error {
	events, cancel := c.slot.Hub.Subscribe(1024)
	defer cancel()
	done := make(chan struct{})
	go c.print(events, done)

	fmt.Fprintln(c.out, assistantStyle.Render("plantdoc")+" Upload a photo with /image <path> to start.")
	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		command := parseChatLine(scanner.Text())
		if command.kind == cmdQuit {
			return nil
		}
		if err := c.dispatch(ctx, command); err != nil {
			fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
			continue
		}
		c.slot.Hub.Publish(session.Event{Type: turnEnd})
		<-done
	}
}

// dispatch runs one command. A Ctrl-C while a model call is running cancels
// that turn only.
func (c *chat) dispatch(ctx context.Context, command chatCommand) error {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var (
		turn *service.Turn
		err  error
	)
	switch command.kind {
	case cmdEmpty:
		return fmt.Errorf("type a message, or /image <path> to upload a photo")
	case cmdUnknown:
		return fmt.Errorf("unknown command %s", command.arg)
	case cmdNew:
		turn, err = c.svc.NewConversation(turnCtx, c.slot)
	case cmdImage:
		data, mimeType, rerr := readImage(command.arg)
		if rerr != nil {
			return rerr
		}
		turn, err = c.svc.UploadImage(turnCtx, c.slot, data, mimeType)
	default:
		turn, err = c.svc.SendMessage(turnCtx, c.slot, command.arg)
	}
	if err != nil {
		return err
	}
	if turn.Completed {
		c.slot.Hub.Publish(session.Event{Type: reportReady, Text: c.svc.Snapshot(c.slot).FinalReport})
	}
	return nil
}

// print renders slot events. Streamed text is shown raw as it arrives; a
// message that was not streamed is rendered as markdown. A completed report
// is rendered once more in full.
func (c *chat) print(events <-chan session.Event, done chan<- struct{}) {
	defer close(done)
	streamed := false
	for ev := range events {
		switch ev.Type {
		case session.EventChunk:
			if !streamed {
				fmt.Fprint(c.out, assistantStyle.Render("plantdoc")+" ")
				streamed = true
			}
			fmt.Fprint(c.out, dimStyle.Render(ev.Text))
		case session.EventAssistantMessage:
			if streamed {
				fmt.Fprintln(c.out)
			} else {
				fmt.Fprintln(c.out, assistantStyle.Render("plantdoc"))
				fmt.Fprintln(c.out, c.render(ev.Message.Content))
			}
		case reportReady:
			fmt.Fprintln(c.out, c.render(ev.Text))
		case session.EventError:
			if streamed {
				fmt.Fprintln(c.out)
			}
			fmt.Fprintln(c.out, errorStyle.Render(ev.Text))
		case session.EventReset:
			fmt.Fprintln(c.out, dimStyle.Render("(conversation cleared)"))
		case turnEnd:
			streamed = false
			done <- struct{}{}
		}
	}
}

func (c *chat) render(markdown string) string {
	if c.md == nil {
		return markdown
	}
	out, err := c.md.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

func readImage(path string) ([]byte, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("usage: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}
