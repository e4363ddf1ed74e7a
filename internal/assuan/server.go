package assuan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"wayentry/internal/dialog"
	"wayentry/internal/logging"
	"wayentry/internal/security"
)

// Version reported through GETINFO.
const Version = "0.3.0"

// Prompter shows the entry dialog and blocks for its result. The server
// never talks to the display itself; cmd wires dialog.Run in here, tests
// wire a fake.
type Prompter func(ctx context.Context, p dialog.Params) dialog.Result

// Server speaks Assuan on a single connection, usually stdin/stdout.
// One command is in flight at a time; the dialog holds the line while
// it is up, exactly as gpg-agent expects from a pinentry.
type Server struct {
	r      *bufio.Reader
	w      *bufio.Writer
	out    io.Writer
	logger *slog.Logger
	prompt Prompter

	// Session state set by SET* commands, consumed by GETPIN and CONFIRM.
	desc        string
	promptLabel string
	title       string
	errorText   string
	options     map[string]string
}

// NewServer creates a server over r and w.
func NewServer(r io.Reader, w io.Writer, logger *slog.Logger, prompt Prompter) *Server {
	return &Server{
		r:       bufio.NewReader(r),
		w:       bufio.NewWriter(w),
		out:     w,
		logger:  logger,
		prompt:  prompt,
		options: make(map[string]string),
	}
}

// Serve runs the command loop until BYE, EOF or a write failure. The
// greeting goes out first; gpg-agent waits for it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.reply("OK Pleased to meet you"); err != nil {
		return err
	}

	for {
		line, err := s.r.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		cmd, args := splitCommand(line)
		if cmd == "" {
			continue
		}
		s.logger.Debug("command received", "command", cmd)

		done, err := s.dispatch(ctx, cmd, args)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// dispatch handles one command. The returned bool ends the session.
func (s *Server) dispatch(ctx context.Context, cmd, args string) (bool, error) {
	switch cmd {
	case "BYE":
		return true, s.reply("OK closing connection")

	case "NOP":
		return false, s.ok()

	case "RESET":
		s.desc = ""
		s.promptLabel = ""
		s.title = ""
		s.errorText = ""
		return false, s.ok()

	case "OPTION":
		key, value, _ := strings.Cut(args, "=")
		s.options[strings.TrimSpace(key)] = strings.TrimSpace(value)
		return false, s.ok()

	case "SETDESC":
		s.desc = Unescape(args)
		return false, s.ok()

	case "SETPROMPT":
		s.promptLabel = Unescape(args)
		return false, s.ok()

	case "SETTITLE":
		s.title = Unescape(args)
		return false, s.ok()

	case "SETERROR":
		s.errorText = Unescape(args)
		return false, s.ok()

	case "SETOK", "SETCANCEL", "SETREPEAT", "SETQUALITYBAR", "SETQUALITYBAR_TT", "SETKEYINFO", "SETTIMEOUT":
		// Accepted for peer compatibility; the dialog has no buttons,
		// repeat field or quality bar to apply them to.
		return false, s.ok()

	case "GETINFO":
		return false, s.getInfo(args)

	case "GETPIN":
		return false, s.getPin(ctx)

	case "CONFIRM":
		return false, s.confirm(ctx, true)

	case "MESSAGE":
		return false, s.confirm(ctx, false)

	case "HELP":
		for _, c := range []string{
			"GETPIN", "CONFIRM", "MESSAGE", "SETDESC", "SETPROMPT", "SETTITLE",
			"SETERROR", "OPTION", "GETINFO", "RESET", "NOP", "BYE",
		} {
			if err := s.comment(c); err != nil {
				return false, err
			}
		}
		return false, s.ok()

	default:
		s.logger.Warn("unknown command", "command", cmd)
		return false, s.replyErr(codeUnknownCommand, "Unknown IPC command")
	}
}

// getPin runs one entry session. SETERROR text is consumed by the
// attempt that displays it; the next GETPIN starts clean.
func (s *Server) getPin(ctx context.Context) error {
	params := dialog.Params{
		Title:       s.title,
		Description: s.desc,
		Prompt:      s.promptLabel,
		ErrorText:   s.errorText,
	}
	s.errorText = ""

	res := s.prompt(ctx, params)
	switch res.Kind {
	case dialog.ResultConfirmed:
		if err := security.Lock(res.Secret); err == nil {
			defer security.Unlock(res.Secret)
		}
		defer security.Wipe(res.Secret)
		if len(res.Secret) > 0 {
			if err := s.writeSecretLine(res.Secret); err != nil {
				return err
			}
		}
		s.logger.Info("entry confirmed", "length", len(res.Secret), logging.Secret("pin"))
		return s.ok()
	case dialog.ResultCancelled:
		s.logger.Info("entry cancelled")
		return s.replyErr(codeCancelled, "Operation cancelled")
	default:
		s.logger.Error("entry failed", "error", res.Err)
		return s.replyErr(codeGeneral, "Display error")
	}
}

// confirm runs a yes/no dialog. For MESSAGE (strict=false) a dismissal
// still answers OK; only a display failure is an error.
func (s *Server) confirm(ctx context.Context, strict bool) error {
	params := dialog.Params{
		Title:       s.title,
		Description: s.desc,
		ErrorText:   s.errorText,
		ConfirmOnly: true,
	}
	s.errorText = ""

	res := s.prompt(ctx, params)
	switch res.Kind {
	case dialog.ResultConfirmed:
		return s.ok()
	case dialog.ResultCancelled:
		if !strict {
			return s.ok()
		}
		return s.replyErr(codeCancelled, "Operation cancelled")
	default:
		s.logger.Error("confirm failed", "error", res.Err)
		return s.replyErr(codeGeneral, "Display error")
	}
}

func (s *Server) getInfo(args string) error {
	switch strings.ToLower(args) {
	case "version":
		if err := s.reply("D " + Version); err != nil {
			return err
		}
	case "pid":
		if err := s.reply(fmt.Sprintf("D %d", os.Getpid())); err != nil {
			return err
		}
	case "flavor":
		if err := s.reply("D wayentry"); err != nil {
			return err
		}
	case "ttyinfo":
		if err := s.reply("D - - -"); err != nil {
			return err
		}
	}
	return s.ok()
}

// writeSecretLine sends the D response holding the entry. The line is
// assembled in a byte buffer and written past the bufio layer, so no
// copy of the secret survives in a string or a retained write buffer;
// everything this function allocates is wiped before it returns.
func (s *Server) writeSecretLine(secret []byte) error {
	esc := Escape(secret)
	defer security.Wipe(esc)

	line := make([]byte, 0, len(esc)+3)
	line = append(line, 'D', ' ')
	line = append(line, esc...)
	line = append(line, '\n')
	defer security.Wipe(line)

	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush before data line: %w", err)
	}
	if _, err := s.out.Write(line); err != nil {
		return fmt.Errorf("write data line: %w", err)
	}
	return nil
}

func (s *Server) ok() error {
	return s.reply("OK")
}

func (s *Server) comment(text string) error {
	return s.reply("# " + text)
}

func (s *Server) replyErr(code int, text string) error {
	return s.reply(fmt.Sprintf("ERR %d %s <Pinentry>", code, text))
}

func (s *Server) reply(line string) error {
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush reply: %w", err)
	}
	return nil
}
