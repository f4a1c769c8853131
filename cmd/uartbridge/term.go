package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"uartbridge/internal/config"
	"uartbridge/internal/nmea"
	"uartbridge/internal/transport"
)

const termHelp = `Type a sentence to send it to the device.
  $PMTK605*31     sent as typed, CR LF appended
  PMTK605         framed with '$', checksum and CR LF
  :status         acquisition counters
  :quit           exit
`

// termCommand turns one console line into bytes to transmit. quit reports
// whether the console should exit; show names a local command to run.
func termCommand(line string) (tx []byte, show string, quit bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil, "", false, nil
	case line == ":quit" || line == ":q" || line == "exit":
		return nil, "", true, nil
	case strings.HasPrefix(line, ":"):
		switch line {
		case ":status", ":help":
			return nil, line[1:], false, nil
		}
		return nil, "", false, fmt.Errorf("unknown command %q", line)
	case line[0] == '$' || line[0] == '!':
		return []byte(line + "\r\n"), "", false, nil
	default:
		return nmea.Command(line), "", false, nil
	}
}

// runTerm acquires in the background and prints every sentence above the
// prompt while the user types commands for the device. Typed commands are
// handed to the service so the bridge is only driven from its goroutine.
func runTerm(ctx context.Context, cancel context.CancelFunc, cfg config.Config, t *transport.Transport) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "uart> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	var closeOnce sync.Once
	closeRL := func() { closeOnce.Do(func() { _ = rl.Close() }) }
	defer closeRL()
	log.SetOutput(rl.Stderr())
	defer log.SetOutput(os.Stderr)

	svc := newService(cfg, t)
	svc.OnSentence = func(s nmea.Sentence) {
		fmt.Fprintf(rl.Stdout(), "< %s\n", s.Trimmed())
	}

	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
		// Unblock Readline when acquisition ends on its own.
		cancel()
		closeRL()
	}()

	fmt.Fprint(rl.Stdout(), termHelp)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			break
		}

		tx, show, quit, err := termCommand(line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
			continue
		}
		if quit {
			break
		}
		switch show {
		case "help":
			fmt.Fprint(rl.Stdout(), termHelp)
		case "status":
			snap := svc.Snapshot()
			fmt.Fprintf(rl.Stdout(), "sentences=%d overflows=%d bad_checksums=%d last=%q err=%q\n",
				snap.Sentences, snap.Overflows, snap.BadChecksums, snap.LastSentence, snap.LastError)
		}
		if len(tx) > 0 {
			if err := svc.Transmit(ctx, tx); err != nil {
				fmt.Fprintf(rl.Stderr(), "transmit failed: %v\n", err)
				continue
			}
			fmt.Fprintf(rl.Stdout(), "> %s\n", strings.TrimSpace(string(tx)))
		}
	}

	cancel()
	return <-done
}
