package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"uartbridge/internal/bridge"
	"uartbridge/internal/capture"
	"uartbridge/internal/config"
	"uartbridge/internal/gps"
	"uartbridge/internal/transport"
	"uartbridge/internal/udp"
)

func main() {
	var configPath string
	var speed float64
	var loop bool
	flag.StringVar(&configPath, "config", "./uartbridge.yaml", "Path to YAML config")
	flag.Float64Var(&speed, "speed", 1, "Replay speed multiplier")
	flag.BoolVar(&loop, "loop", false, "Replay in a loop")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [run|status|term|summary <capture>|replay <capture>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "run"
	}

	// Capture tools need no hardware or config.
	switch cmd {
	case "summary":
		if err := printCaptureSummary(os.Stdout, flag.Arg(1)); err != nil {
			log.Fatalf("summary failed: %v", err)
		}
		return
	case "replay":
		if err := replayCapture(os.Stdout, flag.Arg(1), speed, loop); err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		return
	case "run", "status", "term":
	default:
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, err := transport.Open(cfg.TransportOptions())
	if err != nil {
		log.Fatalf("transport open failed kind=%s: %v", cfg.Transport.Kind, err)
	}
	defer t.Close()

	switch cmd {
	case "status":
		err = printStatus(os.Stdout, t)
	case "term":
		err = runTerm(ctx, cancel, cfg, t)
	default:
		err = run(ctx, cfg, t)
	}
	if err != nil {
		log.Printf("uartbridge %s failed: %v", cmd, err)
		_ = t.Close()
		os.Exit(1)
	}
}

func newService(cfg config.Config, t bridge.Channel) *bridge.Service {
	return bridge.New(bridge.Config{
		Role:         bridge.Role(cfg.GPS.Role),
		UpdateRate:   gps.UpdateRate(cfg.GPS.UpdateRate),
		OutputSet:    gps.OutputSet(cfg.GPS.OutputSet),
		MaxSentence:  cfg.Bridge.MaxSentence,
		PollInterval: cfg.Bridge.PollInterval,
		Verbose:      cfg.Bridge.Verbose,
	}, t)
}

func run(ctx context.Context, cfg config.Config, t *transport.Transport) error {
	svc := newService(cfg, t)

	if cfg.Capture.Enable {
		w, err := capture.Create(cfg.Capture.Path, capture.Format(cfg.Capture.Format))
		if err != nil {
			return fmt.Errorf("capture open: %w", err)
		}
		defer w.Close()
		log.Printf("capture enabled path=%s format=%s session=%s", cfg.Capture.Path, cfg.Capture.Format, w.Session())
		svc.WithRecorder(w)
	}
	if cfg.Forward.Dest != "" {
		f, err := udp.NewForwarder(cfg.Forward.Dest)
		if err != nil {
			return fmt.Errorf("forward init: %w", err)
		}
		defer f.Close()
		log.Printf("udp forward dest=%s", f.Dest())
		svc.WithSender(f)
	}

	log.Printf("uartbridge starting kind=%s role=%s baud=%d", t.Kind, cfg.GPS.Role, t.Baud())
	err := svc.Run(ctx)
	snap := svc.Snapshot()
	log.Printf("uartbridge stopping sentences=%d overflows=%d bad_checksums=%d", snap.Sentences, snap.Overflows, snap.BadChecksums)
	return err
}

func printStatus(out io.Writer, t *transport.Transport) error {
	br := t.Bridge()
	if br == nil {
		return fmt.Errorf("status needs the bridged transport (kind=%s)", t.Kind)
	}
	st, err := br.Status()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, st.String())
	return err
}
