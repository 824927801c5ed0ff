// Command dictate runs the capture pipeline against a WAV file: the file is
// replayed as if it were a live microphone, transcribed through the
// configured backend, and partial/final transcripts are printed as they
// arrive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/johnmichaelkuczynski/dictate/internal/capture"
	"github.com/johnmichaelkuczynski/dictate/internal/config"
	"github.com/johnmichaelkuczynski/dictate/internal/health"
	"github.com/johnmichaelkuczynski/dictate/internal/observe"
	"github.com/johnmichaelkuczynski/dictate/internal/vocab"
	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
	"github.com/johnmichaelkuczynski/dictate/pkg/audio/wavfile"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport/batch"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport/stream"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	inputPath := flag.String("input", "", "path to the WAV file to transcribe")
	modeFlag := flag.String("mode", "", "transport mode override: streaming or batch")
	realtime := flag.Bool("realtime", false, "pace file replay at its natural playback rate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dictate: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dictate: %v\n", err)
		}
		return 1
	}
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "dictate: -input is required")
		return 1
	}

	mode := capture.Mode(cfg.Capture.Mode)
	if *modeFlag != "" {
		mode = capture.Mode(*modeFlag)
	}
	if mode != capture.ModeStreaming && mode != capture.ModeBatch {
		fmt.Fprintf(os.Stderr, "dictate: invalid mode %q\n", mode)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "dictate"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(health.Backend(backendProbeURL(cfg), nil)).Register(mux)
		srv := &http.Server{Addr: addr, Handler: mux}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(closeCtx)
		})
		slog.Info("metrics endpoint ready", "addr", addr)
	}

	g.Go(func() error {
		return transcribeFile(gctx, cfg, mode, *inputPath, *realtime)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dictate failed", "err", err)
		return 1
	}
	return 0
}

// transcribeFile runs one capture attempt over the WAV file and blocks until
// the session settles back to Idle.
func transcribeFile(ctx context.Context, cfg *config.Config, mode capture.Mode, path string, realtime bool) error {
	ctx, span := observe.StartSpan(ctx, "dictate.transcribe_file")
	defer span.End()
	log := observe.Logger(ctx)

	done := make(chan struct{})
	var failed error

	session, err := capture.New(capture.Config{
		NewSource: func() audio.Source {
			return wavfile.New(path, wavfile.WithRealtime(realtime))
		},
		NewTransport:     newTransportFactory(cfg),
		TargetRate:       cfg.Capture.TargetSampleRate,
		ChunkSamples:     cfg.Capture.ChunkSamples,
		MaxDuration:      cfg.Capture.MaxDuration(),
		SilenceThreshold: cfg.Capture.SilenceThreshold,
		MinPayloadBytes:  cfg.Capture.MinPayloadBytes,
		CorrectFinal:     newVocabCorrection(cfg.Capture.Vocabulary),
		Metrics:          observe.DefaultMetrics(),
	}, capture.Callbacks{
		OnPartial: func(text string) {
			fmt.Printf("\r… %s", text)
		},
		OnFinal: func(text string) {
			fmt.Printf("\r%s\n", text)
		},
		OnError: func(kind capture.ErrorKind, message string) {
			failed = fmt.Errorf("%s: %s", kind, message)
		},
		OnStateChange: func(state capture.State) {
			log.Debug("capture state changed", "state", state.String())
			if state == capture.StateIdle {
				close(done)
			}
		},
	})
	if err != nil {
		return err
	}

	id := session.Start(capture.Options{Mode: mode})
	log.Info("transcription started", "session_id", id, "mode", mode, "input", path)

	select {
	case <-done:
	case <-ctx.Done():
		session.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
		return ctx.Err()
	}

	if failed != nil {
		return failed
	}
	log.Info("transcription finished", "text", session.AccumulatedText())
	return nil
}

// newTransportFactory wires the configured backend endpoints into the
// per-attempt transport constructor.
func newTransportFactory(cfg *config.Config) capture.TransportFactory {
	return func(ctx context.Context, mode capture.Mode, sampleRate int) (transport.Transport, error) {
		if mode == capture.ModeBatch {
			return batch.New(batch.Config{
				URL:        cfg.Backend.BatchURL,
				APIKey:     cfg.Backend.APIKey,
				SampleRate: sampleRate,
				Channels:   1,
			}), nil
		}
		return stream.Dial(ctx, stream.Config{
			TokenURL:   cfg.Backend.TokenURL,
			StreamURL:  cfg.Backend.StreamURL,
			APIKey:     cfg.Backend.APIKey,
			SampleRate: sampleRate,
		})
	}
}

// newVocabCorrection builds the final-transcript correction hook, or nil when
// no custom vocabulary is configured.
func newVocabCorrection(terms []string) func(string) string {
	if len(terms) == 0 {
		return nil
	}
	return vocab.NewCorrector(terms).Correct
}

// backendProbeURL picks the backend endpoint the readiness check probes.
func backendProbeURL(cfg *config.Config) string {
	if cfg.Capture.Mode == config.ModeBatch {
		return cfg.Backend.BatchURL
	}
	return cfg.Backend.TokenURL
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
