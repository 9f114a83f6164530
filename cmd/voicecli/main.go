package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shikkhasathi/voicecore/internal/app"
	"github.com/shikkhasathi/voicecore/internal/audio"
	"github.com/shikkhasathi/voicecore/internal/config"
	"github.com/shikkhasathi/voicecore/internal/gateway"
	"github.com/shikkhasathi/voicecore/internal/metrics"
	"github.com/shikkhasathi/voicecore/internal/player"
	"github.com/shikkhasathi/voicecore/internal/settings"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.voicecorerc or /etc/voicecore/config.yaml)")
	listDevices = flag.Bool("list-devices", false, "List all available audio input devices")
	record      = flag.Duration("record", 0, "Record from the microphone for the given duration (e.g. 5s)")
	transcribe  = flag.Bool("transcribe", false, "Transcribe the recording when used with -record")
	speak       = flag.String("speak", "", "Synthesize the given text and play it")
	play        = flag.String("play", "", "Play a WAV file or URL")
	outputFile  = flag.String("output", "", "Write the recording to this WAV file")
	language    = flag.String("language", "", "Override the configured language")
	device      = flag.String("device", "", "Audio input device name (use -list-devices to see available devices)")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	// Missing .env is fine; keys may come from the environment proper
	_ = godotenv.Load()

	if *showVersion {
		fmt.Printf("voicecli v%s (built: %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Gateway.APIKey == "" {
		cfg.Gateway.APIKey = key
	}

	logger := initLogger(cfg)
	slog.SetDefault(logger)

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nExiting...")
		cancel()
	}()

	store, err := settings.NewFileStore(cfg.Settings.Dir)
	if err != nil {
		return err
	}
	mgr := settings.NewManager(store, logger)
	voiceSettings := mgr.Load()

	// CLI invocations imply consent for the requested direction
	if *record > 0 {
		voiceSettings.InputEnabled = true
	}
	if *speak != "" {
		voiceSettings.OutputEnabled = true
	}
	if *language != "" {
		voiceSettings.Language = *language
	}

	widget := app.NewVoiceWidget(app.WidgetConfig{
		Settings:      voiceSettings,
		Gateway:       buildGateway(cfg, logger),
		CaptureConfig: buildCaptureConfig(cfg),
		Logger:        logger,
		Metrics:       metrics.New(prometheus.DefaultRegisterer),
	})
	defer widget.Close()

	switch {
	case *record > 0:
		return runRecord(ctx, widget)
	case *speak != "":
		return runSpeak(ctx, widget)
	case *play != "":
		return runPlay(ctx, logger)
	default:
		flag.Usage()
		return nil
	}
}

func runRecord(ctx context.Context, widget *app.VoiceWidget) error {
	fmt.Printf("Recording for %s...\n", *record)
	if err := widget.StartCapture(ctx); err != nil {
		return err
	}

	select {
	case <-time.After(*record):
	case <-ctx.Done():
	}

	payload, err := widget.StopCapture()
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %d bytes (%s, %.1fs)\n",
		payload.Len(), payload.MIMEType(), payload.Duration().Seconds())

	if *outputFile != "" {
		wav, err := payload.WAV()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*outputFile, wav, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Saved to %s\n", *outputFile)
	}

	if *transcribe {
		result, err := widget.Transcribe(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Transcript: %s\n", result.Text)
		if result.Confidence > 0 {
			fmt.Printf("Confidence: %.2f\n", result.Confidence)
		}
	}

	return nil
}

func runSpeak(ctx context.Context, widget *app.VoiceWidget) error {
	session, err := widget.Speak(ctx, *speak)
	if err != nil {
		return err
	}
	defer session.Cleanup()

	// Persisted settings may have auto-play off; the -speak invocation
	// asks for audible output, so start playback regardless
	if err := ensurePlaying(session); err != nil {
		return err
	}

	// Poll until playback runs out or the user interrupts
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if session.Progress() >= 1 {
				return nil
			}
		}
	}
}

// ensurePlaying starts playback when auto-play left the session loaded
// but idle
func ensurePlaying(session *player.Session) error {
	if session.State() == player.StatePlaying {
		return nil
	}
	return session.Play()
}

func runPlay(ctx context.Context, logger *slog.Logger) error {
	session := player.NewSession(player.WithLogger(logger))
	defer session.Cleanup()

	var src player.Source
	if _, err := os.Stat(*play); err == nil {
		data, err := os.ReadFile(*play)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		src = player.FromBlob(data, "audio/wav")
	} else {
		src = player.FromURL(*play)
	}

	if err := session.Load(ctx, src); err != nil {
		return err
	}
	if err := session.Play(); err != nil {
		return err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if session.Progress() >= 1 {
				return nil
			}
		}
	}
}

func printDevices() error {
	devices, err := audio.ListDevices(audio.DeviceTypeCapture)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No audio capture devices found.")
		return nil
	}

	fmt.Printf("Found %d capture device(s):\n\n", len(devices))
	for i, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Printf("%d. %s%s\n", i+1, d.Name, marker)
	}
	return nil
}

func buildCaptureConfig(cfg *config.Config) audio.CaptureConfig {
	captureCfg := audio.DefaultCaptureConfig()
	captureCfg.SampleRate = uint32(cfg.Capture.SampleRate)
	captureCfg.Channels = uint32(cfg.Capture.Channels)
	captureCfg.EchoCancellation = cfg.Capture.EchoCancellation
	captureCfg.NoiseSuppression = cfg.Capture.NoiseSuppression
	if *device != "" {
		captureCfg.DeviceID = *device
	} else {
		captureCfg.DeviceID = cfg.Capture.Device
	}
	return captureCfg
}

func buildGateway(cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	if cfg.Gateway.Provider == "openai" {
		return gateway.NewOpenAIGateway(cfg.Gateway.APIKey, logger)
	}
	return gateway.NewClient(gateway.Config{
		Endpoint: cfg.Gateway.Endpoint,
		APIKey:   cfg.Gateway.APIKey,
		Timeout:  cfg.GatewayTimeout(),
	}, gateway.WithLogger(logger))
}

func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
