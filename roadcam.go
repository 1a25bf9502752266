package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"roadcam/detection"
	"roadcam/overlay"
	"roadcam/pipeline"
	"roadcam/signstate"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "roadcam",
		Short: "Road sign, speed limit and traffic light panel over a live camera",
		Long: `roadcam runs a YOLO road-sign model over a camera feed and keeps a sticky
panel of the last seen sign, speed limit and traffic light colour under the video.

Press q in the window (or close it) to stop.`,
		PersistentPreRunE: initConfig,
		RunE:              runLive,
		SilenceUsage:      true,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/roadcam/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	flags.String("weights", "best.onnx", "model weights (.onnx export or darknet .weights)")
	flags.String("model-config", "", "darknet .cfg file (darknet weights only)")
	flags.String("names", "signs.names", "class names file, one per line in class id order")
	flags.String("backend", detection.BackendAuto, "inference backend (auto, cpu, gpu, onnx)")
	flags.String("onnx-library", "", "path to the onnxruntime shared library (onnx backend)")
	flags.Int("input-size", detection.DefaultInputSize, "model input size in pixels")
	flags.Float64("score-threshold", detection.DefaultScoreThreshold, "minimum detector score kept before NMS")
	flags.Float64("nms-threshold", detection.DefaultNMSThreshold, "IoU threshold for non-maximum suppression")

	rootCmd.Flags().String("device", "0", "camera index, video file or stream URL")
	rootCmd.Flags().String("title", "Road Sign Detection", "window title")
	rootCmd.Flags().String("exit-key", "q", "key that stops the loop")
	rootCmd.Flags().Bool("headless", false, "print state changes instead of opening a window")
	rootCmd.Flags().Duration("interval", signstate.DefaultInterval, "time between aggregation passes")
	rootCmd.Flags().String("snapshot-dir", "", "save the composited frame as JPEG on every state change")
	rootCmd.Flags().Duration("stats-interval", 15*time.Second, "time between performance reports")

	// Bind flags to viper
	for key, name := range map[string]string{
		"logging.level":         "log-level",
		"logging.format":        "log-format",
		"model.weights":         "weights",
		"model.config":          "model-config",
		"model.names":           "names",
		"model.backend":         "backend",
		"model.onnx_library":    "onnx-library",
		"model.input_size":      "input-size",
		"model.score_threshold": "score-threshold",
		"model.nms_threshold":   "nms-threshold",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
	for key, name := range map[string]string{
		"source.device":    "device",
		"display.title":    "title",
		"display.exit_key": "exit-key",
		"display.headless": "headless",
		"cadence.interval": "interval",
		"snapshot.dir":     "snapshot-dir",
		"stats.interval":   "stats-interval",
	} {
		_ = viper.BindPFlag(key, rootCmd.Flags().Lookup(name))
	}

	rootCmd.AddCommand(classesCmd())
	rootCmd.AddCommand(annotateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, stopping after the current frame", "signal", sig.String())
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(expandPath(cfgFile))
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "roadcam"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ROADCAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, flags and defaults apply
	}

	if err := setupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	detection.SetDebugFunction(debugMsg)
	overlay.SetDebugFunction(debugMsg)
	pipeline.SetDebugFunction(debugMsg)

	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("Loaded config", "file", used)
	}
	return nil
}

func setupLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}

	switch format {
	case "console":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// debugMsg is the logging hook handed to every package. Components ending in
// ERROR log as warnings; chatty per-frame components log at debug level.
func debugMsg(component, message string) {
	switch {
	case strings.HasSuffix(component, "ERROR"):
		slog.Warn(message, "component", component)
	case component == "OVERLAY" || component == "GPU_DETECT":
		slog.Debug(message, "component", component)
	default:
		slog.Info(message, "component", component)
	}
}

// expandPath expands ~ and environment variables in a file path
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}
