package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"roadcam/detection"
	"roadcam/overlay"
	"roadcam/pipeline"
	"roadcam/signstate"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gocv.io/x/gocv"
)

// loadRegistry reads the class names file configured under model.names
func loadRegistry() (*detection.Registry, error) {
	path := expandPath(viper.GetString("model.names"))
	registry, err := detection.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load class names: %w", err)
	}
	slog.Debug("Loaded class registry", "file", path, "classes", registry.Len())
	return registry, nil
}

// newDetector initializes the configured inference backend. Callers close it.
func newDetector(registry *detection.Registry) (*detection.ProviderManager, error) {
	pm := detection.NewProviderManager(viper.GetString("model.backend"))
	err := pm.Initialize(detection.ModelConfig{
		Weights:        expandPath(viper.GetString("model.weights")),
		Config:         expandPath(viper.GetString("model.config")),
		Registry:       registry,
		InputSize:      viper.GetInt("model.input_size"),
		ScoreThreshold: viper.GetFloat64("model.score_threshold"),
		NMSThreshold:   viper.GetFloat64("model.nms_threshold"),
		ONNXLibrary:    expandPath(viper.GetString("model.onnx_library")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}

	info := pm.GetProviderInfo()
	slog.Info("Inference provider ready",
		"type", info.Type,
		"backend", info.Backend,
		"device", info.Device,
		"init_time", info.InitTime)
	return pm, nil
}

// exitKey returns the first rune of display.exit_key, q when unset
func exitKey() rune {
	r, _ := utf8.DecodeRuneInString(viper.GetString("display.exit_key"))
	if r == utf8.RuneError {
		return 'q'
	}
	return r
}

func runLive(cmd *cobra.Command, _ []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	detector, err := newDetector(registry)
	if err != nil {
		return err
	}
	defer detector.Close()

	runID := uuid.New()
	var snaps *pipeline.Snapshotter
	if dir := viper.GetString("snapshot.dir"); dir != "" {
		snaps, err = pipeline.NewSnapshotter(expandPath(dir), runID)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot directory: %w", err)
		}
	}

	headless := viper.GetBool("display.headless")
	newDisplay := func() pipeline.Display {
		if headless {
			return pipeline.NewConsoleDisplay(cmd.OutOrStdout())
		}
		return pipeline.NewWindowDisplay(viper.GetString("display.title"), exitKey())
	}

	cfg := pipeline.Config{
		Interval:      viper.GetDuration("cadence.interval"),
		StatsInterval: viper.GetDuration("stats.interval"),
		Snapshots:     snaps,
		RunID:         runID,
	}
	_, err = startLoop(cmd.Context(), viper.GetString("source.device"), openCamera, detector, newDisplay, cfg)
	return err
}

// openCamera opens the capture device and logs its frame size
func openCamera(device string) (pipeline.FrameSource, error) {
	camera, err := pipeline.OpenCamera(device)
	if err != nil {
		return nil, err
	}
	width, height := camera.FrameSize()
	slog.Info("Capture opened", "device", camera.Device(), "width", width, "height", height)
	return camera, nil
}

// startLoop opens the source and runs the loop over it. The display is only
// created once the source is open. A source that cannot be opened ends the run
// without producing data and without an error; the returned result is nil then.
func startLoop(
	ctx context.Context,
	device string,
	open func(device string) (pipeline.FrameSource, error),
	detector pipeline.Detector,
	newDisplay func() pipeline.Display,
	cfg pipeline.Config,
) (*pipeline.Result, error) {
	source, err := open(device)
	if err != nil {
		// Nothing to process; not a configuration error
		slog.Error("Could not open capture source", "device", device, "error", err)
		return nil, nil
	}

	loop := pipeline.New(cfg, source, detector, newDisplay())

	slog.Info("Starting detection loop", "run_id", cfg.RunID.String())
	result, err := loop.Run(ctx)
	if err != nil {
		return &result, err
	}

	slog.Info("Detection loop stopped",
		"run_id", result.RunID.String(),
		"reason", result.Reason,
		"frames", result.Frames,
		"cycles", result.Cycles,
		"state", result.State.String(),
		"duration", result.Duration.Round(time.Millisecond))
	return &result, nil
}

func classesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the model classes and the panel column each one feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			return printClasses(cmd.OutOrStdout(), registry)
		},
	}
}

func printClasses(w io.Writer, registry *detection.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPANEL\tVALUE")
	for id, name := range registry.Names() {
		column, value := "-", "-"
		if category, v, ok := signstate.Classify(name, 1.0); ok {
			column, value = category.String(), string(v)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", id, name, column, value)
	}
	return tw.Flush()
}

func annotateCmd() *cobra.Command {
	var imagePath, outPath string

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Detect signs in a still image and write it with the panel attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outPath == "" {
				ext := filepath.Ext(imagePath)
				outPath = imagePath[:len(imagePath)-len(ext)] + "_panel" + ext
			}

			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			detector, err := newDetector(registry)
			if err != nil {
				return err
			}
			defer detector.Close()

			state, err := annotateImage(detector, overlay.NewRenderer(), expandPath(imagePath), expandPath(outPath))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", state, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "input image")
	cmd.Flags().StringVar(&outPath, "out", "", "output image (default: <image>_panel.<ext>)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

// annotateImage runs a single aggregation pass over one image from a fresh state
func annotateImage(detector pipeline.Detector, renderer *overlay.Renderer, in, out string) (signstate.State, error) {
	img := gocv.IMRead(in, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return signstate.State{}, fmt.Errorf("failed to read image %s", in)
	}
	defer img.Close()

	detections, err := detector.Detect(img)
	if err != nil {
		return signstate.State{}, fmt.Errorf("detection failed: %w", err)
	}

	annotated := renderer.Annotate(img, detections)
	defer annotated.Close()

	state := signstate.NewState().Apply(signstate.Aggregate(pipeline.Observations(detections)))
	composed, err := overlay.Compose(annotated, state.Values())
	if err != nil {
		return signstate.State{}, err
	}
	defer composed.Close()

	if !gocv.IMWrite(out, composed) {
		return signstate.State{}, fmt.Errorf("failed to write image %s", out)
	}
	slog.Debug("Annotated image", "in", in, "out", out, "detections", len(detections))
	return state, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roadcam %s (%s, gocv %s, opencv %s)\n",
				version, runtime.Version(), gocv.Version(), gocv.OpenCVVersion())
		},
	}
}
