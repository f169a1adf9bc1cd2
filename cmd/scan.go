package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/chroma/internal/capture"
	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/isolate"
	"github.com/andresmejia3/chroma/internal/lookup"
	"github.com/andresmejia3/chroma/internal/present"
	"github.com/andresmejia3/chroma/internal/scanner"
	"github.com/andresmejia3/chroma/internal/utils"
	"github.com/spf13/cobra"
)

var scanOpts Options

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the camera for red, green and blue QR codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.Device, "device", "i", cfg.Device, "Capture device (or file) passed to ffmpeg -i")
	scanCmd.Flags().StringVarP(&scanOpts.InputFormat, "format", "f", cfg.InputFormat, "ffmpeg input format (v4l2, avfoundation, dshow; empty for files)")
	scanCmd.Flags().IntVar(&scanOpts.Width, "width", cfg.Width, "Capture width in pixels")
	scanCmd.Flags().IntVar(&scanOpts.Height, "height", cfg.Height, "Capture height in pixels")
	scanCmd.Flags().IntVar(&scanOpts.FPS, "fps", cfg.FPS, "Capture and display frame rate")
	scanCmd.Flags().StringVarP(&scanOpts.Timeout, "timeout", "t", cfg.Timeout.String(), "Give up after this long (e.g. '60s', '2m')")
	scanCmd.Flags().StringVarP(&scanOpts.GuardDelay, "guard-delay", "g", "100ms", "Minimum spacing between decode passes")
	scanCmd.Flags().IntVarP(&scanOpts.BoxSize, "box-size", "b", cfg.BoxSize, "Side of the centered scan box in pixels")
	scanCmd.Flags().StringVarP(&scanOpts.LookupPath, "lookup", "l", "", "JSON file of known payloads (overrides database entries)")
	scanCmd.Flags().StringVar(&scanOpts.PreviewPath, "preview", "", "Write the current frame with the scan box to this JPEG")
	scanCmd.Flags().BoolVarP(&scanOpts.Speak, "speak", "s", false, "Speak notifications aloud")
	scanCmd.Flags().StringVar(&scanOpts.SpeakCmd, "speak-cmd", cfg.SpeakCmd, "Text-to-speech command used by --speak")
	scanCmd.Flags().BoolVarP(&scanOpts.Parallel, "parallel", "p", false, "Isolate and decode the missing channels concurrently")
	scanCmd.Flags().BoolVarP(&scanOpts.Repeat, "repeat", "r", false, "Offer to scan again after each session")

	rootCmd.AddCommand(scanCmd)
}

// runScan wires the capture device, decoder, lookup table and presentation
// sinks into a coordinator and drives sessions until the user is done.
func runScan(ctx context.Context, opts Options) error {
	if err := validateScanFlags(&opts); err != nil {
		utils.ShowError("Invalid scan flags", err, nil)
		return err
	}
	timeout, _ := time.ParseDuration(opts.Timeout)
	guardDelay, _ := time.ParseDuration(opts.GuardDelay)

	table, err := buildLookup(ctx, opts.LookupPath)
	if err != nil {
		utils.ShowError("Failed to load lookup table", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "📖 Loaded %d lookup entries\n", table.Len())

	segmenter := isolate.NewOpenCVSegmenter()
	if !segmenter.Available() {
		fmt.Fprintln(os.Stderr, "⚠️  Built without OpenCV, color segmentation disabled")
	}

	term := present.NewTerminal(os.Stderr)
	sinks := present.Multi{term}
	if opts.Speak {
		speaker := present.NewSpeaker(opts.SpeakCmd)
		defer speaker.Close()
		sinks = append(sinks, speaker)
	}

	deps := scanner.Deps{
		Device: capture.NewFFmpeg(capture.Config{
			InputFormat: opts.InputFormat,
			Device:      opts.Device,
			Width:       opts.Width,
			Height:      opts.Height,
			FPS:         opts.FPS,
		}),
		Decoder:   decode.NewQRDecoder(),
		Segmenter: segmenter,
		Lookup:    table,
		Sink:      sinks,
	}
	if opts.PreviewPath != "" {
		// Roughly two previews per second.
		deps.Canvas = &present.PreviewFile{Path: opts.PreviewPath, Every: max(opts.FPS/2, 1)}
	}
	if DB != nil {
		deps.Recorder = DB
	}

	coord := scanner.New(scanner.Config{
		BoxSize:       opts.BoxSize,
		Timeout:       timeout,
		FrameInterval: time.Second / time.Duration(opts.FPS),
		GuardDelay:    guardDelay,
		Parallel:      opts.Parallel,
	}, deps)

	fmt.Fprintf(os.Stderr, "📷 Opening %s (%dx%d @ %dfps)...\n", opts.Device, opts.Width, opts.Height, opts.FPS)

	reader := bufio.NewReader(os.Stdin)
	for {
		if err := coord.StartSession(ctx); err != nil {
			term.Finish()
			utils.ShowError("Failed to start scan session", err, nil)
			return err
		}
		stopOnCancel := context.AfterFunc(ctx, coord.StopSession)
		coord.Wait()
		stopOnCancel()
		coord.StopSession()
		term.Finish()

		printSummary(os.Stdout, coord.Session(), coord.Attempts())

		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\n🛑 Scan cancelled")
			return nil
		}
		if !opts.Repeat || !confirm(reader, "🔁 Scan again?") {
			return nil
		}
		// deps.Sink shares the backing array of sinks.
		term = present.NewTerminal(os.Stderr)
		sinks[0] = term
	}
}

// buildLookup merges database entries with the optional JSON file. File
// entries win over database entries for the same key.
func buildLookup(ctx context.Context, path string) (*lookup.Table, error) {
	table := lookup.NewTable()
	if DB != nil {
		stored, err := DB.LoadLookup(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read lookup entries from database: %w", err)
		}
		table.Merge(stored)
	}
	if path != "" {
		fromFile, err := lookup.LoadFile(path)
		if err != nil {
			return nil, err
		}
		table.Merge(fromFile)
	}
	return table, nil
}

func printSummary(w io.Writer, s *scanner.Session, attempts int64) {
	if s == nil {
		return
	}
	elapsed := s.Elapsed(time.Now())
	fmt.Fprintf(w, "\nSession %s: %s after %s (%d decode attempts in total)\n", s.ID, s.State(), utils.FmtTime(elapsed), attempts)

	results := s.Registry.Results()
	if len(results) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "CHANNEL\tMETHOD\tDISPLAY\tPAYLOAD")
		fmt.Fprintln(tw, "-------\t------\t-------\t-------")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Channel, r.Method, r.DisplayText, r.RawPayload)
		}
		tw.Flush()
	}
	if missing := s.Registry.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, ch := range missing {
			names[i] = ch.String()
		}
		fmt.Fprintf(w, "Missing: %s\n", strings.Join(names, ", "))
	}
}

func validateScanFlags(opts *Options) error {
	if strings.TrimSpace(opts.Device) == "" {
		return errors.New("device must not be empty")
	}
	if opts.Width < 1 || opts.Height < 1 {
		return fmt.Errorf("invalid capture size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS < 1 {
		return fmt.Errorf("fps must be >= 1, got %d", opts.FPS)
	}
	timeout, err := time.ParseDuration(opts.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout format (use '60s', '2m'): %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", timeout)
	}
	guard, err := time.ParseDuration(opts.GuardDelay)
	if err != nil {
		return fmt.Errorf("invalid guard-delay format (use '100ms'): %w", err)
	}
	if guard < 0 {
		return fmt.Errorf("guard-delay must not be negative, got %s", guard)
	}
	if opts.BoxSize < 1 {
		return fmt.Errorf("box-size must be >= 1, got %d", opts.BoxSize)
	}
	if opts.BoxSize > min(opts.Width, opts.Height) {
		// The box is clamped to the frame; tell the user instead of failing.
		fmt.Fprintf(os.Stderr, "⚠️  box-size %d exceeds the frame, using %d\n", opts.BoxSize, min(opts.Width, opts.Height))
	}
	if opts.LookupPath != "" {
		info, err := os.Stat(opts.LookupPath)
		if err != nil {
			return fmt.Errorf("unable to access lookup file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("lookup path %s is a directory", opts.LookupPath)
		}
	}
	if opts.Speak && strings.TrimSpace(opts.SpeakCmd) == "" {
		return errors.New("--speak needs a speak command")
	}
	return nil
}
