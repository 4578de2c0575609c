package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/playerctl/internal/engine"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

var classifyFlags struct {
	minimumDVRWindow time.Duration
	liveTolerance    time.Duration
	timeout          time.Duration
}

func init() {
	f := classifyCmd.Flags()
	f.DurationVar(&classifyFlags.minimumDVRWindow, "min-dvr-window", timerange.DefaultMinimumDVRWindowLength, "Smallest seekable window treated as DVR")
	f.DurationVar(&classifyFlags.liveTolerance, "live-tolerance", timerange.DefaultLiveTolerance, "Distance from the live edge still considered live")
	f.DurationVar(&classifyFlags.timeout, "timeout", engine.DefaultHTTPTimeout, "Playlist fetch timeout")
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify <url>",
	Short: "Fetch an HLS playlist and print its stream and media type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := timerange.LiveConfiguration{
			MinimumDVRWindowLength: classifyFlags.minimumDVRWindow,
			LiveTolerance:          classifyFlags.liveTolerance,
		}.Normalized()
		return classify(cmd.Context(), cmd.OutOrStdout(), engine.NewFetcher(classifyFlags.timeout), args[0], cfg)
	},
}

func classify(ctx context.Context, out io.Writer, fetcher *engine.Fetcher, rawURL string, cfg timerange.LiveConfiguration) error {
	if err := engine.CheckURL(rawURL); err != nil {
		return err
	}

	p, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}

	duration := "indefinite"
	if d, ok := p.Duration().Get(); ok {
		duration = d.String()
	}

	_, err = fmt.Fprintf(out,
		"url:         %s\nstream type: %s\nmedia type:  %s\nwindow:      %s\nduration:    %s\nsegments:    %d\n",
		p.URL,
		p.StreamType(cfg),
		timerange.MediaTypeFromTracks(p.Tracks),
		p.Window,
		duration,
		p.Segments,
	)
	return err
}
