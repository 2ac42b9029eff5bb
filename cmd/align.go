package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andresmejia3/oculus/internal/align"
	"github.com/andresmejia3/oculus/internal/types"
	"github.com/spf13/cobra"
)

var (
	alignZone string
	alignSize string
)

var alignCmd = &cobra.Command{
	Use:   "align x,y [x,y...]",
	Short: "Check whether an eye landmark set is inside the target zone",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAlign(cmd.OutOrStdout(), args)
	},
}

func init() {
	alignCmd.Flags().StringVarP(&alignZone, "zone", "z", types.DefaultTargetZone.String(), "Target zone as normalized x,y,width,height")
	alignCmd.Flags().StringVarP(&alignSize, "size", "s", "640x480", "Frame size as WxH")
	rootCmd.AddCommand(alignCmd)
}

func runAlign(w io.Writer, args []string) error {
	zone, err := types.ParseTargetZone(alignZone)
	if err != nil {
		return err
	}
	size, err := types.ParseSize(alignSize)
	if err != nil {
		return err
	}
	points, err := parsePoints(args)
	if err != nil {
		return err
	}

	centroid, _ := align.Centroid(points)
	bounds := zone.Bounds(size)
	verdict := "❌ NOT ALIGNED"
	if align.Aligned(points, size, zone) {
		verdict = "✅ ALIGNED"
	}

	fmt.Fprintf(w, "%s\n", verdict)
	fmt.Fprintf(w, "   centroid: (%g,%g)\n", centroid.X, centroid.Y)
	fmt.Fprintf(w, "   zone:     %s in %dx%d\n", bounds, size.Width, size.Height)
	return nil
}

func parsePoints(args []string) (types.EyePointSet, error) {
	points := make(types.EyePointSet, 0, len(args))
	for _, arg := range args {
		xs, ys, ok := strings.Cut(arg, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q: expected x,y", arg)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid x in %q: %w", arg, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid y in %q: %w", arg, err)
		}
		points = append(points, types.Point{X: x, Y: y})
	}
	return points, nil
}
