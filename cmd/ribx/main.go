// Command ribx parses a GWSW.Ribx document, prints a summary plus any
// diagnostics, and can export the parsed geometries as GeoJSON.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ribx "github.com/nens/ribxlib"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		modeName    string
		geojsonPath string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:          "ribx FILE",
		Short:        "Parse a GWSW.Ribx document and report its contents",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseMode(modeName)
			if err != nil {
				return err
			}
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd, args[0], mode, geojsonPath, logger)
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", "inspection", "document mode: pre-inspection or inspection")
	cmd.Flags().StringVar(&geojsonPath, "geojson", "", "write parsed geometries to this GeoJSON file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func parseMode(name string) (ribx.Mode, error) {
	switch strings.ToLower(name) {
	case "pre-inspection", "preinspection", "pre":
		return ribx.PreInspection, nil
	case "inspection":
		return ribx.Inspection, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", name)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func run(cmd *cobra.Command, path string, mode ribx.Mode, geojsonPath string, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, log := ribx.Parse(f, mode, logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "inspection pipes:    %d\n", len(result.InspectionPipes))
	fmt.Fprintf(out, "cleaning pipes:      %d\n", len(result.CleaningPipes))
	fmt.Fprintf(out, "inspection manholes: %d\n", len(result.InspectionManholes))
	fmt.Fprintf(out, "cleaning manholes:   %d\n", len(result.CleaningManholes))
	fmt.Fprintf(out, "drains:              %d\n", len(result.Drains))
	fmt.Fprintf(out, "media files:         %d\n", len(result.Media()))

	for _, entry := range log {
		if entry.Level != "" {
			fmt.Fprintf(out, "%s line %d: %s\n", entry.Level, entry.Line, entry.Message)
		} else {
			fmt.Fprintf(out, "line %d: %s\n", entry.Line, entry.Message)
		}
	}

	if geojsonPath != "" {
		if err := writeGeoJSON(result, geojsonPath); err != nil {
			return err
		}
	}
	if len(log) > 0 {
		return fmt.Errorf("%d problems in %s", len(log), path)
	}
	return nil
}

// writeGeoJSON exports pipe lines and manhole/drain points as one
// FeatureCollection. Elements without a geometry are skipped.
func writeGeoJSON(result *ribx.Ribx, path string) error {
	fc := geojson.NewFeatureCollection()

	pipes := append(append([]*ribx.Pipe{}, result.InspectionPipes...), result.CleaningPipes...)
	for _, pipe := range pipes {
		line := pipe.Geom()
		if line == nil {
			continue
		}
		feature := geojson.NewFeature(line)
		feature.Properties["ref"] = pipe.Ref
		feature.Properties["kind"] = pipe.Kind.Tag()
		fc.Append(feature)
	}

	manholes := append(append([]*ribx.Manhole{}, result.InspectionManholes...), result.CleaningManholes...)
	for _, manhole := range manholes {
		if manhole.Geom == nil {
			continue
		}
		feature := geojson.NewFeature(*manhole.Geom)
		feature.Properties["ref"] = manhole.Ref
		feature.Properties["kind"] = manhole.Kind.Tag()
		fc.Append(feature)
	}

	for _, drain := range result.Drains {
		if drain.Geom == nil {
			continue
		}
		feature := geojson.NewFeature(*drain.Geom)
		feature.Properties["ref"] = drain.Ref
		feature.Properties["kind"] = drain.Kind.Tag()
		fc.Append(feature)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
