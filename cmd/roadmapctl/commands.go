package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/stackmemory-backend/internal/modules/qualitygate"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

// readRoadmap loads a roadmap document from path, or stdin when path is "-".
func readRoadmap(cmd *cobra.Command, path string) (roadmap.Roadmap, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return roadmap.Roadmap{}, fmt.Errorf("read %s: %w", path, err)
	}
	return roadmap.Parse(data), nil
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Print the normalized roadmap JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rm, err := readRoadmap(cmd, args[0])
			if err != nil {
				return err
			}
			raw, err := rm.Marshal()
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
}

func newGateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "gate <file|->",
		Short: "Probe the materials of a roadmap and print a quality report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			all, _ := cmd.Flags().GetBool("all")
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want text or yaml)", format)
			}

			rm, err := readRoadmap(cmd, args[0])
			if err != nil {
				return err
			}
			tasks := rm.CurrentTasks
			if all {
				tasks = rm.Tasks()
			}

			log, err := logger.New("production")
			if err != nil {
				return err
			}
			defer log.Sync()

			gate := qualitygate.New(qualitygate.NewHTTPProber(timeout), log)
			res := gate.ValidateAll(context.Background(), tasks)
			return printGate(cmd.OutOrStdout(), format, res)
		},
	}
	c.Flags().String("format", "text", "output format: text or yaml")
	c.Flags().Duration("timeout", qualitygate.DefaultProbeTimeout, "per-URL probe timeout")
	c.Flags().Bool("all", false, "check every task in the phase tree instead of currentTasks")
	return c
}

func printGate(w io.Writer, format string, res qualitygate.BatchResult) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}
	_, err := fmt.Fprint(w, qualitygate.Report(res.Results))
	return err
}

func newDateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "date",
		Short: "Print the calendar date of a (week, day) slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, _ := cmd.Flags().GetString("created")
			week, _ := cmd.Flags().GetInt("week")
			day, _ := cmd.Flags().GetInt("day")

			base, ok := roadmap.ParseDateKey(created, time.UTC)
			if !ok {
				return fmt.Errorf("--created must be YYYY-MM-DD, got %q", created)
			}
			fmt.Fprintln(cmd.OutOrStdout(), roadmap.ToRouteTaskDateKey(week, day, base))
			return nil
		},
	}
	c.Flags().String("created", "", "route creation date (YYYY-MM-DD)")
	c.Flags().Int("week", 1, "task week (1-based)")
	c.Flags().Int("day", 1, "task day within the week (1-7)")
	_ = c.MarkFlagRequired("created")
	return c
}
