// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounding-engine/internal/container"
	"github.com/pdiddy/grounding-engine/internal/convert"
)

const grobidPort = 8070

var grobidCmd = &cobra.Command{
	Use:   "grobid",
	Short: "Manage a local GROBID container",
	Long: `Grobid starts and stops a GROBID container with Docker or Podman, published
on the port of the configured conversion.grobid_url.`,
}

var grobidStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start GROBID and wait until it answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")

		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		name := cfg.Conversion.GROBIDContainer
		if !rt.Running(name) {
			port, err := hostPort(cfg.Conversion.GROBIDURL)
			if err != nil {
				return err
			}
			id, err := rt.Start(container.Service{
				Name:          name,
				Image:         cfg.Conversion.GROBIDImage,
				HostPort:      port,
				ContainerPort: grobidPort,
			})
			if err != nil {
				return err
			}
			fmt.Printf("started %s (%s) with %s\n", name, shortID(id), rt.Name())
		} else {
			fmt.Printf("%s is already running\n", name)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), wait)
		defer cancel()
		if err := convert.NewGROBIDConverter(cfg.Conversion, nil).WaitAlive(ctx, 2*time.Second); err != nil {
			return err
		}
		fmt.Println("GROBID is ready at", cfg.Conversion.GROBIDURL)
		return nil
	},
}

var grobidStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the GROBID container",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		name := cfg.Conversion.GROBIDContainer
		if !rt.Running(name) {
			fmt.Printf("%s is not running\n", name)
			return nil
		}
		if err := rt.Stop(name); err != nil {
			return err
		}
		fmt.Println("stopped", name)
		return nil
	},
}

// hostPort returns the port of rawURL, defaulting to GROBID's own.
func hostPort(rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid grobid url %q: %w", rawURL, err)
	}
	if u.Port() == "" {
		return grobidPort, nil
	}
	return strconv.Atoi(u.Port())
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func init() {
	grobidStartCmd.Flags().Duration("wait", 3*time.Minute, "how long to wait for GROBID to answer")

	grobidCmd.AddCommand(grobidStartCmd, grobidStopCmd)
	rootCmd.AddCommand(grobidCmd)
}
