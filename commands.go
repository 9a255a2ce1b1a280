package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xiaot623/millrun/internal/chart"
	"github.com/xiaot623/millrun/internal/deck"
	"github.com/xiaot623/millrun/internal/domain"
	"github.com/xiaot623/millrun/internal/dump"
	"github.com/xiaot623/millrun/internal/hub"
)

var (
	configFile string
	deckOut    string
	plotOut    string
	dumpFile   string
	rpm        float64
	timestep   float64
	feedURL    string
	runID      string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "millrun",
		Short:         "grinding mill DEM runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to serving the API when no command given
			return serve()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the run API, event feed and frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	deckCmd := &cobra.Command{
		Use:   "deck",
		Short: "validate a mill config and print its LIGGGHTS input deck",
		RunE:  writeDeck,
	}
	deckCmd.Flags().StringVar(&configFile, "config", "", "mill config file path (yaml)")
	deckCmd.Flags().StringVar(&deckOut, "out", "", "write the deck to this file instead of stdout")
	deckCmd.MarkFlagRequired("config")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "extract charge throw trajectories from a LIGGGHTS dump",
		RunE:  extractDump,
	}
	extractCmd.Flags().StringVar(&dumpFile, "dump", deck.DumpFileName, "dump file path")
	extractCmd.Flags().Float64Var(&rpm, "rpm", 0, "mill speed the dump was produced at")
	extractCmd.Flags().Float64Var(&timestep, "timestep", domain.DefaultTimestep, "solver timestep in seconds")
	extractCmd.MarkFlagRequired("rpm")

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "render charge throw trajectories from a dump as png or html",
		RunE:  plotDump,
	}
	plotCmd.Flags().StringVar(&configFile, "config", "", "mill config file path (yaml)")
	plotCmd.Flags().StringVar(&dumpFile, "dump", deck.DumpFileName, "dump file path")
	plotCmd.Flags().StringVar(&plotOut, "out", "charge_throw.png", "output file, .png or .html")
	plotCmd.MarkFlagRequired("config")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "print run events from the live feed",
		RunE:  watchFeed,
	}
	watchCmd.Flags().StringVar(&feedURL, "url", "ws://localhost:8000/api/ws", "event feed address")
	watchCmd.Flags().StringVar(&runID, "run-id", "", "follow a single run")

	rootCmd.AddCommand(serveCmd, deckCmd, extractCmd, plotCmd, watchCmd)
	return rootCmd
}

func loadMillConfig(path string) (domain.MillConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.MillConfig{}, err
	}
	var params domain.MillParams
	if err := yaml.Unmarshal(data, &params); err != nil {
		return domain.MillConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return domain.Validate(params)
}

func writeDeck(cmd *cobra.Command, args []string) error {
	cfg, err := loadMillConfig(configFile)
	if err != nil {
		return err
	}
	text := deck.BuildInput(cfg)
	if deckOut == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(deckOut, []byte(text), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", deckOut)
	return nil
}

func extractDump(cmd *cobra.Command, args []string) error {
	if rpm <= 0 || timestep <= 0 {
		return fmt.Errorf("rpm and timestep must be positive")
	}
	data := dump.Extract(domain.MillConfig{RPM: rpm, TimestepS: timestep}, dumpFile)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func plotDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadMillConfig(configFile)
	if err != nil {
		return err
	}
	data := dump.Extract(cfg, dumpFile)
	if !data.Available() {
		return fmt.Errorf("%s", data.Message)
	}

	write := chart.WritePNG
	switch strings.ToLower(filepath.Ext(plotOut)) {
	case ".png":
	case ".html", ".htm":
		write = chart.WriteHTML
	default:
		return fmt.Errorf("unsupported output format: %s", plotOut)
	}

	f, err := os.Create(plotOut)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := write(f, chart.Options{RunID: filepath.Base(filepath.Dir(dumpFile)), Config: cfg}, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", plotOut, data.Message)
	return nil
}

func watchFeed(cmd *cobra.Command, args []string) error {
	target := feedURL
	if runID != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "run_id=" + runID
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		printFeedMessage(out, data)
	}
}

func printFeedMessage(w io.Writer, data []byte) {
	var msg struct {
		hub.BaseMessage
		Event   *domain.Event        `json:"event,omitempty"`
		Run     *domain.RunArtifacts `json:"run,omitempty"`
		Message string               `json:"message,omitempty"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Fprintf(w, "unreadable message: %s\n", data)
		return
	}

	ts := time.UnixMilli(msg.Ts).Format("15:04:05.000")
	switch {
	case msg.Type == hub.TypeEvent && msg.Event != nil:
		fmt.Fprintf(w, "%s [%s] %s %s\n", ts, msg.RunID, msg.Event.Type, msg.Event.Payload)
	case msg.Type == hub.TypeRunFinished && msg.Run != nil:
		fmt.Fprintf(w, "%s [%s] finished: %s %s\n", ts, msg.RunID, msg.Run.Status, msg.Run.Message)
	case msg.Type == hub.TypeSubscribed:
		if msg.RunID == hub.AllRuns {
			fmt.Fprintf(w, "%s following all runs\n", ts)
		} else {
			fmt.Fprintf(w, "%s following run %s\n", ts, msg.RunID)
		}
	case msg.Type == hub.TypeError:
		fmt.Fprintf(w, "%s error: %s\n", ts, msg.Message)
	default:
		fmt.Fprintf(w, "%s %s\n", ts, data)
	}
}
