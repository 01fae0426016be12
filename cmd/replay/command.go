// Package replay provides the "replay" command and its run/stream/serve
// subcommands for executing a declarative playlist of filesystem actions
// (Core A).
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/forgecast/forgecast/internal/logger"
	"github.com/forgecast/forgecast/internal/replaycore"

	"github.com/forgecast/forgecast/cmd"
	"github.com/spf13/cobra"
)

// replayCmd is the parent command; it does nothing itself beyond showing
// help, per the teacher's convention of a thin root with real work living
// in subcommands.
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Execute a declarative playlist of filesystem actions",
}

// runCmd executes a complete playlist document from a file. When both
// concurrent and analyze-dependencies are set (in the playlist or through
// the override flags) it materializes the dependency graph and uses the
// concurrent scheduler; otherwise it runs the steps serially.
var runCmd = &cobra.Command{
	Use:   "run [playlist.json]",
	Short: "Run a playlist file to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With("command", "replay.run", "playlist", args[0])

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open playlist: %w", err)
		}
		defer f.Close()

		playlist, err := replaycore.DecodePlaylist(json.NewDecoder(f).Decode)
		if err != nil {
			log.Error("Failed to decode playlist", "error", err)
			return err
		}
		applyOverrides(cmd, playlist)

		log.Info("Starting playlist run", "steps", len(playlist.Playlist), "concurrent", playlist.Concurrent)
		start := time.Now()

		if err := replaycore.Run(playlist); err != nil {
			log.Error("Playlist run failed", "error", err, "duration", time.Since(start))
			return err
		}
		log.Info("Playlist run completed", "duration", time.Since(start))
		return nil
	},
}

// streamCmd implements spec.md §6 streaming ingress: stdin carries one
// JSON step per line, materialized as each line arrives. Serially, each
// line runs at once; with --concurrent, tasks run after stdin closes.
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Execute NDJSON-encoded steps read from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With("command", "replay.stream")

		opts, err := flagOptions(cmd)
		if err != nil {
			return err
		}

		log.Info("Starting stream run", "concurrent", opts.Concurrent)
		start := time.Now()
		if err := replaycore.RunStream(os.Stdin, envMap(), opts); err != nil {
			log.Error("Stream run failed", "error", err, "duration", time.Since(start))
			return err
		}
		log.Info("Stream run completed", "duration", time.Since(start))
		return nil
	},
}

// serveCmd implements spec.md §6 server mode: a Unix domain socket
// accepts queued actions until a finish-and-wait message arrives, at
// which point the accumulated tasks are dispatched.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen on a Unix domain socket for queued actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := cmd.Flags().GetString("group")
		if err != nil {
			return err
		}
		batchName, err := cmd.Flags().GetString("batch-name")
		if err != nil {
			return err
		}
		log := logger.With("command", "replay.serve", "group", group, "batch", batchName)

		opts, err := flagOptions(cmd)
		if err != nil {
			return err
		}

		replayPort, dispatchPort := replaycore.SocketPaths(group, batchName)
		server := replaycore.NewServer(replayPort, dispatchPort, envMap(), opts)

		log.Info("Listening for queued actions", "replay_port", replayPort, "dispatch_port", dispatchPort)
		if err := server.Serve(); err != nil {
			log.Error("Server batch failed", "error", err)
			return err
		}
		log.Info("Server batch finished")
		return nil
	},
}

// applyOverrides lets a handful of CLI flags override the decoded
// playlist's top-level options, for the common case of toggling
// concurrency without editing the playlist document.
func applyOverrides(cmd *cobra.Command, playlist *replaycore.Playlist) {
	if cmd.Flags().Changed("concurrent") {
		playlist.Concurrent, _ = cmd.Flags().GetBool("concurrent")
	}
	if cmd.Flags().Changed("analyze-dependencies") {
		playlist.AnalyzeDependencies, _ = cmd.Flags().GetBool("analyze-dependencies")
	}
	if cmd.Flags().Changed("stop-on-error") {
		playlist.StopOnError, _ = cmd.Flags().GetBool("stop-on-error")
	}
	if cmd.Flags().Changed("ordered-output") {
		playlist.OrderedOutput, _ = cmd.Flags().GetBool("ordered-output")
	}
	if cmd.Flags().Changed("dry-run") {
		playlist.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
}

// flagOptions builds a replaycore.Options from stream/serve's flat flag
// set (these modes have no playlist document to carry top-level options,
// per spec.md §6 "streaming mode"/"server mode").
func flagOptions(cmd *cobra.Command) (replaycore.Options, error) {
	concurrent, err := cmd.Flags().GetBool("concurrent")
	if err != nil {
		return replaycore.Options{}, err
	}
	analyzeDeps, err := cmd.Flags().GetBool("analyze-dependencies")
	if err != nil {
		return replaycore.Options{}, err
	}
	stopOnError, err := cmd.Flags().GetBool("stop-on-error")
	if err != nil {
		return replaycore.Options{}, err
	}
	orderedOutput, err := cmd.Flags().GetBool("ordered-output")
	if err != nil {
		return replaycore.Options{}, err
	}
	concurrencyLimit, err := cmd.Flags().GetInt("concurrency-limit")
	if err != nil {
		return replaycore.Options{}, err
	}
	return replaycore.Options{
		Concurrent:          concurrent,
		AnalyzeDependencies: analyzeDeps,
		StopOnError:         stopOnError,
		OrderedOutput:       orderedOutput,
		ConcurrencyLimit:    concurrencyLimit,
	}, nil
}

// envMap seeds a run's environment from the current process environment,
// mirroring replaycore.Run's own seeding for the playlist-file path.
func envMap() map[string]string {
	env := make(map[string]string, 64)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}

func init() {
	runCmd.Flags().Bool("concurrent", false, "Override the playlist's concurrent flag")
	runCmd.Flags().Bool("analyze-dependencies", false, "Override the playlist's analyze-dependencies flag")
	runCmd.Flags().Bool("stop-on-error", false, "Override the playlist's stop-on-error flag")
	runCmd.Flags().Bool("ordered-output", false, "Override the playlist's ordered-output flag")
	runCmd.Flags().Bool("dry-run", false, "Override the playlist's dry-run flag")

	streamCmd.Flags().Bool("concurrent", false, "Materialize a dependency graph and use the worker pool instead of serial execution")
	streamCmd.Flags().Bool("analyze-dependencies", true, "Build the dependency graph when --concurrent is set")
	streamCmd.Flags().Bool("stop-on-error", false, "Stop submitting further lines once an action fails")
	streamCmd.Flags().Bool("ordered-output", false, "Buffer per-action output and flush in playlist order")
	streamCmd.Flags().Int("concurrency-limit", 0, "Cap the worker pool size (0 = unbounded)")

	serveCmd.Flags().String("group", "forgecast", "Socket group name, used as the socket filename prefix")
	serveCmd.Flags().String("batch-name", strconv.Itoa(os.Getpid()), "Batch name, used as the socket filename suffix")
	serveCmd.Flags().Bool("concurrent", false, "Materialize a dependency graph and use the worker pool instead of serial execution")
	serveCmd.Flags().Bool("analyze-dependencies", true, "Build the dependency graph when --concurrent is set")
	serveCmd.Flags().Bool("stop-on-error", false, "Stop accepting further actions once one fails")
	serveCmd.Flags().Bool("ordered-output", false, "Buffer per-action output and flush in playlist order")
	serveCmd.Flags().Int("concurrency-limit", 0, "Cap the worker pool size (0 = unbounded)")

	replayCmd.AddCommand(runCmd, streamCmd, serveCmd)
	cmd.Register(replayCmd)
}
