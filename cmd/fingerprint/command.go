// Package fingerprint provides the "fingerprint" command for computing a
// deterministic content-addressed fingerprint of one or more directory
// trees (Core B).
package fingerprint

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/forgecast/forgecast/internal/fingerprintcore"
	"github.com/forgecast/forgecast/internal/logger"

	"github.com/forgecast/forgecast/cmd"
	"github.com/spf13/cobra"
)

// fingerprintCmd represents the fingerprint command for hashing directory trees.
var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint [path]...",
	Short: "Compute a deterministic content fingerprint of one or more directory trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With("command", "fingerprint")

		comparePair, err := cmd.Flags().GetStringArray("compare")
		if err != nil {
			return fmt.Errorf("failed to read compare flag: %w", err)
		}
		if len(comparePair) == 1 && len(args) == 1 {
			// `--compare A B`: the second path arrives as a positional argument.
			comparePair = append(comparePair, args[0])
		}
		if len(comparePair) > 0 {
			return runCompare(cmd, comparePair, log)
		}

		globs, err := cmd.Flags().GetStringArray("glob")
		if err != nil {
			return fmt.Errorf("failed to read glob patterns: %w", err)
		}
		regexes, err := cmd.Flags().GetStringArray("regex")
		if err != nil {
			return fmt.Errorf("failed to read regex patterns: %w", err)
		}
		hashName, err := cmd.Flags().GetString("hash")
		if err != nil {
			return fmt.Errorf("failed to read hash flag: %w", err)
		}
		modeName, err := cmd.Flags().GetString("fingerprint-mode")
		if err != nil {
			return fmt.Errorf("failed to read fingerprint-mode flag: %w", err)
		}
		xattrName, err := cmd.Flags().GetString("xattr")
		if err != nil {
			return fmt.Errorf("failed to read xattr flag: %w", err)
		}
		inputsFile, err := cmd.Flags().GetString("inputs")
		if err != nil {
			return fmt.Errorf("failed to read inputs flag: %w", err)
		}
		listOnly, err := cmd.Flags().GetBool("list")
		if err != nil {
			return fmt.Errorf("failed to read list flag: %w", err)
		}
		snapshotPath, err := cmd.Flags().GetString("snapshot")
		if err != nil {
			return fmt.Errorf("failed to read snapshot flag: %w", err)
		}

		algo := fingerprintcore.Algorithm(hashName)
		mode := fingerprintcore.FingerprintMode(modeName)
		xattr := fingerprintcore.XattrMode(xattrName)

		roots := append([]string(nil), args...)
		if inputsFile != "" {
			extra, err := fingerprintcore.ReadInputsFile(inputsFile, envMap())
			if err != nil {
				log.Error("Failed to read inputs file", "error", err)
				return err
			}
			roots = append(roots, extra...)
		}
		if len(roots) == 0 {
			roots = []string{"."}
		}

		filter, err := fingerprintcore.NewFilter(globs, regexes)
		if err != nil {
			log.Error("Invalid filter pattern", "error", err)
			return err
		}

		pipeline := fingerprintcore.NewPipeline(fingerprintcore.Options{
			Roots:           roots,
			Filter:          filter,
			Hash:            algo,
			FingerprintMode: mode,
			Xattr:           xattr,
		})

		log.Info("Starting fingerprint run", "roots", roots, "hash", algo, "mode", mode)
		start := time.Now()

		if listOnly {
			paths, err := pipeline.ListPaths(cmd.Context())
			if err != nil {
				log.Error("Listing failed", "error", err)
				return err
			}
			records := make([]fingerprintcore.Record, len(paths))
			for i, p := range paths {
				records[i] = fingerprintcore.Record{Path: p}
			}
			return fingerprintcore.ListMatchedPaths(cmd.OutOrStdout(), records)
		}

		records, err := pipeline.Run(cmd.Context())
		if err != nil {
			log.Error("Fingerprint run failed", "error", err, "duration", time.Since(start))
			return err
		}

		fp := fingerprintcore.Fold(records, mode, roots, algo)
		duration := time.Since(start)
		log.Info("Fingerprint run completed", "duration", duration, "files", len(records))

		if snapshotPath != "" {
			params := fingerprintcore.Params{
				Roots:           roots,
				Globs:           globs,
				Regexes:         regexes,
				Hash:            algo,
				FingerprintMode: mode,
				Fingerprint:     fmt.Sprintf("%016x", fp),
				Timestamp:       time.Now().UTC().Format(time.RFC3339),
			}
			snap := fingerprintcore.RecordsToSnapshot(params, records, algo)
			if err := fingerprintcore.WriteSnapshot(snapshotPath, snap); err != nil {
				log.Error("Failed to write snapshot", "error", err)
				return err
			}
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %016x\n", fp)
		return err
	},
}

// runCompare implements `--compare A B`: loads both snapshots and reports
// added/removed/modified entries, exiting non-zero iff any diff is found.
func runCompare(cmd *cobra.Command, pair []string, log *slog.Logger) error {
	if len(pair) != 2 {
		return fmt.Errorf("--compare requires exactly two snapshot paths, got %d", len(pair))
	}
	before, err := fingerprintcore.ReadSnapshot(pair[0])
	if err != nil {
		log.Error("Failed to read snapshot", "path", pair[0], "error", err)
		return err
	}
	after, err := fingerprintcore.ReadSnapshot(pair[1])
	if err != nil {
		log.Error("Failed to read snapshot", "path", pair[1], "error", err)
		return err
	}

	result := fingerprintcore.Compare(before, after)
	out := cmd.OutOrStdout()
	if result.HashAlgoMismatch {
		fmt.Fprintln(out, "note: snapshots use different hash algorithms; hash diffs suppressed")
	}
	for _, entry := range result.Entries {
		switch entry.Kind {
		case fingerprintcore.DiffAdded:
			fmt.Fprintf(out, "added\t%s\n", entry.Path)
		case fingerprintcore.DiffRemoved:
			fmt.Fprintf(out, "removed\t%s\n", entry.Path)
		case fingerprintcore.DiffModified:
			fmt.Fprintf(out, "modified\t%s\t%v\n", entry.Path, entry.Fields)
		}
	}

	if result.HasDiff() {
		return fmt.Errorf("snapshots differ: %d change(s)", len(result.Entries))
	}
	return nil
}

// envMap builds the environment map used to expand ${VAR}/$(VAR)
// references in an --inputs file, mirroring the replay CLI's own
// process-environment seeding.
func envMap() map[string]string {
	env := make(map[string]string, 64)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

func init() {
	fingerprintCmd.Flags().StringArray("glob", nil, "Glob pattern to include (e.g. '*.go'). Can be specified multiple times.")
	fingerprintCmd.Flags().StringArray("regex", nil, "Regex pattern to include, matched against the absolute path. Can be specified multiple times.")
	fingerprintCmd.Flags().String("hash", "crc32c", "Hash algorithm: crc32c or blake3")
	fingerprintCmd.Flags().String("fingerprint-mode", "default", "Fingerprint fold mode: default, absolute, or relative")
	fingerprintCmd.Flags().String("xattr", "off", "Extended-attribute cache mode: on, off, refresh, or clear")
	fingerprintCmd.Flags().String("inputs", "", "Read additional root paths from FILE, one per line, with ${VAR} expansion")
	fingerprintCmd.Flags().Bool("list", false, "List matched paths instead of computing a fingerprint")
	fingerprintCmd.Flags().String("snapshot", "", "Write a snapshot document to PATH (.json, .plist, or .tsv)")
	fingerprintCmd.Flags().StringArray("compare", nil, "Compare two snapshot documents: --compare before.json after.json, or --compare before.json --compare after.json")

	cmd.Register(fingerprintCmd)
}
