package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/catfall/litterlog/internal/cli"
	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/engine"
	"github.com/catfall/litterlog/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv> [file.csv...]",
		Short: "Import activity exports",
		Long: `Import one or more activity CSV exports from the litter box app.

Each file is parsed, deduplicated against existing history, filtered
through the blacklist, classified by weight, and committed atomically.
A database snapshot is taken after every successful import.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Int("timezone-offset", 0, "Hours to subtract from device timestamps")
	cmd.Flags().Float64("tolerance", 0, "Max weight distance (lbs) for an assignment")

	_ = viper.BindPFlag("import.timezone_offset_hours", cmd.Flags().Lookup("timezone-offset"))
	_ = viper.BindPFlag("import.tolerance", cmd.Flags().Lookup("tolerance"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, err := expandGlobs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match the given patterns")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	eng, err := newEngine(store)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Importing %d file(s)", len(files))))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	failures := 0
	for _, path := range files {
		summary, err := importFile(cmd, eng, path)
		_ = bar.Add(1)
		if err != nil {
			failures++
			slog.Error("import failed", "file", path, "error", err)
			fmt.Println(cli.FormatError(fmt.Sprintf("%s: %v", filepath.Base(path), err)))
			continue
		}
		displaySummary(filepath.Base(path), summary)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d file(s) failed to import", failures, len(files))
	}
	return nil
}

func importFile(cmd *cobra.Command, eng *engine.Engine, path string) (*model.ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	summary, err := eng.Import(cmd.Context(), f, filepath.Base(path))
	if errors.Is(err, common.ErrNoProfiles) {
		return nil, common.NewUserError("add a cat profile first: litterlog cats add <name> --weight <lbs>", err)
	}
	return summary, err
}

// expandGlobs resolves shell-style patterns that the shell did not expand,
// deduplicates, and sorts the result.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if matches == nil {
			// Not a pattern; let the open fail with a useful error later
			matches = []string{pattern}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}

	sort.Strings(files)
	return files, nil
}

func displaySummary(filename string, s *model.ImportSummary) {
	content := fmt.Sprintf(`Rows examined: %d
Accepted:      %d
Duplicates:    %d
Blacklisted:   %d
Unknown:       %d
Errors:        %d
System events: %d
Malformed:     %d`,
		s.Total(), s.Accepted, s.Duplicates, s.Blacklisted,
		s.Unknown, s.Errors, s.System, s.Malformed)

	if s.BackupErr != nil {
		content += "\n\n" + cli.FormatWarning(fmt.Sprintf("backup failed: %v", s.BackupErr))
	} else if s.BackupPath != "" {
		content += fmt.Sprintf("\n\nBackup: %s", s.BackupPath)
	}

	fmt.Println(cli.RenderBox(cli.BoxIcon+" "+filename, content))

	if s.Unknown > 0 || s.Errors > 0 {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("%d visit(s) need review: litterlog review", s.Unknown+s.Errors)))
	}
}
