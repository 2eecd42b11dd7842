package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coherence/internal/app"
	"coherence/internal/config"
	"coherence/internal/logging"
	"coherence/internal/model"
	"coherence/internal/repository"
	"coherence/internal/service"
)

type commandContext struct {
	cacheDir string
	verbose  bool
}

func (c *commandContext) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if c.cacheDir != "" {
		cfg.Samples.CacheDir = c.cacheDir
	}
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "text", Output: os.Stderr})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (c *commandContext) sampleRepo() (*repository.SampleRepo, error) {
	cfg, logger, err := c.load()
	if err != nil {
		return nil, err
	}
	return repository.NewSampleRepo(cfg.Samples.CacheDir, logger), nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "samples",
		Short:         "Manage cached demo sample results",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&ctx.cacheDir, "cache-dir", "", "Sample cache directory (overrides SAMPLES_CACHE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline progress")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))
	return rootCmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List samples and their cache state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.sampleRepo()
			if err != nil {
				return err
			}
			files, err := repo.Files()
			if err != nil {
				return err
			}
			byID := make(map[string]repository.SampleFile, len(files))
			for _, f := range files {
				byID[f.SampleID] = f
			}

			rows := make([][]string, 0, len(service.Samples()))
			for _, s := range service.Samples() {
				size, updated := "-", "not cached"
				if f, ok := byID[s.ID]; ok {
					size = humanize.Bytes(uint64(f.Size))
					updated = humanize.Time(f.ModTime)
				}
				rows = append(rows, []string{
					s.ID,
					s.Title,
					strconv.Itoa(s.ExpectedScore),
					strconv.FormatFloat(s.DurationSeconds, 'f', 0, 64) + "s",
					size,
					updated,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Score", "Duration", "Cache", "Updated"},
				rows,
				map[int]bool{2: true, 3: true, 4: true},
			))
			return nil
		},
	}
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "process <sample> <video-path>",
		Short: "Run the analysis pipeline on a sample video and cache the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, ok := service.LookupSample(args[0])
			if !ok {
				return fmt.Errorf("unknown sample %q", args[0])
			}
			path := args[1]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("video file: %w", err)
			}

			cfg, logger, err := ctx.load()
			if err != nil {
				return err
			}
			// The run happens in-process; nothing outlives the command
			cfg.Storage.Backend = config.BackendMemory

			runCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}

			a, err := app.New(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if err := a.Videos.Save(runCtx, &model.Video{
				ID:         sample.ID,
				Filename:   info.Name(),
				SizeBytes:  info.Size(),
				Path:       path,
				UploadedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing %s (%s, %s)...\n", sample.ID, sample.Title, humanize.Bytes(uint64(info.Size())))
			result, err := a.Processor.Run(runCtx, sample.ID)
			if err != nil {
				return fmt.Errorf("process %s: %w", sample.ID, err)
			}
			if err := a.Samples.Save(sample.ID, result); err != nil {
				return err
			}

			fmt.Fprintf(out, "Score: %d (%s)\n", result.CoherenceScore, result.ScoreTier)
			if result.Degraded {
				fmt.Fprintln(out, "Warning: result is degraded; check upstream API keys")
			}
			fmt.Fprintf(out, "Cached to %s\n", a.Samples.Path(sample.ID))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Minute, "Maximum time for the pipeline run")
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [sample]",
		Short: "Remove cached sample results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.sampleRepo()
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(service.Samples()))
			if len(args) == 1 {
				sample, ok := service.LookupSample(args[0])
				if !ok {
					return fmt.Errorf("unknown sample %q", args[0])
				}
				ids = append(ids, sample.ID)
			} else {
				for _, s := range service.Samples() {
					ids = append(ids, s.ID)
				}
			}

			cleared := 0
			for _, id := range ids {
				if !repo.Cached(id) {
					continue
				}
				if err := repo.Delete(id); err != nil {
					return err
				}
				cleared++
			}
			if cleared == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cached samples to clear")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached sample(s)\n", cleared)
			return nil
		},
	}
}
