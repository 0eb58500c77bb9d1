package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reg-briefing/internal/adapters/api"
	"reg-briefing/internal/domain"
	"reg-briefing/internal/infra/config"
)

const dateLayout = "2006-01-02"

var (
	apiURL string
	client *api.Client
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "briefctl",
	Short:        "Regulatory smart briefing control",
	Long:         "briefctl starts briefing runs and reads briefings and run metrics through the briefing API.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = api.NewClient(apiURL, nil)
	},
}

func init() {
	defaultURL := os.Getenv("BRIEFCTL_API")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "Briefing API base URL")

	runCmd.Flags().String("start", "", "Window start (YYYY-MM-DD)")
	runCmd.Flags().String("end", "", "Window end (YYYY-MM-DD)")
	runCmd.Flags().StringSlice("update-id", nil, "Restrict the dataset to these update ids")
	runCmd.Flags().Bool("force", false, "Regenerate even when a cached briefing matches")
	runCmd.Flags().Bool("annotations", true, "Include annotations")
	runCmd.Flags().Bool("no-history-fallback", false, "Do not fall back to the full history when the window is empty")
	runCmd.Flags().String("prompt-version", "", "Prompt version override")
	runCmd.Flags().String("firm-context", "", "Path to a firm profile YAML file")
	runCmd.Flags().Bool("detach", false, "Return right after the run is queued")
	runCmd.Flags().Duration("poll", 2*time.Second, "Status poll interval")

	listCmd.Flags().Int("limit", 20, "Number of briefings to list")

	rootCmd.AddCommand(runCmd, statusCmd, latestCmd, showCmd, listCmd, metricsCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a briefing run and wait for it to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}
		status, err := client.StartRun(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s queued\n", status.RunID)
		if detach, _ := cmd.Flags().GetBool("detach"); detach {
			return nil
		}
		poll, _ := cmd.Flags().GetDuration("poll")
		final, err := client.WaitRun(cmd.Context(), status.RunID, poll, func(s domain.RunStatus) {
			fmt.Printf("  %-10s %s\n", s.State, s.Message)
		})
		if err != nil {
			return err
		}
		if final.State == domain.RunFailed {
			return fmt.Errorf("run %s failed: %s", final.RunID, final.Error)
		}
		cached := ""
		if final.CacheHit {
			cached = " (cached)"
		}
		fmt.Printf("Briefing %s ready%s\n", final.BriefingID, cached)
		return nil
	},
}

func runOptions(cmd *cobra.Command) (domain.RunOptions, error) {
	var opts domain.RunOptions
	for _, bound := range []struct {
		flag string
		dst  **time.Time
	}{{"start", &opts.DateRange.Start}, {"end", &opts.DateRange.End}} {
		raw, _ := cmd.Flags().GetString(bound.flag)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return opts, fmt.Errorf("--%s: %w", bound.flag, err)
		}
		*bound.dst = &t
	}
	opts.UpdateIDs, _ = cmd.Flags().GetStringSlice("update-id")
	opts.ForceRegenerate, _ = cmd.Flags().GetBool("force")
	opts.IncludeAnnotations, _ = cmd.Flags().GetBool("annotations")
	opts.PromptVersion, _ = cmd.Flags().GetString("prompt-version")
	if noFallback, _ := cmd.Flags().GetBool("no-history-fallback"); noFallback {
		off := false
		opts.FallbackToHistory = &off
	}
	if path, _ := cmd.Flags().GetString("firm-context"); path != "" {
		fc, err := config.LoadFirmContext(path)
		if err != nil {
			return opts, err
		}
		opts.FirmContext = fc
	}
	return opts, nil
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show run status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := client.RunStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest briefing",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := client.Latest(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(b)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <briefing-id>",
	Short: "Print a briefing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := client.Briefing(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(b)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent briefings",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := client.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No briefings yet.")
			return nil
		}
		for _, b := range list {
			fmt.Printf("%s  %s  %s..%s  %d updates  %s\n",
				b.ID,
				b.GeneratedAt.Format(time.RFC3339),
				b.DateRange.Start.Format(dateLayout),
				b.DateRange.End.Format(dateLayout),
				b.Metadata.Totals.CurrentUpdates,
				b.Metadata.Provider,
			)
		}
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show run metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := client.Metrics(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Runs: %d\n", summary.Totals.Runs)
		fmt.Printf("Cache hits: %d\n", summary.Totals.CacheHits)
		fmt.Printf("Total tokens: %d\n", summary.Totals.TotalTokens)
		if last := summary.LastRun; last != nil {
			fmt.Printf("\nLast run %s: briefing %s, %d ms, cache hit %t\n", last.RunID, last.BriefingID, last.DurationMs, last.CacheHit)
		}
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
