package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/edumood/internal/classify"
	"github.com/kalambet/edumood/internal/config"
	"github.com/kalambet/edumood/internal/feedback"
)

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit <feedback...>",
	Short: "Submit a piece of feedback and print its classification",
	Long: `Submit a piece of feedback and print its classification.

Examples:
  edumood submit "The recursion example went way too fast"
  echo "Loved the live demo" | edumood submit -`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if text == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("feedback text is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		rec, err := submitFeedback(cmd.Context(), client, text)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return printJSON(rec)
		}
		printSuccess("Recorded as %s", colorize(colorBold, string(rec.Emotion)))
		printStatus("Reasoning", "%s", rec.Reasoning)
		return nil
	},
}

func submitFeedback(ctx context.Context, c *apiClient, text string) (feedback.Record, error) {
	resp, err := c.post(ctx, "/submit_feedback", map[string]string{"feedback": text})
	if err != nil {
		return feedback.Record{}, err
	}
	var rec feedback.Record
	if err := decodeJSON(resp, &rec); err != nil {
		return feedback.Record{}, err
	}
	return rec, nil
}

func init() {
	submitCmd.Flags().Bool("json", false, "print the stored record as JSON")
}

// --- trend ---

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show the daily Confusion Index",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		points, err := fetchTrend(cmd.Context(), client)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return printJSON(points)
		}
		if len(points) == 0 {
			printWarning("No feedback recorded yet.")
			return nil
		}
		writeTrend(cmd.OutOrStdout(), points)
		return nil
	},
}

func fetchTrend(ctx context.Context, c *apiClient) ([]feedback.TrendPoint, error) {
	resp, err := c.get(ctx, "/api/time_series_data")
	if err != nil {
		return nil, err
	}
	var points []feedback.TrendPoint
	if err := decodeJSON(resp, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func writeTrend(w io.Writer, points []feedback.TrendPoint) {
	fmt.Fprintf(w, "%-10s  %-5s\n", "DATE", "INDEX")
	for _, p := range points {
		fmt.Fprintf(w, "%-10s  %.3f  %s\n", p.Date, p.ConfusionIndex, confusionBar(p.ConfusionIndex, 20))
	}
}

func init() {
	trendCmd.Flags().Bool("json", false, "print the series as JSON")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download all feedback as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		n, err := exportCSV(cmd.Context(), client, w)
		if err != nil {
			if output != "" {
				os.Remove(output)
			}
			return err
		}
		if n == 0 {
			printWarning("No data available to download.")
			if output != "" {
				os.Remove(output)
			}
			return nil
		}

		if output != "" {
			printSuccess("Feedback exported to %s", output)
		}
		return nil
	},
}

// exportCSV streams /download_csv into w and returns the bytes written.
// An empty store is reported as zero bytes, not an error.
func exportCSV(ctx context.Context, c *apiClient, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, "/download_csv")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode >= 400 {
		return 0, statusError(resp)
	}
	return io.Copy(w, resp.Body)
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show EduMood server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient = &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running at %s", client.baseURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Classifier", "%s (%s)", cfg.Classifier.Provider, providerModel(cfg))
	if err := cfg.RequireCredentials(); err != nil {
		printWarning("%v", err)
	}
	printStatus("Storage", "%s in %s", cfg.Storage.Backend, cfg.Storage.DataDir)

	if running {
		if points, err := fetchTrend(ctx, client); err == nil && len(points) > 0 {
			last := points[len(points)-1]
			printStatus("Confusion Index", "%.3f on %s (%d days)", last.ConfusionIndex, last.Date, len(points))
		}
		resp, err := client.get(ctx, "/api/feedback")
		if err == nil {
			var records []feedback.Record
			if decodeJSON(resp, &records) == nil {
				printStatus("Feedback", "%d records", len(records))
			}
		}
	}
	return nil
}

func providerModel(cfg config.Config) string {
	switch cfg.Classifier.Provider {
	case classify.ProviderOllama:
		return cfg.Ollama.Model
	case classify.ProviderOpenRouter:
		return cfg.OpenRouter.Model
	default:
		return cfg.Gemini.Model
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value.\n\nValid keys:\n  " + strings.Join(config.ValidKeys(), "\n  ") +
		"\n\nClassifier providers: " + strings.Join(classify.Providers(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
