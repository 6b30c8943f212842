package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// --- rebuild ---

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Queue a storyline rebuild",
	Long: `Queue a storyline rebuild.

A full rebuild regroups the entire archive from scratch. With --incremental,
existing storylines keep their members and new articles only attach.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		incremental, _ := cmd.Flags().GetBool("incremental")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/rebuild"
		if incremental {
			path += "?incremental=true"
		}
		resp, err := client.post(cmd.Context(), path, nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued rebuild job %s", result["job_id"])
		return nil
	},
}

func init() {
	rebuildCmd.Flags().Bool("incremental", false, "attach new articles without regrouping existing storylines")
}

// --- detect ---

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the anomaly detection pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/detections/run", nil)
		if err != nil {
			return err
		}

		var summary struct {
			Surges        int `json:"surges"`
			Reactivations int `json:"reactivations"`
			NewActors     int `json:"new_actors"`
			AlertsCreated int `json:"alerts_created"`
		}
		if err := decodeJSON(resp, &summary); err != nil {
			return err
		}

		printStatus("Surges", "%d", summary.Surges)
		printStatus("Reactivations", "%d", summary.Reactivations)
		printStatus("New actors", "%d", summary.NewActors)
		printSuccess("Created %d alert(s)", summary.AlertsCreated)
		return nil
	},
}

// --- storylines ---

var storylinesCmd = &cobra.Command{
	Use:   "storylines",
	Short: "List and inspect storylines",
}

var storylinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List storylines, most significant first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		minMomentum, _ := cmd.Flags().GetFloat64("min-momentum")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		if cmd.Flags().Changed("min-momentum") {
			q.Set("min_momentum", strconv.FormatFloat(minMomentum, 'f', -1, 64))
		}
		path := "/storylines"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Storylines []struct {
				ID            int64   `json:"id"`
				Label         string  `json:"label"`
				Status        string  `json:"status"`
				MomentumScore float64 `json:"momentum_score"`
				ArticleCount  int     `json:"article_count"`
				FirstDate     string  `json:"first_date"`
				LastDate      string  `json:"last_date"`
			} `json:"storylines"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Storylines) == 0 {
			fmt.Println("No storylines found.")
			return nil
		}

		for _, st := range result.Storylines {
			fmt.Printf("%s  %s  %s  %.3f  %d articles  %s..%s\n",
				colorize(colorCyan, fmt.Sprintf("#%d", st.ID)),
				colorize(colorBold, st.Label),
				st.Status,
				st.MomentumScore,
				st.ArticleCount,
				st.FirstDate, st.LastDate,
			)
		}
		return nil
	},
}

var storylinesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a storyline timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/storylines/"+args[0])
		if err != nil {
			return err
		}

		var detail any
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

func init() {
	storylinesListCmd.Flags().String("status", "", "filter by status (active, dormant, concluded)")
	storylinesListCmd.Flags().Float64("min-momentum", 0, "only storylines at or above this momentum")
	storylinesCmd.AddCommand(storylinesListCmd)
	storylinesCmd.AddCommand(storylinesShowCmd)
}

// --- alerts ---

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and acknowledge alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		severity, _ := cmd.Flags().GetString("severity")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if kind != "" {
			q.Set("kind", kind)
		}
		if severity != "" {
			q.Set("severity", severity)
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		path := "/alerts"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Alerts []struct {
				ID           string `json:"id"`
				Kind         string `json:"kind"`
				TriggeredAt  string `json:"triggered_at"`
				Description  string `json:"description"`
				Severity     string `json:"severity"`
				Acknowledged bool   `json:"acknowledged"`
			} `json:"alerts"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Alerts) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		for _, a := range result.Alerts {
			marker := colorize(colorYellow, "open")
			if a.Acknowledged {
				marker = "acked"
			}
			sev := a.Severity
			if a.Severity == "high" {
				sev = colorize(colorRed, a.Severity)
			}
			fmt.Printf("%s  %s  %s  %s  %s  %s\n",
				colorize(colorCyan, a.ID[:8]),
				a.TriggeredAt,
				a.Kind,
				sev,
				marker,
				a.Description,
			)
		}
		return nil
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/alerts/"+args[0]+"/acknowledge", nil)
		if err != nil {
			return err
		}

		var result struct {
			Updated int `json:"updated"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Updated == 0 {
			printWarning("Alert %s was already acknowledged", args[0])
			return nil
		}
		printSuccess("Acknowledged alert %s", args[0])
		return nil
	},
}

func init() {
	alertsListCmd.Flags().String("kind", "", "filter by kind (topic_surge, story_reactivation, new_actor)")
	alertsListCmd.Flags().String("severity", "", "filter by severity (low, medium, high)")
	alertsListCmd.Flags().Int("limit", 0, "maximum number of alerts to list")
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storyline and alert counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Storylines struct {
				Total    int            `json:"total"`
				ByStatus map[string]int `json:"by_status"`
			} `json:"storylines"`
			Alerts struct {
				Total          int `json:"total"`
				Unacknowledged int `json:"unacknowledged"`
				Recent24h      int `json:"recent_24h"`
			} `json:"alerts"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Storylines", "%d total", stats.Storylines.Total)
		for _, status := range []string{"active", "dormant", "concluded"} {
			if n, ok := stats.Storylines.ByStatus[status]; ok {
				printStatus("  "+status, "%d", n)
			}
		}
		printStatus("Alerts", "%d total, %d open, %d in last 24h",
			stats.Alerts.Total, stats.Alerts.Unacknowledged, stats.Alerts.Recent24h)
		return nil
	},
}
