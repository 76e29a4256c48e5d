package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/carfix-labs/carfix/engine/diagnose"
	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/fallback"
	"github.com/carfix-labs/carfix/engine/keywords"
	"github.com/carfix-labs/carfix/engine/knowledge"
	"github.com/carfix-labs/carfix/engine/lang"
)

func diagnoseCmd() *cobra.Command {
	var (
		brand, model, policy string
		offline, asJSON      bool
		insights             bool
	)

	cmd := &cobra.Command{
		Use:   "diagnose <symptoms...>",
		Short: "Match a symptom description against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog()
			if err != nil {
				return err
			}
			opts := diagnose.DefaultOptions()
			if opts.Policy, err = diagnose.ParsePolicy(policy); err != nil {
				return err
			}
			opts.InferVehicle = true

			adapter := fallback.NewAdapter(fallback.Offline{}, logger, fallback.DefaultOptions())
			var fb diagnose.Fallback
			if offline {
				fb = adapter
			}
			svc := diagnose.New(knowledge.NewMemory(c), keywords.New(keywords.ProseTagger{}, logger), lang.PassThrough{}, fb, opts, logger)

			d, err := svc.Diagnose(cmd.Context(), domain.Query{Text: strings.Join(args, " "), Brand: brand, Model: model})
			if err != nil {
				return err
			}
			var ins *fallback.Insights
			if insights && len(d.Results) > 0 {
				top := d.Results[0]
				got := adapter.Enrich(cmd.Context(), domain.Vehicle{Brand: top.Brand, Model: top.Model}, top.Problem)
				ins = &got
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(diagnosisOutput{Diagnosis: d, Insights: ins})
			}
			printDiagnosis(cmd, d)
			if ins != nil {
				printInsights(cmd, *ins)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "vehicle brand filter")
	cmd.Flags().StringVar(&model, "model", "", "vehicle model filter")
	cmd.Flags().StringVar(&policy, "policy", envOr("SCORE_POLICY", string(diagnose.PolicyNormalized)), "scoring policy: raw_count, normalized or thresholded")
	cmd.Flags().BoolVar(&offline, "offline-fallback", false, "use the offline generator when nothing matches")
	cmd.Flags().BoolVar(&insights, "insights", false, "add maintenance tips and related issues for the top result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

type diagnosisOutput struct {
	domain.Diagnosis
	Insights *fallback.Insights `json:"insights,omitempty"`
}

func printInsights(cmd *cobra.Command, ins fallback.Insights) {
	out := cmd.OutOrStdout()
	if len(ins.Tips) > 0 {
		fmt.Fprintln(out, "Maintenance tips:")
		for _, t := range ins.Tips {
			fmt.Fprintln(out, "-", t)
		}
	}
	for _, r := range ins.Related {
		fmt.Fprintf(out, "Related: %s\n", r.Issue)
	}
}

func printDiagnosis(cmd *cobra.Command, d domain.Diagnosis) {
	out := cmd.OutOrStdout()
	if d.FollowUp != "" {
		fmt.Fprintln(out, d.FollowUp)
	}
	if len(d.Results) > 0 {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"#", "Vehicle", "Problem", "Solution", "Score", "Matches", "Source"})
		table.SetAutoWrapText(true)
		for i, r := range d.Results {
			table.Append([]string{
				strconv.Itoa(i + 1),
				strings.TrimSpace(r.Brand + " " + r.Model),
				r.Problem,
				r.Solution,
				strconv.FormatFloat(r.Score, 'f', 2, 64),
				strconv.Itoa(r.MatchCount),
				string(r.Source),
			})
		}
		table.Render()
	}
	if d.Message != "" {
		fmt.Fprintln(out, d.Message)
	}
	for _, q := range d.FollowUpQuestions {
		fmt.Fprintln(out, "-", q)
	}
}
