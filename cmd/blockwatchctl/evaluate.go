package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockwatch/blockwatch/internal/rules"
)

// evaluateResult is what evaluate prints
type evaluateResult struct {
	Reading         rules.Values                  `json:"reading" yaml:"reading"`
	Filled          []rules.Field                 `json:"filled" yaml:"filled"`
	Alerts          []rules.AlertFinding          `json:"alerts" yaml:"alerts"`
	Recommendations []rules.RecommendationFinding `json:"recommendations" yaml:"recommendations"`
}

func newEvaluateCmd(output *string) *cobra.Command {
	var readingPath, previousPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Dry-run the risk rules against a reading",
		Long: `Evaluate a reading without touching the database. The reading is a JSON
object keyed by field name, for example {"temperature": 36, "moisture": 15}.
With --previous, blank fields are filled from that reading first, the way the
server fills them from the block's last observation.`,
		Example: `  blockwatchctl evaluate --reading visit.json
  echo '{"fireFlag": true}' | blockwatchctl evaluate --reading - -o table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(*output)
			if err != nil {
				return err
			}
			current, err := readValues(readingPath, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading: %w", err)
			}
			var previous rules.Values
			if previousPath != "" {
				if previous, err = readValues(previousPath, cmd.InOrStdin()); err != nil {
					return fmt.Errorf("previous reading: %w", err)
				}
			}

			res := evaluateReading(current, previous)
			return printOutput(cmd.OutOrStdout(), format, res,
				[]string{"KIND", "NAME", "LEVEL", "MESSAGE"}, res.rows())
		},
	}

	cmd.Flags().StringVar(&readingPath, "reading", "-", "JSON file holding the reading, - for stdin")
	cmd.Flags().StringVar(&previousPath, "previous", "", "JSON file holding the block's previous reading")
	return cmd
}

func evaluateReading(current, previous rules.Values) evaluateResult {
	cur := rules.NewReading("", "", time.Now(), current)
	var prev *rules.Reading
	if previous != nil {
		p := rules.NewReading("", "", time.Now(), previous)
		prev = &p
	}

	merged, filled := rules.ResolveWithReport(cur, prev)
	eval := rules.Evaluate(merged)

	res := evaluateResult{
		Reading:         merged.Values,
		Filled:          filled,
		Alerts:          eval.Alerts,
		Recommendations: eval.Recommendations,
	}
	if res.Filled == nil {
		res.Filled = []rules.Field{}
	}
	if res.Alerts == nil {
		res.Alerts = []rules.AlertFinding{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []rules.RecommendationFinding{}
	}
	return res
}

func (r evaluateResult) rows() [][]string {
	rows := make([][]string, 0, len(r.Alerts)+len(r.Recommendations))
	for _, a := range r.Alerts {
		rows = append(rows, []string{"alert", string(a.Type), string(a.Severity), a.Message})
	}
	for _, rec := range r.Recommendations {
		rows = append(rows, []string{"recommendation", string(rec.Title), string(rec.Priority), rec.Body})
	}
	return rows
}

var knownFields = func() map[rules.Field]bool {
	m := map[rules.Field]bool{rules.FieldVisiblePests: true, rules.FieldFireFlag: true}
	for _, f := range rules.GapFillFields {
		m[f] = true
	}
	return m
}()

// readValues decodes a reading from path, or from stdin when path is "-"
func readValues(path string, stdin io.Reader) (rules.Values, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	values := make(rules.Values, len(raw))
	for k, v := range raw {
		f := rules.Field(k)
		if !knownFields[f] {
			return nil, fmt.Errorf("unknown field %q", k)
		}
		values[f] = v
	}
	return values, nil
}
