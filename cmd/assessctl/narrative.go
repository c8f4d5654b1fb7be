package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/scoring"
)

// readAnswers accepts either a bare JSON array or {"answers": [...]}. "-"
// reads stdin.
func readAnswers(cmd *cobra.Command, path string) ([]int, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}

	var answers []int
	if err := json.Unmarshal(data, &answers); err != nil {
		var wrapped struct {
			Answers []int `json:"answers"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode answers from %s: %w", path, err)
		}
		answers = wrapped.Answers
	}

	if err := questionnaire.ValidateAnswers(answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("an input file is required")
	}
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

type scoreOutput struct {
	Domain         questionnaire.Domain   `json:"domain"`
	Score          int                    `json:"score"`
	MaxScore       int                    `json:"max_score"`
	Percentage     float64                `json:"percentage"`
	Classification scoring.Classification `json:"classification"`
	Label          string                 `json:"label"`
}

func newScoreCmd() *cobra.Command {
	var answersPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a 68-answer file per domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := readAnswers(cmd, answersPath)
			if err != nil {
				return err
			}

			res := scoring.Score(answers)
			out := make([]scoreOutput, 0, len(res.Domains))
			for _, d := range res.Domains {
				out = append(out, scoreOutput{
					Domain:         d.Domain,
					Score:          d.Score,
					MaxScore:       d.MaxScore,
					Percentage:     d.Percentage,
					Classification: d.Classification,
					Label:          d.Classification.Label(),
				})
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&answersPath, "answers", "", "JSON file with the answers, - for stdin")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newPromptCmd() *cobra.Command {
	var (
		answersPath string
		name        string
		age         int
		date        string
		version     string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the narrative prompt for an answer file",
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := readAnswers(cmd, answersPath)
			if err != nil {
				return err
			}

			profile, err := narrative.LoadProfile(version)
			if err != nil {
				return err
			}

			meta := narrative.PatientMeta{Name: name}
			if cmd.Flags().Changed("age") {
				meta.Age = &age
			}
			if date != "" {
				evaluated, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				meta.EvaluatedAt = &evaluated
			}

			f := narrative.Format(strings.ToLower(format))
			if f != narrative.FormatText && f != narrative.FormatStructured {
				return fmt.Errorf("--format must be %s or %s", narrative.FormatText, narrative.FormatStructured)
			}

			builder := narrative.NewBuilder(profile, f)
			prompt, err := builder.Build(answers, scoring.Score(answers), meta)
			if err != nil {
				return err
			}
			return printJSON(cmd, prompt)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&answersPath, "answers", "", "JSON file with the answers, - for stdin")
	flags.StringVar(&name, "name", "", "patient name rendered into the prompt")
	flags.IntVar(&age, "age", 0, "patient age")
	flags.StringVar(&date, "date", "", "evaluation date, YYYY-MM-DD")
	flags.StringVar(&version, "markers-version", narrative.DefaultVersion, "narrative profile version")
	flags.StringVar(&format, "format", string(narrative.FormatText), "text or structured")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newParseCmd() *cobra.Command {
	var (
		inputPath   string
		version     string
		markersFile string
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Extract report fields from a generated narrative",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, inputPath)
			if err != nil {
				return err
			}

			profile, err := narrative.LoadProfile(version)
			if err != nil {
				return err
			}
			markers := profile.Markers
			if markersFile != "" {
				if markers, err = narrative.LoadMarkerFile(markersFile); err != nil {
					return err
				}
			}

			return printJSON(cmd, narrative.NewParser(markers).Parse(string(raw)))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inputPath, "input", "", "narrative text file, - for stdin")
	flags.StringVar(&version, "markers-version", narrative.DefaultVersion, "built-in marker version")
	flags.StringVar(&markersFile, "markers-file", "", "YAML marker file overriding the built-in set")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newMarkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markers",
		Short: "List the built-in marker versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := narrative.Versions()
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}
