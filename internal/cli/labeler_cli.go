// Package cli implements labelerctl, which drives the classifier directly against the configured model store.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"labeler_server/core/port/in"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// Opener builds the classifier and returns a function releasing its resources.
type Opener func(ctx context.Context) (in.ClassifierService, func(), error)

type runner struct {
	open Opener
	out  io.Writer
}

// withService opens the classifier for the duration of fn.
func (r *runner) withService(ctx context.Context, fn func(svc in.ClassifierService) error) error {
	svc, closeFn, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func (r *runner) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func NewRootCmd(open Opener, out io.Writer) *cobra.Command {
	r := &runner{open: open, out: out}
	cmd := &cobra.Command{
		Use:           "labelerctl",
		Short:         "Train and query the email label classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(
		newTrainCmd(r),
		newClassifyCmd(r),
		newEvaluateCmd(r),
		newResetCmd(r),
		newStatusCmd(r),
	)
	return cmd
}

// trainRecord is one line of a JSONL training file.
type trainRecord struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

func newTrainCmd(r *runner) *cobra.Command {
	var text, label, file string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Submit labeled examples",
		Example: `
  # One example
  labelerctl train --label spam --text "win free money now"

  # JSONL file of {"text": ..., "label": ...}
  labelerctl train -f examples.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []trainRecord
			switch {
			case file != "":
				var err error
				if records, err = readRecords(file); err != nil {
					return err
				}
			case text != "" || label != "":
				records = []trainRecord{{Text: text, Label: label}}
			default:
				return fmt.Errorf("either --file or --text and --label are required")
			}

			return r.withService(cmd.Context(), func(svc in.ClassifierService) error {
				for i, rec := range records {
					result, err := svc.SubmitExample(cmd.Context(), rec.Text, rec.Label)
					if err != nil {
						return fmt.Errorf("example %d: %w", i+1, err)
					}
					if i == len(records)-1 {
						return r.print(result)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Example text")
	cmd.Flags().StringVar(&label, "label", "", "Example label")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a JSONL file of examples")
	return cmd
}

func readRecords(path string) ([]trainRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []trainRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec trainRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no examples", path)
	}
	return records, nil
}

func newClassifyCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "classify TEXT...",
		Short: "Predict the label of a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return r.withService(cmd.Context(), func(svc in.ClassifierService) error {
				pred, err := svc.Classify(cmd.Context(), text, false)
				if err != nil {
					return err
				}
				return r.print(pred)
			})
		},
	}
}

func newEvaluateCmd(r *runner) *cobra.Command {
	var fraction float64
	var folds int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Report held-out and cross-validated accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd.Context(), func(svc in.ClassifierService) error {
				report, err := svc.EvaluateAccuracy(cmd.Context(), fraction, folds)
				if err != nil {
					return err
				}
				return r.print(report)
			})
		},
	}
	cmd.Flags().Float64Var(&fraction, "test-fraction", 0.2, "Fraction of each label held out for testing")
	cmd.Flags().IntVar(&folds, "folds", 5, "Number of cross-validation folds")
	return cmd
}

func newResetCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard all examples and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd.Context(), func(svc in.ClassifierService) error {
				if err := svc.Reset(cmd.Context()); err != nil {
					return err
				}
				return r.print(map[string]string{"status": "success"})
			})
		},
	}
}

func newStatusCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show training progress and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd.Context(), func(svc in.ClassifierService) error {
				return r.print(svc.Status(cmd.Context()))
			})
		},
	}
}
