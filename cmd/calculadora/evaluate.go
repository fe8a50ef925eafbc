package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamcoop/excedencia/calculator"
)

// errEvaluationFailed is returned after the failure report has been printed
var errEvaluationFailed = errors.New("evaluation failed")

type evaluateOptions struct {
	relationship string
	trigger      string
	singleParent string
	children     string
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one scenario",
		Long: `Evaluate one scenario and print the result as JSON.

Failures are printed as a report on stderr and exit with status 1.`,
		Example: `  calculadora evaluate --parentesco madre --situacion enfermedad --monoparental false
  calculadora evaluate --parentesco padre --situacion parto --monoparental true --hijos 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			params := map[string]any{
				calculator.FieldRelationship:       opts.relationship,
				calculator.FieldTrigger:            opts.trigger,
				calculator.FieldSingleParentFamily: opts.singleParent,
			}
			if cmd.Flags().Changed("hijos") {
				params[calculator.FieldChildCount] = opts.children
			}

			resp, err := a.Evaluator.EvaluateArgs(cmd.Context(), params)
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), calculator.Report(err))
				if calculator.Kind(err) != calculator.OutcomeValidation {
					fmt.Fprintln(cmd.ErrOrStderr())
				}
				return errEvaluationFailed
			}

			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.relationship, "parentesco", "", "relación familiar (padre, madre, hijo, hija, conyuge, pareja, esposo, esposa, mujer, marido)")
	cmd.Flags().StringVar(&opts.trigger, "situacion", "", "situación (parto, adopcion, acogimiento, parto_multiple, adopcion_multiple, acogimiento_multiple, enfermedad, accidente)")
	cmd.Flags().StringVar(&opts.singleParent, "monoparental", "false", "familia monoparental (true/false)")
	cmd.Flags().StringVar(&opts.children, "hijos", "", "número total de hijos incluyendo al recién nacido")
	cmd.MarkFlagRequired("parentesco")
	cmd.MarkFlagRequired("situacion")

	return cmd
}
