package main

import (
	"fmt"
	"os"
	"strings"

	"clinicprobe/internal/fixture"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fixtureSchema string
	fixtureRows   int
	fixtureOut    string
	fixtureSeed   uint64
)

var fixtureCmd = &cobra.Command{
	Use:   "fixture <classification>",
	Short: "Write a CSV fixture for manual testing",
	Long: `Generates one fixture and writes it to --out, or to stdout.

Classifications:
  ` + classificationList() + `

Example:
  clinicprobe fixture injection-markup --schema patient-contacts --out xss.csv
  clinicprobe fixture oversized-rows > large.csv
  clinicprobe fixture valid --rows 25 --schema stock`,
	Args: cobra.ExactArgs(1),
	RunE: writeFixture,
}

func init() {
	fixtureCmd.Flags().StringVar(&fixtureSchema, "schema", fixture.PatientContacts.Name, "Schema name")
	fixtureCmd.Flags().IntVar(&fixtureRows, "rows", 0, "Row count, or field length for oversized-field (default depends on the classification)")
	fixtureCmd.Flags().StringVarP(&fixtureOut, "out", "o", "", "Output path (default stdout)")
	fixtureCmd.Flags().Uint64Var(&fixtureSeed, "seed", 1, "Generator seed")
}

func classificationList() string {
	var names []string
	for _, c := range fixture.Classifications() {
		names = append(names, string(c))
	}
	return strings.Join(names, "\n  ")
}

func writeFixture(cmd *cobra.Command, args []string) error {
	schema, ok := fixture.SchemaByName(fixtureSchema)
	if !ok {
		var names []string
		for _, s := range fixture.Schemas() {
			names = append(names, s.Name)
		}
		return fmt.Errorf("unknown schema %q (known: %s)", fixtureSchema, strings.Join(names, ", "))
	}

	class := fixture.Classification(args[0])
	size := fixtureRows
	if size == 0 {
		size = fixture.DefaultSize(class)
	}
	f, err := fixture.NewGenerator(fixtureSeed).Generate(class, schema, size)
	if err != nil {
		return err
	}

	if fixtureOut == "" {
		return f.Encode(cmd.OutOrStdout())
	}
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(fixtureOut, data, 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	logger.Info("fixture written",
		zap.String("path", fixtureOut),
		zap.String("class", string(f.Class)),
		zap.Int("rows", len(f.Rows)))
	return nil
}
