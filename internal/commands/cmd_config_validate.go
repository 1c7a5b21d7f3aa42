package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "cadence config validate [options]",
				Description: "Validates the configuration file, the data directory and the metrics listen address.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationReport struct {
	Valid  bool              `json:"valid"`
	Errors []validationIssue `json:"errors,omitempty"`
}

func newValidationReport(err error) validationReport {
	if err == nil {
		return validationReport{Valid: true}
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return validationReport{Errors: []validationIssue{{Message: err.Error()}}}
	}

	report := validationReport{Errors: make([]validationIssue, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		report.Errors = append(report.Errors, validationIssue{Field: fe.Field, Message: fe.Err.Error()})
	}
	return report
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	report := newValidationReport(cmd.flags.Config.ValidateDeep(cmd.flags.ConfigPath))

	out := c.Root().Writer
	if cmd.format == "json" {
		if err := iojson.WriteWith(out, c.Root().ErrWriter, report); err != nil {
			return err
		}
	} else {
		for _, issue := range report.Errors {
			if issue.Field == "" {
				_, _ = fmt.Fprintf(out, "✗ %s\n", issue.Message)
				continue
			}
			_, _ = fmt.Fprintf(out, "✗ %s: %s\n", issue.Field, issue.Message)
		}
		if report.Valid {
			_, _ = fmt.Fprintln(out, "✓ Configuration is valid")
		} else {
			_, _ = fmt.Fprintf(out, "\n%d error(s) found\n", len(report.Errors))
		}
	}

	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}
