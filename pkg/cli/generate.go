package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-patch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-patch/pkg/models"
	"github.com/ekaya-inc/ekaya-patch/pkg/services"
	"github.com/ekaya-inc/ekaya-patch/pkg/sql"
)

// cliClientIP is recorded as the client address of patches generated offline.
const cliClientIP = "local"

// generateInput collects the generate command flags.
type generateInput struct {
	mode         string
	params       []string
	valueFiles   []string
	massFile     string
	ticket       string
	printContent bool
}

func newGenerateCommand(env func() *Env) *cobra.Command {
	var in generateInput

	cmd := &cobra.Command{
		Use:   "generate <query-id>",
		Short: "Generate a patch file without the HTTP server",
		Long: `Generates one patch file into the output directory, exactly as
POST /api/patch/{id} would.

Examples:
  ekaya-patch generate update-person-name -p person_id=12 -p new_name="O'Brien" --ticket JIRA-1
  ekaya-patch generate close-contracts -p end_date=2025-11-30 --values contract_ids=ids.txt
  ekaya-patch generate update-person-name --mass-file people.csv
  cut -d';' -f1 export.csv | ekaya-patch generate close-contracts -p end_date=2025-11-30 --values contract_ids=-`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := env()
			ctx := cmd.Context()

			query, err := e.Service.GetQuery(ctx, args[0])
			if err != nil {
				return err
			}

			mode, err := models.ParseExecutionMode(in.mode)
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
			}
			if in.massFile != "" && !cmd.Flags().Changed("mode") {
				mode = models.ExecutionModeMass
			}

			values, err := in.values(e.FS, cmd.InOrStdin(), query)
			if err != nil {
				return err
			}

			generated, err := e.Service.Generate(ctx, &services.GenerateRequest{
				QueryID:  query.ID,
				Mode:     mode,
				Values:   values,
				ClientIP: cliClientIP,
			})
			if err != nil {
				return err
			}

			status := cmd.OutOrStdout()
			if in.printContent {
				fmt.Fprint(cmd.OutOrStdout(), generated.Content())
				status = cmd.ErrOrStderr()
			}
			successStyle.Fprint(status, "Wrote ")
			fmt.Fprintln(status, filepath.Join(e.Store.Dir(), generated.FileName))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&in.mode, "mode", "m", string(models.ExecutionModeUnitary), "execution mode: unitaire or masse")
	flags.StringArrayVarP(&in.params, "param", "p", nil, "parameter value as name=value (repeatable)")
	flags.StringArrayVar(&in.valueFiles, "values", nil, "list parameter read one value per line as name=path, \"-\" for stdin (repeatable)")
	flags.StringVar(&in.massFile, "mass-file", "", "CSV file for mass mode, one row per line (selects masse mode)")
	flags.StringVar(&in.ticket, "ticket", "", "ticket reference written to the patch header")
	flags.BoolVar(&in.printContent, "print", false, "also print the generated patch to stdout")

	return cmd
}

// stdinPath reads a value list from standard input.
const stdinPath = "-"

// values builds the request values from the flags. Parameter names must be
// declared by the query, except the reserved ticket key. At most one list can
// be read from stdin.
func (in *generateInput) values(fs afero.Fs, stdin io.Reader, query *models.QueryDefinition) (models.ParameterValues, error) {
	if err := in.checkStdinSources(); err != nil {
		return nil, err
	}

	values := models.ParameterValues{}

	for _, raw := range in.params {
		name, value, err := splitAssignment("--param", raw)
		if err != nil {
			return nil, err
		}
		if name != models.TicketKey {
			if err := checkDeclared(query, name); err != nil {
				return nil, err
			}
		}
		values[name] = models.Scalar(value)
	}

	for _, raw := range in.valueFiles {
		name, path, err := splitAssignment("--values", raw)
		if err != nil {
			return nil, err
		}
		if err := checkDeclared(query, name); err != nil {
			return nil, err
		}
		lines, err := readLines(fs, stdin, path)
		if err != nil {
			return nil, err
		}
		values[name] = models.List(lines)
	}

	if in.massFile != "" {
		lines, err := readLines(fs, stdin, in.massFile)
		if err != nil {
			return nil, err
		}
		values[models.MassFileKey] = models.List(lines)
	}

	if in.ticket != "" {
		values[models.TicketKey] = models.Scalar(in.ticket)
	}
	return values, nil
}

func (in *generateInput) checkStdinSources() error {
	var sources []string
	for _, raw := range in.valueFiles {
		if name, path, ok := strings.Cut(raw, "="); ok && path == stdinPath {
			sources = append(sources, "--values "+strings.TrimSpace(name))
		}
	}
	if in.massFile == stdinPath {
		sources = append(sources, "--mass-file")
	}
	if len(sources) > 1 {
		return fmt.Errorf("%w: only one list can be read from stdin, got %s", apperrors.ErrValidation, strings.Join(sources, ", "))
	}
	return nil
}

func splitAssignment(flag, raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: %s %q must be name=value", apperrors.ErrValidation, flag, raw)
	}
	return name, value, nil
}

func checkDeclared(query *models.QueryDefinition, name string) error {
	if _, ok := query.Parameter(name); !ok {
		return fmt.Errorf("%w: query %s has no parameter %q", apperrors.ErrValidation, query.ID, name)
	}
	return nil
}

// readLines reads a value list from path, or from stdin when path is "-".
func readLines(fs afero.Fs, stdin io.Reader, path string) ([]string, error) {
	if path == stdinPath {
		return sql.ReadValueLines(stdin)
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := sql.ReadValueLines(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
