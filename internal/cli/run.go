package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunJobsCmd(clientFn, outputFn),
		newRunReportCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipelineID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				PipelineID: pipelineID,
				Status:     status,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PIPELINE_ID", "VERSION", "STATUS", "EVENT", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.PipelineID, strconv.Itoa(r.Version), r.Status, r.Event.Kind, r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Filter by pipeline ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var version int
	var ref string
	var commit string

	cmd := &cobra.Command{
		Use:   "start PIPELINE_ID",
		Short: "Start a new run manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateRunRequest{
				Ref:    ref,
				Commit: commit,
			}

			if cmd.Flags().Changed("version") {
				req.Version = &version
			}

			run, err := client.CreateRun(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(
				[]string{"ID", "PIPELINE_ID", "VERSION", "STATUS", "CREATED"},
				[][]string{{run.ID, run.PipelineID, strconv.Itoa(run.Version), run.Status, run.CreatedAt}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Pipeline version (latest if not specified)")
	cmd.Flags().StringVar(&ref, "ref", "", "Branch or ref to check out")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA to check out")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PIPELINE_ID", "VERSION", "STATUS", "EVENT", "ERROR", "CREATED"},
				[][]string{{run.ID, run.PipelineID, strconv.Itoa(run.Version), run.Status, run.Event.Kind, run.Error, run.CreatedAt}},
				run,
			)
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a run and all its in-flight jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run cancellation requested: %s", run.ID))
			return nil
		},
	}
}

func newRunJobsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs RUN_ID",
		Short: "List jobs in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "KEY", "STATUS", "FAILURE", "FAILED_STEP", "ERROR"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.ID, j.Key, j.Status, j.FailureKind, j.FailedStep, j.Error}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}
}

func newRunReportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "report RUN_ID",
		Short: "Show aggregated run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			report, err := client.GetRunReport(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %s: %s (%d jobs, %d succeeded, %d failed, %d cancelled)",
				report.Run.ID, report.Run.Status,
				report.Total, report.Succeeded, report.Failed, report.Cancelled,
			))

			headers := []string{"KEY", "STATUS", "FAILURE", "FAILED_STEP"}
			rows := make([][]string, len(report.Jobs))
			for i, j := range report.Jobs {
				rows[i] = []string{j.Key, j.Status, j.FailureKind, j.FailedStep}
			}

			out.Print(headers, rows, report)
			return nil
		},
	}
}
