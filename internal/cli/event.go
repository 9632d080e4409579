package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для отправки событий репозитория.
// Используется хуками репозитория и для ручной проверки триггеров.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Submit repository events",
	}

	cmd.AddCommand(
		newEventPushCmd(clientFn, outputFn),
		newEventPullRequestCmd(clientFn, outputFn),
	)

	return cmd
}

func newEventPushCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var ref string
	var commit string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Submit a push event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitEvent(clientFn(), outputFn(), EventRequest{
				Kind:   "push",
				Ref:    ref,
				Commit: commit,
			})
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Pushed branch or ref (required)")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA (required)")
	cmd.MarkFlagRequired("ref")
	cmd.MarkFlagRequired("commit")

	return cmd
}

func newEventPullRequestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var ref string
	var commit string

	cmd := &cobra.Command{
		Use:   "pull-request",
		Short: "Submit a pull_request event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitEvent(clientFn(), outputFn(), EventRequest{
				Kind:   "pull_request",
				Ref:    ref,
				Commit: commit,
			})
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Source branch or ref")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA (required)")
	cmd.MarkFlagRequired("commit")

	return cmd
}

func submitEvent(client *Client, out *Output, req EventRequest) error {
	resp, err := client.SubmitEvent(req)
	if err != nil {
		return err
	}

	out.Success(fmt.Sprintf("Event accepted: %d pipelines matched, %d runs", resp.Matched, len(resp.Runs)))

	headers := []string{"RUN_ID", "PIPELINE_ID", "VERSION", "STATUS"}
	rows := make([][]string, len(resp.Runs))
	for i, r := range resp.Runs {
		rows[i] = []string{r.ID, r.PipelineID, strconv.Itoa(r.Version), r.Status}
	}

	out.Print(headers, rows, resp)
	return nil
}
