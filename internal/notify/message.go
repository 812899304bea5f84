package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var stageEmoji = map[string]string{
	"completed": ":white_check_mark:",
	"failed":    ":x:",
	"cancelled": ":no_entry_sign:",
}

var stageLabel = map[string]string{
	"completed": "Task Complete",
	"failed":    "Task Failed",
	"cancelled": "Task Cancelled",
}

func taskURL(taskID int64, dashboardURL string) string {
	return fmt.Sprintf("%s/tasks/%d", dashboardURL, taskID)
}

// BuildStartedMessage builds the Block Kit payload for a task-start
// notification.
func BuildStartedMessage(taskID int64, problemID, dashboardURL string) []goslack.Block {
	url := taskURL(taskID, dashboardURL)
	text := fmt.Sprintf(":arrows_counterclockwise: *Processing started for %s*\n<%s|View in Dashboard>", problemID, url)
	return []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
}

// BuildTerminalMessage builds the Block Kit payload for a task's terminal
// outcome, summarizing which of the four stages (fetch/gen/upload/solve)
// actually completed.
func BuildTerminalMessage(input TaskCompletedInput, dashboardURL string) []goslack.Block {
	emoji := stageEmoji[input.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := stageLabel[input.Status]
	if label == "" {
		label = "Task " + input.Status
	}

	header := fmt.Sprintf("%s *%s* — %s", emoji, label, input.ProblemID)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false), nil, nil),
	}

	summary := fmt.Sprintf("fetch: %s  gen: %s  upload: %s  solve: %s",
		checkmark(input.OKFetch), checkmark(input.OKGen), checkmark(input.OKUpload), checkmark(input.OKSolve))
	blocks = append(blocks, goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, summary, false, false), nil, nil))

	if input.ErrorMessage != "" {
		errText := fmt.Sprintf("*Error:*\n%s", truncateForSlack(input.ErrorMessage))
		blocks = append(blocks, goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, errText, false, false), nil, nil))
	}

	if input.UploadedURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Uploaded Problem", false, false))
		btn.URL = input.UploadedURL
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

func checkmark(ok bool) string {
	if ok {
		return ":white_check_mark:"
	}
	return ":heavy_minus_sign:"
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}
