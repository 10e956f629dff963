package slack

import (
	"fmt"
	"strings"

	"github.com/communityaid/volunteer-dispatch/internal/dispatch"
	"github.com/communityaid/volunteer-dispatch/internal/phone"
)

// Long free-text answers are cut so one request can't flood the channel.
const responseCharLimit = 2000

// Block is a Slack Block Kit section.
type Block struct {
	Type string `json:"type"`
	Text *Text  `json:"text,omitempty"`
}

type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Section wraps markdown text in a section block.
func Section(text string) Block {
	return Block{
		Type: "section",
		Text: &Text{
			Type: "mrkdwn",
			Text: text,
		},
	}
}

func heading(text string, reminder bool) Block {
	if reminder {
		return Section(fmt.Sprintf(":alarm_clock: *%s* :alarm_clock:", text))
	}
	return Section(fmt.Sprintf(":exclamation: *%s* :exclamation:", text))
}

// taskOrder renders the "k of N" banner for split children. Unsplit requests
// have no order label and get no banner.
func taskOrder(req *dispatch.Request) (Block, bool) {
	order := req.TaskOrder()
	if order == "" {
		return Block{}, false
	}
	return Section(fmt.Sprintf(":bellhop_bell: This is *Task %s* of the Request", order)), true
}

func requester(req *dispatch.Request, requestsViewURL string) Block {
	name := req.Name()
	if name == "" {
		name = "No name provided"
	}

	address := req.Address()
	if address == "" {
		address = "None provided"
	}

	lines := []string{
		"*Requester:*",
		fmt.Sprintf("<%s/%s|:heart: %s>", requestsViewURL, req.ID(), name),
		fmt.Sprintf(":phone: %s", phone.DisplayNumber(req.PhoneNumber())),
		fmt.Sprintf(":house: %s", address),
		fmt.Sprintf(":speaking_head_in_silhouette: %s", languages(req)),
	}

	return Section(strings.Join(lines, "\n"))
}

func languages(req *dispatch.Request) string {
	list := req.Languages()
	if other := req.OtherLanguage(); other != "" {
		list = append(list, other)
	}
	if len(list) == 0 {
		return "None provided"
	}
	return strings.Join(list, ", ")
}

func tasks(req *dispatch.Request) Block {
	return Section(fmt.Sprintf("*Needs assistance with:*%s", formatTasks(req)))
}

// formatTasks puts each task on its own line. "Other" gets a warning because
// its matching rule is intentionally loose.
func formatTasks(req *dispatch.Request) string {
	rawTasks := req.RawTasks()
	otherTask := req.OtherTask()

	if len(rawTasks) == 0 && otherTask == "" {
		return " None provided"
	}

	var b strings.Builder
	for _, task := range rawTasks {
		if task != dispatch.Other.Raw {
			fmt.Fprintf(&b, "\n:small_orange_diamond: %s", task)
			continue
		}

		b.WriteString("\n:warning: _\"Other\" request: volunteers might not be the best match_")
		fmt.Fprintf(&b, "\n:small_orange_diamond: %s", otherTask)
	}

	if len(rawTasks) == 0 && otherTask != "" {
		fmt.Fprintf(&b, "\n:small_orange_diamond: %s", otherTask)
	}

	return b.String()
}

func timeframe(req *dispatch.Request) Block {
	return Section(fmt.Sprintf("*Requested timeframe:* %s", req.Timeframe()))
}

func subsidy(req *dispatch.Request) Block {
	mark := ":no_entry_sign:"
	if req.SubsidyRequested() {
		mark = ":white_check_mark:"
	}
	return Section(fmt.Sprintf("*Subsidy requested:* %s", mark))
}

func anythingElse(req *dispatch.Request, requestsViewURL string) Block {
	notes := req.AnythingElse()
	notes = truncateLongResponse(notes, req.ID(), requestsViewURL)
	if notes == "" {
		notes = "None"
	}

	return Section(fmt.Sprintf("*Other notes from requester:* \n%s", notes))
}

func truncateLongResponse(response, recordID, requestsViewURL string) string {
	if len(response) <= responseCharLimit {
		return response
	}

	return fmt.Sprintf("%s... <%s/%s|See Airtable record for full response.>",
		response[:responseCharLimit], requestsViewURL, recordID)
}

// volunteerBlocks renders the ranked candidate list, or the applicable
// fallback: a location-resolution error reads differently from an empty
// match, so the coordinator knows whether to fix the address or recruit.
func volunteerBlocks(res *dispatch.MatchResult, volunteersViewURL string) []Block {
	if res.LocationError {
		return []Block{Section(
			"*Error resolving this request's location!*\n" +
				"*Check the address on the Airtable record before dispatching.*",
		)}
	}

	if len(res.Candidates) == 0 {
		return []Block{Section(
			"*No volunteers match this request!*\n" +
				"*Check the full Airtable record, there might be more info there.*",
		)}
	}

	blocks := []Block{Section(fmt.Sprintf("*Here are the %d closest volunteers*", len(res.Candidates)))}
	for _, c := range res.Candidates {
		blocks = append(blocks, Section(fmt.Sprintf("<%s/%s|%s> - %s - %.2f Mi.",
			volunteersViewURL,
			c.Volunteer.ID(),
			c.Volunteer.FullName(),
			phone.DisplayNumber(c.Volunteer.PhoneNumber()),
			c.Distance,
		)))
	}

	return blocks
}

// copyPasteNumbers lists candidate phone numbers as plain text for easy
// copy/pasting.
func copyPasteNumbers(candidates []*dispatch.RankedCandidate) string {
	lines := []string{"Here are the volunteer phone numbers for easy copy/pasting:"}
	for _, c := range candidates {
		lines = append(lines, phone.DisplayNumber(c.Volunteer.PhoneNumber()))
	}
	return strings.Join(lines, "\n")
}
