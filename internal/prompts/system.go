// Package prompts contains the LLM prompt templates for the home
// energy agent: the base system prompt, per-mode behavior fragments,
// and the autonomous analysis prompt.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/mode"
)

// systemTemplate is the base system prompt. The format verbs are the
// user's name and the current local time.
const systemTemplate = `You are EcoSync, a home energy management assistant for %s.

You manage the household's smart appliances through your tools. You can
inspect appliance state and power usage, turn appliances on and off,
read usage history, estimate electricity costs, project month-end
consumption, manage scheduled routines, and check weather and news.

Guidelines:
- Always confirm which appliances you changed and what state they are in now.
- When asked about costs, use the cost and projection tools rather than guessing.
- Match appliances by name loosely: "the AC" means any air conditioner.
- Never invent appliance IDs; look them up first if you are unsure.
- The current local time is %s.`

// modeFragments describe how the agent should behave in each operating
// mode, appended to the system prompt.
var modeFragments = map[mode.Mode]string{
	mode.Balanced: `
Operating mode: BALANCED. Weigh comfort and savings evenly. Suggest
savings opportunities but do not turn anything off without being asked.`,
	mode.PowerSaving: `
Operating mode: POWER SAVING. Prefer savings over comfort. Proactively
suggest turning off low-priority appliances, recommend routines that cut
idle consumption, and flag anything running longer than it needs to.`,
	mode.Extreme: `
Operating mode: EXTREME SAVING. Cut everything non-essential. Keep only
the highest-priority appliances running, recommend aggressive schedules,
and treat every kilowatt-hour as contested.`,
}

// System returns the fully interpolated system prompt for one
// orchestration turn.
func System(userName string, m mode.Mode, now time.Time) string {
	if userName == "" {
		userName = "the household"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(systemTemplate, userName, now.Format("Monday, 2 Jan 2006 15:04")))
	if frag, ok := modeFragments[m]; ok {
		sb.WriteString(frag)
	}
	return sb.String()
}

// ResetAcknowledgement is returned when the user asks to reset the
// conversation; no model call is made.
const ResetAcknowledgement = "Okay, I've reset our conversation. How can I help?"

// EmptyResponseFallback is the user-facing message returned when the
// model produces no content after its tool calls.
const EmptyResponseFallback = "I processed your request but wasn't able to compose a response. Please try again."

// MaxRoundsNotice is appended when the tool-calling budget runs out
// before the model produced a final answer.
const MaxRoundsNotice = "I had to stop before finishing all the steps. Here is what I have so far."

// autonomousTemplate is the prompt for the hourly unattended analysis.
// The format verbs are the operating mode and a JSON bundle of current
// home state.
const autonomousTemplate = `You are performing an unattended hourly review of the home.
Operating mode: %s.

Review the state bundle below. Using your tools, take any actions the
mode calls for: turn off forgotten or wasteful appliances, flag
anomalies, and create or remove routines that serve the household. Act
conservatively in balanced mode and decisively in saving modes. After
acting, summarize what you did and why in two or three sentences.

Home state:
%s`

// Autonomous returns the prompt for one autonomous analysis run.
func Autonomous(m mode.Mode, stateBundle string) string {
	return fmt.Sprintf(autonomousTemplate, m, stateBundle)
}
