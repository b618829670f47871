package gateway

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
	statex "github.com/brightline-consulting/discovery/discovery/state"
)

var (
	//go:embed template/interviewer.txt
	interviewerRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string

	//go:embed template/steering.txt
	steeringRaw string

	//go:embed template/overview.txt
	overviewRaw string

	//go:embed template/extractor.txt
	extractorRaw string
)

func interviewerSystemPrompt(st *contractx.ConversationState) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(interviewerRaw))

	b.WriteString("\n\n## Engagement Context\n")
	if strings.TrimSpace(st.EngagementContext) != "" {
		b.WriteString(st.EngagementContext)
	} else {
		b.WriteString("No specific context provided. Conduct a general stakeholder discovery.")
	}

	writeStakeholder(&b, st.StakeholderName, st.StakeholderRole)

	if strings.TrimSpace(st.SteeringPrompt) != "" {
		b.WriteString("\n\n## Focus Areas\n")
		b.WriteString(st.SteeringPrompt)
	}

	return b.String()
}

// interviewerUserPrompt is a single user turn summarizing all prior Q&A.
// Replaying the full tool-call transcript gets fragile across many rounds.
func interviewerUserPrompt(st *contractx.ConversationState) string {
	if len(st.AllAnswers) == 0 {
		return "Please begin the discovery session. Generate the first batch of questions."
	}

	var b strings.Builder
	b.WriteString("Answers collected so far:\n\n")
	b.WriteString(statex.FormatAnswers(st.AllAnswers))
	fmt.Fprintf(&b, "\n\nThis is batch number %d. Generate the next batch of questions, or set isComplete to true if coverage is thorough.", st.CurrentBatchNumber)
	return b.String()
}

func summarizerSystemPrompt(st *contractx.ConversationState) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(summarizerRaw))

	b.WriteString("\n\n## Engagement Context\n")
	if strings.TrimSpace(st.EngagementContext) != "" {
		b.WriteString(st.EngagementContext)
	} else {
		b.WriteString("General stakeholder discovery.")
	}

	writeStakeholder(&b, st.StakeholderName, st.StakeholderRole)
	return b.String()
}

func summarizerUserPrompt(st *contractx.ConversationState) string {
	var b strings.Builder
	b.WriteString("Here are all the stakeholder's answers from the discovery session:\n\n")
	for i, a := range st.AllAnswers {
		if a.NoneOfTheAbove {
			fmt.Fprintf(&b, "%d. %q: None of the above\n", i+1, a.QuestionText)
			continue
		}
		fmt.Fprintf(&b, "%d. %q: %s\n", i+1, a.QuestionText, strings.Join(a.SelectedLabels, ", "))
		if a.CustomText != "" {
			fmt.Fprintf(&b, "   Also wrote: %q\n", a.CustomText)
		}
	}
	b.WriteString("\nPlease generate a comprehensive discovery summary.")
	return b.String()
}

func steeringSystemPrompt(engagementContext string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(steeringRaw))

	b.WriteString("\n\n## Engagement Context\n")
	if strings.TrimSpace(engagementContext) != "" {
		b.WriteString(engagementContext)
	} else {
		b.WriteString("No specific context provided.")
	}
	return b.String()
}

func steeringUserPrompt(name, role string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The upcoming interview is with %s", name)
	if strings.TrimSpace(role) != "" {
		fmt.Fprintf(&b, " (%s)", role)
	}
	b.WriteString(". Suggest focus areas for this interview.")
	return b.String()
}

func overviewSystemPrompt(engagementContext string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(overviewRaw))

	b.WriteString("\n\n## Engagement Context\n")
	if strings.TrimSpace(engagementContext) != "" {
		b.WriteString(engagementContext)
	} else {
		b.WriteString("No specific context provided.")
	}
	return b.String()
}

func overviewUserPrompt(summaries []contractx.StakeholderSummary) string {
	var b strings.Builder
	b.WriteString("Individual stakeholder summaries:\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "\n### Stakeholder %d: %s", i+1, s.StakeholderName)
		if strings.TrimSpace(s.StakeholderRole) != "" {
			fmt.Fprintf(&b, " (%s)", s.StakeholderRole)
		}
		b.WriteString("\n")
		b.WriteString(s.AISummary)
		b.WriteString("\n")
	}
	b.WriteString("\nSynthesize the cross-stakeholder overview.")
	return b.String()
}

func writeStakeholder(b *strings.Builder, name, role string) {
	b.WriteString("\n\n## Stakeholder\n- Name: ")
	b.WriteString(name)
	if strings.TrimSpace(role) != "" {
		b.WriteString("\n- Role: ")
		b.WriteString(role)
	}
}
