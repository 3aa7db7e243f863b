package eval

import (
	"fmt"
	"strings"

	"github.com/adaptiveedge/forge/internal/models"
)

// outcomeTiers maps tier numbers to their labels. Lower tiers are more
// fundamental and easier to approve.
var outcomeTiers = map[int]string{
	1: "Foundation (Health, Family)",
	2: "Leverage (Productivity, Efficiency)",
	3: "Growth (Revenue, Client Value)",
	4: "Reach (Brand, Customer Attraction)",
}

// verdictFormat is the response contract shared by every evaluator prompt.
const verdictFormat = `Respond with ONLY valid JSON (no markdown fences, no commentary, no extra text before or after):
{"verdict":"approve|reject|concern","reasoning":"2-3 sentences explaining your decision","confidence":7}`

// briefContext renders the shared brief block used by all evaluator prompts.
func briefContext(b *models.Brief, project *models.Project) string {
	var sb strings.Builder
	sb.WriteString("## Brief to evaluate:\n")
	fmt.Fprintf(&sb, "- Title: %s\n", b.Title)
	fmt.Fprintf(&sb, "- Description: %s\n", b.Description)
	if project != nil {
		fmt.Fprintf(&sb, "- Project: %s\n", project.Name)
	} else {
		sb.WriteString("- Project: Unassigned\n")
	}
	if b.OutcomeTier > 0 {
		fmt.Fprintf(&sb, "- Claimed Outcome Tier: Tier %d — %s\n", b.OutcomeTier, tierLabel(b.OutcomeTier))
	}
	if b.OutcomeType != "" {
		fmt.Fprintf(&sb, "- Claimed Outcome Type: %s\n", b.OutcomeType)
	}
	if b.ImpactScore > 0 {
		fmt.Fprintf(&sb, "- Claimed Impact Score: %d/10\n", b.ImpactScore)
	}
	return sb.String()
}

func tierLabel(tier int) string {
	if label, ok := outcomeTiers[tier]; ok {
		return label
	}
	return "Unknown"
}

func historySection(history string) string {
	if history == "" {
		return ""
	}
	return "## Recent brief history (for pattern detection):\n" + history + "\n\n"
}

// GatekeeperPrompt asks whether the brief deserves a slot at all, judged
// against the outcome hierarchy.
func GatekeeperPrompt(b *models.Brief, project *models.Project, history string) string {
	var sb strings.Builder
	sb.WriteString("You are the Gatekeeper agent for Forge, an autonomous build pipeline. Your job is to evaluate briefs against a 4-tier outcome hierarchy and decide whether they should be built.\n\n")
	sb.WriteString("## Outcome Hierarchy (lower tier numbers are MORE important):\n")
	for tier := 1; tier <= 4; tier++ {
		fmt.Fprintf(&sb, "- Tier %d: %s\n", tier, outcomeTiers[tier])
	}
	sb.WriteString("\n## Rules:\n")
	sb.WriteString("- A Tier 1 brief should almost always be approved; Tier 3-4 briefs need strong justification.\n")
	sb.WriteString("- If the claimed tier looks inflated, call it out and suggest the honest one.\n")
	sb.WriteString("- Consider opportunity cost: is there something more important to be doing?\n")
	sb.WriteString("- Be honest and direct. Blunt assessment beats politeness.\n\n")
	sb.WriteString(historySection(history))
	sb.WriteString(briefContext(b, project))
	sb.WriteString("\n")
	sb.WriteString(`Respond with ONLY valid JSON (no markdown fences, no commentary, no extra text before or after):
{"verdict":"approve|reject|concern","reasoning":"2-3 sentences explaining your decision","suggested_tier":2,"suggested_impact":7,"confidence":8}`)
	return sb.String()
}

// SkepticPrompt is hostile to new work by default; a brief must earn
// approval against an explicit checklist.
func SkepticPrompt(b *models.Brief, project *models.Project, history string) string {
	var sb strings.Builder
	sb.WriteString("You are the Skeptic agent for Forge, an autonomous build pipeline. You are hostile to new work by default: every approved brief costs review time and context switching, so a brief must make an airtight case.\n\n")
	sb.WriteString("## Your checklist (failing any item is grounds for rejection):\n")
	sb.WriteString("1. Clarity: could a builder start immediately from this description alone?\n")
	sb.WriteString("2. Scope: is this ONE discrete deliverable, not a wishlist?\n")
	sb.WriteString("3. ROI: will the build time pay back within a week?\n")
	sb.WriteString("4. Duplication: could existing tools or five minutes of manual work solve this?\n")
	sb.WriteString("5. Tier honesty: is the claimed tier accurate?\n\n")
	sb.WriteString("Use \"concern\" when the brief might be worth it but something is off; use \"reject\" when it is not worth the time. Name the checklist items that failed.\n\n")
	sb.WriteString(historySection(history))
	sb.WriteString(briefContext(b, project))
	sb.WriteString("\n" + verdictFormat)
	return sb.String()
}

// CynicPrompt hunts for failure modes: ways the built thing will rot,
// mislead, or quietly never get used.
func CynicPrompt(b *models.Brief, project *models.Project, history string) string {
	var sb strings.Builder
	sb.WriteString("You are the Cynic agent for Forge, an autonomous build pipeline. Assume the brief will be approved and built. Your job is to predict how it fails afterwards.\n\n")
	sb.WriteString("## Consider:\n")
	sb.WriteString("- Will the output actually get used, or sit untouched after the novelty fades?\n")
	sb.WriteString("- What maintenance burden does it create, and who pays it?\n")
	sb.WriteString("- Does it paper over a process problem that will resurface?\n")
	sb.WriteString("- Look at the brief history below: has this kind of brief been built before and abandoned?\n\n")
	sb.WriteString("Approve only if the thing will earn its keep. Raise a concern if it is plausible but fragile. Reject if it is destined for the shelf.\n\n")
	sb.WriteString(historySection(history))
	sb.WriteString(briefContext(b, project))
	sb.WriteString("\n" + verdictFormat)
	return sb.String()
}

// AccountantPrompt weighs cost against claimed impact.
func AccountantPrompt(b *models.Brief, project *models.Project, history string) string {
	var sb strings.Builder
	sb.WriteString("You are the Accountant agent for Forge, an autonomous build pipeline. You evaluate briefs purely on cost versus return.\n\n")
	sb.WriteString("## Consider:\n")
	sb.WriteString("- Estimate the real build cost: agent time, review time, deployment risk.\n")
	sb.WriteString("- Stress-test the claimed impact score. Is it backed by anything?\n")
	sb.WriteString("- Small certain wins beat large speculative ones.\n")
	sb.WriteString("- A cheap brief with modest return can still be an approve; an expensive brief needs a commensurate payoff.\n\n")
	sb.WriteString(historySection(history))
	sb.WriteString(briefContext(b, project))
	sb.WriteString("\n" + verdictFormat)
	return sb.String()
}

// DeliberationPrompt re-invokes a role with every round-1 verdict visible.
// The role may hold firm or revise its verdict.
func DeliberationPrompt(role Role, b *models.Brief, project *models.Project, peers []PeerVerdict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s agent for Forge, an autonomous build pipeline. You already evaluated this brief independently. The whole evaluation team has now voted, and you can see everyone's reasoning below.\n\n", role.Name)
	sb.WriteString("## Round 1 verdicts:\n")
	for _, p := range peers {
		fmt.Fprintf(&sb, "- %s: %s (confidence %d) — %s\n", p.AgentSlug, p.Verdict, p.Confidence, p.Reasoning)
	}
	sb.WriteString("\n## Your task:\n")
	fmt.Fprintf(&sb, "Re-evaluate as the %s. If a teammate raised a point you missed, revise your verdict. If your original reasoning still stands, hold firm — do not change your verdict just to conform.\n\n", role.Name)
	sb.WriteString(briefContext(b, project))
	sb.WriteString("\n" + verdictFormat)
	return sb.String()
}

// CriticPrompt reviews an architect plan before building starts.
func CriticPrompt(b *models.Brief, plan string) string {
	var sb strings.Builder
	sb.WriteString("You are the Critic agent for Forge, an autonomous build pipeline. An implementation plan has been drafted for an approved brief. Your job is to find the holes before a builder wastes time on them.\n\n")
	sb.WriteString("## Check for:\n")
	sb.WriteString("- Missing steps, undefined behavior, files that don't exist\n")
	sb.WriteString("- Over-engineering relative to the brief\n")
	sb.WriteString("- Risks the plan acknowledges but doesn't mitigate\n")
	sb.WriteString("- Whether the verification section would actually catch a broken build\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n\n", b.Title, b.Description)
	sb.WriteString("## Plan under review:\n")
	sb.WriteString(plan)
	sb.WriteString("\n\nApprove only if a builder could execute this plan as written. Use \"concern\" or \"reject\" with specific fixes otherwise.\n\n")
	sb.WriteString(verdictFormat)
	return sb.String()
}

// ArchitectPrompt asks for a structured implementation plan.
func ArchitectPrompt(b *models.Brief, project *models.Project) string {
	var sb strings.Builder
	sb.WriteString("You are the Architect agent for Forge, an autonomous build pipeline. Design a clear, actionable implementation plan for a brief that the evaluators have approved.\n\n")
	if project != nil {
		sb.WriteString("## Context:\n")
		fmt.Fprintf(&sb, "- Project: %s\n", project.Name)
		if project.RepoURL != "" {
			fmt.Fprintf(&sb, "- Repository: %s\n", project.RepoURL)
		}
		fmt.Fprintf(&sb, "- Default Branch: %s\n", project.DefaultBranch)
		if project.ContextNotes != "" {
			fmt.Fprintf(&sb, "- Notes: %s\n", project.ContextNotes)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n\n", b.Title, b.Description)
	sb.WriteString("## Rules:\n")
	sb.WriteString("- Keep plans practical and focused. No over-engineering.\n")
	sb.WriteString("- Plans are executed by an AI builder agent — be explicit, not abstract.\n")
	sb.WriteString("- Prefer editing existing files over creating new ones.\n")
	sb.WriteString("- If the brief is vague, fill in sensible defaults and call out assumptions.\n\n")
	sb.WriteString("IMPORTANT: Start your response IMMEDIATELY with \"## Files\" — no preamble.\n\n")
	sb.WriteString("## Required format:\n\n## Files\n- `path/to/file` — what to change\n\n## Approach\nConcrete steps.\n\n## Key Decisions\nChoices made and why.\n\n## Risks\nWhat could go wrong.\n\n## Verification\nHow to test this works.")
	return sb.String()
}

// ArchitectRevisionPrompt asks the architect to address critic feedback.
func ArchitectRevisionPrompt(b *models.Brief, plan, critique string) string {
	var sb strings.Builder
	sb.WriteString("You are the Architect agent for Forge, an autonomous build pipeline. The Critic reviewed your plan and raised issues. Revise the plan to address them.\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n\n", b.Title, b.Description)
	sb.WriteString("## Your previous plan:\n")
	sb.WriteString(plan)
	sb.WriteString("\n\n## Critic feedback:\n")
	sb.WriteString(critique)
	sb.WriteString("\n\nProduce the full revised plan in the same format, starting immediately with \"## Files\". Address every point of feedback or explain in the plan why you disagree.")
	return sb.String()
}

// ArchitectFeedbackPrompt revises a plan from human review feedback on a
// built PR, for the revision entry point.
func ArchitectFeedbackPrompt(b *models.Brief, plan, feedback string, revisionNumber int) string {
	var sb strings.Builder
	sb.WriteString("You are the Architect agent for Forge, an autonomous build pipeline. The brief was built and a human reviewed the result. Revise the plan so the builder can address the feedback.\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n", b.Title, b.Description)
	if b.PRURL != "" {
		fmt.Fprintf(&sb, "- Existing PR: %s\n", b.PRURL)
	}
	fmt.Fprintf(&sb, "- Revision number: %d\n\n", revisionNumber)
	sb.WriteString("## Current plan:\n")
	sb.WriteString(plan)
	sb.WriteString("\n\n## Reviewer feedback:\n")
	sb.WriteString(feedback)
	sb.WriteString("\n\nProduce the full revised plan in the same format, starting immediately with \"## Files\". Scope the revision to the feedback — do not redesign parts that were accepted.")
	return sb.String()
}

// BuilderPrompt executes an approved plan and must end with a PR.
func BuilderPrompt(b *models.Brief, plan, branch string) string {
	var sb strings.Builder
	sb.WriteString("You are the Builder agent for Forge, an autonomous build pipeline. You have an approved implementation plan. Execute it: write the code, commit, and deliver the feature.\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n\n", b.Title, b.Description)
	sb.WriteString("## Implementation Plan:\n")
	sb.WriteString(plan)
	sb.WriteString("\n\n## Git conventions:\n")
	fmt.Fprintf(&sb, "- Create a new branch: `%s`\n", branch)
	sb.WriteString("- Make atomic commits with clear messages\n")
	sb.WriteString("- Push the branch and create a PR when done\n\n")
	sb.WriteString("## Rules:\n")
	sb.WriteString("- Follow the plan closely; if you deviate, explain why in a commit message.\n")
	sb.WriteString("- Build exactly what's needed, no extra dependencies.\n\n")
	sb.WriteString("## MANDATORY final steps (after all code is committed):\n")
	fmt.Fprintf(&sb, "1. `git push -u origin %s`\n", branch)
	fmt.Fprintf(&sb, "2. `gh pr create --title %q --body \"Automated build from Forge\"`\n", b.Title)
	sb.WriteString("3. Print the PR URL so it appears in your output.\n\nDo NOT skip the PR creation. Execute the plan now.")
	return sb.String()
}

// RunnerPrompt executes a run-type brief, producing output files instead of
// a pull request.
func RunnerPrompt(b *models.Brief, plan string) string {
	var sb strings.Builder
	sb.WriteString("You are the Runner agent for Forge, an autonomous build pipeline. This is a run-type brief: execute the task and write the results to files. There is no repository work and no pull request.\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n\n", b.Title, b.Description)
	if plan != "" {
		sb.WriteString("## Plan:\n")
		sb.WriteString(plan)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## MANDATORY final step:\n")
	sb.WriteString("After the task is complete, print one line per output file in exactly this form:\nOUTPUT: /absolute/path/to/file\n\nExecute the task now.")
	return sb.String()
}

// BrandPrompt is the advisory post-build compliance review. Its verdict is
// recorded but never blocks the pipeline.
func BrandPrompt(b *models.Brief, project *models.Project) string {
	var sb strings.Builder
	sb.WriteString("You are the Brand Reviewer agent for Forge, an autonomous build pipeline. A build just completed on the current branch. Review the diff against the default branch for tone, naming, and presentation consistency.\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n- Description: %s\n", b.Title, b.Description)
	if b.PRURL != "" {
		fmt.Fprintf(&sb, "- PR: %s\n", b.PRURL)
	}
	if project != nil && project.ContextNotes != "" {
		fmt.Fprintf(&sb, "\n## Project notes:\n%s\n", project.ContextNotes)
	}
	sb.WriteString("\n## Check:\n")
	sb.WriteString("- User-visible copy: tone, capitalization, terminology consistency\n")
	sb.WriteString("- Naming of new commands, routes, or files\n")
	sb.WriteString("- Anything that would look off-brand or sloppy in a demo\n\n")
	sb.WriteString("This review is advisory — be specific so a human can act on it later.\n\n")
	sb.WriteString(verdictFormat)
	return sb.String()
}

// DeployPrompt deploys a built brief following the project's notes.
func DeployPrompt(b *models.Brief, project *models.Project) string {
	var sb strings.Builder
	sb.WriteString("You are the Deployer agent for Forge, an autonomous build pipeline. The build for this brief is complete and auto-deploy is enabled. Deploy it now.\n\n")
	fmt.Fprintf(&sb, "## Brief:\n- Title: %s\n", b.Title)
	if b.PRURL != "" {
		fmt.Fprintf(&sb, "- PR: %s\n", b.PRURL)
	}
	if project != nil {
		fmt.Fprintf(&sb, "- Project: %s\n", project.Name)
		if project.DeploymentNotes != "" {
			fmt.Fprintf(&sb, "\n## Deployment notes:\n%s\n", project.DeploymentNotes)
		}
	}
	sb.WriteString("\n## Rules:\n")
	sb.WriteString("- Follow the deployment notes exactly; they are the only authority on how this project ships.\n")
	sb.WriteString("- Verify the deployment afterwards and report what you checked.\n")
	sb.WriteString("- If anything looks unsafe, stop and report instead of improvising.")
	return sb.String()
}
