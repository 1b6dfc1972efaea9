package core

type Intent string

const (
	IntentGeneralChat      Intent = "general_chat"
	IntentRepoAnalysis     Intent = "repo_analysis"
	IntentSkillMatching    Intent = "skill_matching"
	IntentBountyEstimation Intent = "bounty_estimation"
	IntentUserProfile      Intent = "user_profile"
	IntentFindMatches      Intent = "FIND_MATCHES"
	IntentExplainReasoning Intent = "EXPLAIN_REASONING"
)

// IsChitChat reports whether turns with this intent produce no knowledge.
// An unclassified (empty) intent counts as general chat.
func (i Intent) IsChitChat() bool {
	return i == IntentGeneralChat || i == ""
}

func (i Intent) String() string {
	return string(i)
}

// SupportedIntents is the catalog advertised to the model by the repository
// context tool.
func SupportedIntents() []Intent {
	return []Intent{
		IntentRepoAnalysis,
		IntentSkillMatching,
		IntentBountyEstimation,
		IntentUserProfile,
		IntentGeneralChat,
	}
}
