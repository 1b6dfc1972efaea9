package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hubenschmidt/go-orchestra/core"
)

const RepositoryContextName = "get_repository_context"

// RepositoryContext describes a GitHub repository and the agents that can
// work on it. It performs no I/O, so identical input yields identical output.
type RepositoryContext struct {
	agents []AnalysisAgent
}

type AnalysisAgent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type RepositoryContextResult struct {
	Repository       string          `json:"repository"`
	Owner            string          `json:"owner"`
	Name             string          `json:"name"`
	URL              string          `json:"url"`
	AnalysisAgents   []AnalysisAgent `json:"analysis_agents"`
	SupportedIntents []core.Intent   `json:"supported_intents"`
}

type repositoryContextArgs struct {
	Repository string `json:"repository"`
}

func DefaultAnalysisAgents() []AnalysisAgent {
	return []AnalysisAgent{
		{ID: "repo_analyzer", Name: "Repository Analyzer Agent", Capabilities: []string{"code_quality", "project_structure", "repository_health"}},
		{ID: "skill_matcher", Name: "Skill Matcher Agent", Capabilities: []string{"skill_matching", "gap_analysis", "confidence_scoring"}},
		{ID: "bounty_estimator", Name: "Bounty Estimator Agent", Capabilities: []string{"bounty_estimation", "complexity_analysis", "value_calculation"}},
		{ID: "user_profile", Name: "User Profile Agent", Capabilities: []string{"profile_management", "skill_tracking", "preferences"}},
	}
}

func NewRepositoryContext(agents []AnalysisAgent) *RepositoryContext {
	if len(agents) == 0 {
		agents = DefaultAnalysisAgents()
	}
	return &RepositoryContext{agents: agents}
}

func (r *RepositoryContext) Name() string {
	return RepositoryContextName
}

func (r *RepositoryContext) Description() string {
	return "Returns context about a GitHub repository (owner, name, URL) and the agents able to analyze it"
}

func (r *RepositoryContext) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"repository": {
				"type": "string",
				"minLength": 1,
				"description": "Repository as owner/name or a https://github.com URL"
			}
		},
		"required": ["repository"]
	}`)
}

func (r *RepositoryContext) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var params repositoryContextArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	owner, name, err := parseRepository(params.Repository)
	if err != nil {
		return nil, err
	}

	return RepositoryContextResult{
		Repository:       owner + "/" + name,
		Owner:            owner,
		Name:             name,
		URL:              "https://github.com/" + owner + "/" + name,
		AnalysisAgents:   r.agents,
		SupportedIntents: core.SupportedIntents(),
	}, nil
}

func parseRepository(raw string) (owner, name string, err error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "://") {
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", fmt.Errorf("invalid repository URL: %w", perr)
		}
		if !strings.EqualFold(u.Host, "github.com") && !strings.EqualFold(u.Host, "www.github.com") {
			return "", "", fmt.Errorf("unsupported repository host %q", u.Host)
		}
		s = u.Path
	}
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("repository must be in owner/name form")
	}
	return parts[0], parts[1], nil
}
