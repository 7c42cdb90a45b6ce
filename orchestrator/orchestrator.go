// Package orchestrator classifies queries by domain and fans them out to
// the matching agents, combining the answers into one response.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"opschat/agent"
	"opschat/shared"
)

// DomainAgent is what the orchestrator routes to.
type DomainAgent interface {
	Name() string
	Handle(ctx context.Context, query string, history []shared.ConversationTurn) (string, error)
}

// Domain names a routing target.
type Domain string

const (
	DomainGitLab     Domain = "gitlab"
	DomainSharePoint Domain = "sharepoint"
	DomainBoth       Domain = "both"
)

var gitlabKeywords = []string{
	"issue", "bug", "merge", "pipeline", "commit", "gitlab",
	"milestone", "branch",
}

var gitlabWords = []string{"mr", "mrs"}

var sharepointKeywords = []string{
	"form", "sharepoint", "document", "approval",
}

// Route classifies a query by keyword. Queries matching both domains fan
// out to both; queries matching neither default to GitLab. Same query,
// same answer, every time.
func Route(query string) Domain {
	q := strings.ToLower(query)
	gl := matchesAny(q, gitlabKeywords) || matchesAnyWord(q, gitlabWords)
	sp := matchesAny(q, sharepointKeywords)
	switch {
	case gl && sp:
		return DomainBoth
	case sp:
		return DomainSharePoint
	default:
		return DomainGitLab
	}
}

func matchesAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func matchesAnyWord(q string, words []string) bool {
	for _, f := range strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	}) {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

// Orchestrator owns the two domain agents. sharepoint may be nil when
// that side is not configured; its queries then get a short notice.
type Orchestrator struct {
	gitlab     DomainAgent
	sharepoint DomainAgent
}

func New(gitlab, sharepoint DomainAgent) *Orchestrator {
	return &Orchestrator{gitlab: gitlab, sharepoint: sharepoint}
}

// Handle routes a query and returns the combined answer. Failures never
// escape as errors: each agent's failure renders inline in its own
// section so one domain going down does not blank out the other.
func (o *Orchestrator) Handle(ctx context.Context, query string, history []shared.ConversationTurn) string {
	domain := Route(query)
	log.Debug().Str("domain", string(domain)).Str("query", query).Msg("routed query")

	switch domain {
	case DomainSharePoint:
		return o.runOne(ctx, o.sharepoint, query, history)
	case DomainBoth:
		return o.runBoth(ctx, query, history)
	default:
		return o.runOne(ctx, o.gitlab, query, history)
	}
}

func (o *Orchestrator) runOne(ctx context.Context, a DomainAgent, query string, history []shared.ConversationTurn) string {
	if a == nil {
		return "SharePoint is not configured on this deployment."
	}
	out, err := a.Handle(ctx, query, history)
	if err != nil {
		log.Warn().Err(err).Str("agent", a.Name()).Msg("agent failed")
		return agent.ErrorText(err)
	}
	return out
}

// runBoth queries both agents concurrently. Each result lands under its
// own header; a failed side reports its error text without affecting the
// other side's answer.
func (o *Orchestrator) runBoth(ctx context.Context, query string, history []shared.ConversationTurn) string {
	var glOut, spOut string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glOut = o.runOne(gctx, o.gitlab, query, history)
		return nil
	})
	g.Go(func() error {
		spOut = o.runOne(gctx, o.sharepoint, query, history)
		return nil
	})
	_ = g.Wait()

	return fmt.Sprintf("## GitLab\n%s\n\n## SharePoint\n%s", glOut, spOut)
}
