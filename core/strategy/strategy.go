// Package strategy implements the pure, context-sensitive decision function
// that picks a conversational strategy for one AI about to generate (spec
// §4.4), plus the mention utilities it depends on (§4.8).
package strategy

import (
	"math/rand"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// Type is one of the five conversational strategy tags.
type Type string

const (
	AgreeExpand Type = "agree-expand"
	Challenge   Type = "challenge"
	Redirect    Type = "redirect"
	Question    Type = "question"
	Direct      Type = "direct"
)

var baseWeights = map[Type]float64{
	AgreeExpand: 0.30,
	Challenge:   0.25,
	Redirect:    0.15,
	Question:    0.20,
	Direct:      0.10,
}

// Decision is the output of Select: the chosen strategy, whether/who to
// mention, and whether the current AI was itself the mention target.
type Decision struct {
	Type              Type
	ShouldMention     bool
	TargetAI          *chatmodel.AIRecord
	TargetIsUser      bool
	TargetUserSender  string
	MentionsCurrentAI bool

	// LastSenderType/MentionerToken describe who triggered a forced-direct
	// reply (MentionsCurrentAI == true), for InstructionSnippet's
	// mentioned-by-AI / mentioned-by-user distinction.
	LastSenderType chatmodel.SenderType
	MentionerToken string
}

// resolver is the subset of Registry.FindByNormalizedAlias that Select
// needs, kept narrow so tests can fake it without a full Registry.
type resolver interface {
	FindByNormalizedAlias(normalized string) (*chatmodel.AIRecord, bool)
}

// Select computes the strategy for ai given the tail of recent context and
// whether this generation is in response to a user message or a background
// round. rnd must be supplied by the caller so the weighted pick and the
// 0.35 mention-target roll are reproducible under a seeded source.
func Select(rnd *rand.Rand, ai *chatmodel.AIRecord, recent []chatmodel.ContextMessage, isUserResponse bool, reg resolver) Decision {
	if len(recent) > RecentForStrategy {
		recent = recent[len(recent)-RecentForStrategy:]
	}

	var last *chatmodel.ContextMessage
	if len(recent) > 0 {
		last = &recent[len(recent)-1]
	}

	// Forced direct reply: this AI was mentioned in the last message. The
	// strategy-type rule and the mention-target rule are independent (spec
	// §4.4): forcing Direct does not exempt this AI from the "mentioned by
	// another AI -> target that AI" mention-target rule.
	if last != nil {
		if _, mentioned := last.MentionsNormalized[ai.NormalizedAlias]; mentioned {
			d := Decision{
				Type:              Direct,
				MentionsCurrentAI: true,
				LastSenderType:    last.SenderType,
			}
			if last.SenderType == chatmodel.SenderAI {
				if rec, ok := reg.FindByNormalizedAlias(last.NormalizedAlias); ok {
					d.MentionerToken = rec.MentionToken()
					d.ShouldMention = true
					d.TargetAI = rec
				}
			}
			return d
		}
	}

	weights := adjustedWeights(recent, last, isUserResponse)
	chosen := weightedPick(rnd, weights)

	decision := Decision{Type: chosen}
	decision.ShouldMention, decision.TargetAI, decision.TargetIsUser, decision.TargetUserSender =
		pickMentionTarget(rnd, ai, recent, last, isUserResponse, reg)

	if decision.ShouldMention && !decision.TargetIsUser && decision.TargetAI == nil {
		decision.ShouldMention = false
	}
	return decision
}

func adjustedWeights(recent []chatmodel.ContextMessage, last *chatmodel.ContextMessage, isUserResponse bool) map[Type]float64 {
	w := make(map[Type]float64, len(baseWeights))
	for k, v := range baseWeights {
		w[k] = v
	}

	if last != nil && last.SenderType == chatmodel.SenderAI && !isUserResponse {
		w[Challenge] += 0.20
		w[AgreeExpand] += 0.15
	}

	aiCount := 0
	for _, m := range recent {
		if m.SenderType == chatmodel.SenderAI {
			aiCount++
		}
	}
	if aiCount >= 3 {
		w[Redirect] += 0.10
		w[Question] += 0.10
	}

	return w
}

func weightedPick(rnd *rand.Rand, weights map[Type]float64) Type {
	// Deterministic order so a seeded rand.Rand produces a reproducible pick.
	order := []Type{AgreeExpand, Challenge, Redirect, Question, Direct}

	var total float64
	for _, t := range order {
		total += weights[t]
	}
	if total <= 0 {
		return AgreeExpand
	}

	r := rnd.Float64() * total
	var acc float64
	for _, t := range order {
		acc += weights[t]
		if r < acc {
			return t
		}
	}
	return order[len(order)-1]
}

// RandomMentionProbability is RANDOM_MENTION_PROBABILITY from §6.
const RandomMentionProbability = 0.35

// PotentialMentionTargets is POTENTIAL_MENTION_TARGETS from §6.
const PotentialMentionTargets = 3

func pickMentionTarget(rnd *rand.Rand, ai *chatmodel.AIRecord, recent []chatmodel.ContextMessage, last *chatmodel.ContextMessage, isUserResponse bool, reg resolver) (shouldMention bool, target *chatmodel.AIRecord, targetIsUser bool, targetUserSender string) {
	if isUserResponse && last != nil && last.SenderType == chatmodel.SenderUser && last.Sender != "" {
		return true, nil, true, last.Sender
	}

	if last != nil && last.SenderType == chatmodel.SenderAI {
		if _, mentioned := last.MentionsNormalized[ai.NormalizedAlias]; mentioned {
			if rec, ok := reg.FindByNormalizedAlias(last.NormalizedAlias); ok {
				return true, rec, false, ""
			}
		}
	}

	if rnd.Float64() < RandomMentionProbability {
		candidates := recentDistinctAIs(recent, reg, PotentialMentionTargets)
		if len(candidates) > 0 {
			return true, candidates[0], false, ""
		}
	}

	return false, nil, false, ""
}

// recentDistinctAIs walks the tail backward collecting up to max distinct
// AI records that produced messages, most recent first.
func recentDistinctAIs(recent []chatmodel.ContextMessage, reg resolver, max int) []*chatmodel.AIRecord {
	seen := make(map[string]struct{})
	out := make([]*chatmodel.AIRecord, 0, max)
	for i := len(recent) - 1; i >= 0 && len(out) < max; i-- {
		m := recent[i]
		if m.SenderType != chatmodel.SenderAI {
			continue
		}
		if _, dup := seen[m.NormalizedAlias]; dup {
			continue
		}
		rec, ok := reg.FindByNormalizedAlias(m.NormalizedAlias)
		if !ok {
			continue
		}
		seen[m.NormalizedAlias] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// InstructionSnippet returns the single fixed sentence appended to the AI's
// prompt as an isInternal system ContextMessage, per the enumerated set in
// spec §4.4.
func InstructionSnippet(d Decision) string {
	switch {
	case d.MentionsCurrentAI && d.LastSenderType == chatmodel.SenderAI:
		return "You were directly mentioned by " + d.MentionerToken + ". Respond specifically to their message."
	case d.MentionsCurrentAI:
		return "You were directly mentioned by the user. Respond to their message."
	}

	switch d.Type {
	case AgreeExpand:
		return "Agree with the most recent point and expand on it with a new angle."
	case Challenge:
		return "Respectfully challenge or question the most recent point."
	case Redirect:
		return "Steer the conversation toward a related but underexplored angle."
	case Question:
		return "Ask a clarifying or provocative question to move the conversation forward."
	case Direct:
		return "Respond directly and concisely to the message you were addressed in."
	default:
		return "Respond naturally to the conversation so far."
	}
}
