package llm

import (
	"fmt"

	"github.com/solsticehq/solstice/internal/model"
)

// frameworkPrompt returns the system prompt for a framework. Custom analyses
// carry their own prompt and are handled before this lookup.
func frameworkPrompt(f model.Framework) (string, error) {
	switch f {
	case model.FrameworkPattern:
		return `You are an insightful pattern observer. Look beneath the surface of the responses for the quiet themes running under louder events: recurring situations, subtle influence between life areas, and connections between past choices and future aspirations. Frame discoveries as possibilities to explore, not certainties.`, nil
	case model.FrameworkGrowth:
		return `You are a perceptive growth architect. Map how the experiences in these responses build on each other: unexpected foundations of strength, skills developed through challenges, and ways existing capabilities could combine toward the stated aspirations. Present the analysis as an exploration of potential.`, nil
	case model.FrameworkTarot:
		return `You are an intuitive tarot reader. Interpret this journey through archetypal cards: past influences, present state, and future pathways. Connect universal meanings to the personal specifics in the responses, and frame the reading as exploration rather than prediction.`, nil
	case model.FrameworkMantra:
		return `You are a wisdom weaver who crafts short, resonant mantras. Listen for the unspoken aspirations beneath these responses, transform limitations into possibilities, and produce a handful of phrases that crystallize where this person is heading.`, nil
	case model.FrameworkHero:
		return `You are a mythic storyteller. Retell this year as a hero's journey: the departure from the ordinary world, the trials and allies of initiation, and the return with new powers. Keep the personal specifics; let the myth illuminate them rather than replace them.`, nil
	case model.FrameworkQuest:
		return `You are a mystical cartographer. Draw this journey as a quest map: completed quests and battles behind, companions and mentors alongside, main quests and promising side quests ahead, and the rewards waiting at each milestone.`, nil
	case model.FrameworkConstellation:
		return `You are a celestial cartographer. Arrange the moments in these responses into constellations: the brightest stars of achievement, the clusters of relationships and lessons, and the future stars of dreams and goals. Show patterns visible only from a cosmic distance.`, nil
	default:
		return "", fmt.Errorf("no prompt for framework %q", f)
	}
}

// frameworkData projects the form onto the slice of it a framework reads.
// Keeping the mappers total over the Framework enum means a new framework
// fails compilation review here instead of a runtime key lookup.
func frameworkData(f model.Framework, form FormData) (map[string]any, error) {
	past, ahead := form.PastYear, form.YearAhead
	switch f {
	case model.FrameworkPattern:
		return map[string]any{
			"past": map[string]any{
				"keyEvents":    past.CalendarReview,
				"lifeSections": past.YearOverview,
				"achievements": past.Accomplishments.List,
				"challenges":   past.Challenges.List,
				"learnings":    past.Challenges.LessonsLearned,
			},
			"future": map[string]any{
				"intentions":   ahead.DreamBig,
				"lifeSections": ahead.LifeAreas,
				"goals":        ahead.MagicalTriplets.Achievements,
			},
		}, nil
	case model.FrameworkGrowth:
		return map[string]any{
			"foundations": map[string]any{
				"pastAccomplishments": past.Accomplishments.List,
				"pastLessons":         past.SixSentences.BiggestLesson,
				"supportSystems":      past.Accomplishments.Helpers,
			},
			"aspirations": map[string]any{
				"futureGoals":    ahead.MagicalTriplets.Achievements,
				"personalGrowth": ahead.LifeAreas.Mental,
				"plannedSupport": ahead.MagicalTriplets.Supporters,
			},
		}, nil
	case model.FrameworkTarot:
		return map[string]any{
			"pastInfluences": map[string]any{
				"majorEvents": past.CalendarReview,
				"challenges":  past.Challenges.List,
				"victories":   past.Accomplishments.List,
				"lessons":     past.SixSentences.BiggestLesson,
			},
			"presentState": map[string]any{
				"currentFocus":  ahead.WordOfYear,
				"keyIntentions": ahead.MagicalTriplets.Achievements,
				"innerWork":     ahead.MagicalTriplets.SelfLove,
			},
			"futurePathways": map[string]any{
				"aspirations":   ahead.DreamBig,
				"releasing":     ahead.MagicalTriplets.LettingGo,
				"opportunities": ahead.MagicalTriplets.Discoveries,
			},
		}, nil
	case model.FrameworkMantra:
		return map[string]any{
			"corePurpose": map[string]any{
				"yearWord":   ahead.WordOfYear,
				"secretWish": ahead.SecretWish,
				"keyGoals":   ahead.MagicalTriplets.Achievements,
			},
			"personalPower": map[string]any{
				"strengths":  past.SixSentences.BiggestSurprise,
				"intentions": ahead.SixSentences.BeingBrave,
				"selfLove":   ahead.MagicalTriplets.SelfLove,
			},
			"transformations": map[string]any{
				"releasing": ahead.MagicalTriplets.LettingGo,
				"embracing": ahead.MagicalTriplets.Discoveries,
				"becoming":  ahead.DreamBig,
			},
		}, nil
	case model.FrameworkHero:
		return map[string]any{
			"departure": map[string]any{
				"ordinaryWorld": past.CalendarReview,
				"call":          past.SixSentences.BiggestRisk,
				"threshold":     past.Challenges.List,
			},
			"initiation": map[string]any{
				"trials":         past.Challenges.LessonsLearned,
				"allies":         past.Accomplishments.Helpers,
				"transformation": past.SixSentences.WisestDecision,
			},
			"return": map[string]any{
				"newPowers": ahead.MagicalTriplets.SelfLove,
				"newWorld":  ahead.DreamBig,
				"elixir":    ahead.SecretWish,
			},
		}, nil
	case model.FrameworkQuest:
		return map[string]any{
			"pastQuests": map[string]any{
				"achievements": past.Accomplishments.List,
				"battles":      past.Challenges.List,
				"treasures":    past.SixSentences.BiggestSurprise,
			},
			"companions": map[string]any{
				"allies":       past.Accomplishments.Helpers,
				"connections":  ahead.MagicalTriplets.Connections,
				"futureAllies": ahead.MagicalTriplets.Supporters,
			},
			"futureQuests": map[string]any{
				"mainQuests":   ahead.MagicalTriplets.Achievements,
				"sideQuests":   ahead.MagicalTriplets.Discoveries,
				"questRewards": ahead.MagicalTriplets.Rewards,
			},
		}, nil
	case model.FrameworkConstellation:
		return map[string]any{
			"brightestStars": map[string]any{
				"achievements": past.Accomplishments.List,
				"moments":      past.BestMoments,
			},
			"starClusters": map[string]any{
				"relationships": ahead.MagicalTriplets.Connections,
				"lessons":       past.SixSentences.BiggestLesson,
				"released":      past.LettingGo,
			},
			"futureStars": map[string]any{
				"dreams": ahead.DreamBig,
				"wishes": ahead.SecretWish,
				"goals":  ahead.MagicalTriplets.Achievements,
			},
		}, nil
	case model.FrameworkCustom:
		// Custom prompts see the whole form.
		return map[string]any{
			"pastYear":  past,
			"yearAhead": ahead,
		}, nil
	default:
		return nil, fmt.Errorf("no data mapper for framework %q", f)
	}
}
