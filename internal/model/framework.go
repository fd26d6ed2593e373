package model

// Framework identifies an analysis lens applied to questionnaire responses.
type Framework string

const (
	FrameworkPattern       Framework = "pattern"
	FrameworkGrowth        Framework = "growth"
	FrameworkTarot         Framework = "tarot"
	FrameworkMantra        Framework = "mantra"
	FrameworkHero          Framework = "hero"
	FrameworkQuest         Framework = "quest"
	FrameworkConstellation Framework = "constellation"
	FrameworkCustom        Framework = "custom"
)

// Frameworks lists every known framework in presentation order.
var Frameworks = []Framework{
	FrameworkPattern,
	FrameworkGrowth,
	FrameworkTarot,
	FrameworkMantra,
	FrameworkHero,
	FrameworkQuest,
	FrameworkConstellation,
	FrameworkCustom,
}

func (f Framework) Valid() bool {
	for _, known := range Frameworks {
		if f == known {
			return true
		}
	}
	return false
}
