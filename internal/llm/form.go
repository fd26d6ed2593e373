package llm

// FormData is the booklet submission sent to the analyze endpoint. Only the
// reflective sections travel to the server; welcome/closing content stays
// client-side.
type FormData struct {
	PastYear  PastYear  `json:"pastYear"`
	YearAhead YearAhead `json:"yearAhead"`
}

type PastYear struct {
	CalendarReview  string           `json:"calendarReview"`
	YearOverview    LifeAreas        `json:"yearOverview"`
	SixSentences    PastSixSentences `json:"sixSentences"`
	BestMoments     string           `json:"bestMoments"`
	Accomplishments Accomplishments  `json:"accomplishments"`
	Challenges      Challenges       `json:"challenges"`
	Forgiveness     string           `json:"forgiveness"`
	LettingGo       string           `json:"lettingGo"`
}

type LifeAreas struct {
	PersonalLife   string `json:"personalLife"`
	Career         string `json:"career"`
	Friends        string `json:"friends"`
	Relaxation     string `json:"relaxation"`
	PhysicalHealth string `json:"physicalHealth"`
	MentalHealth   string `json:"mentalHealth"`
	Habits         string `json:"habits"`
	BetterTomorrow string `json:"betterTomorrow"`
}

type PastSixSentences struct {
	BiggestCompletion string `json:"biggestCompletion"`
	ImportantAction   string `json:"importantAction"`
	BiggestSurprise   string `json:"biggestSurprise"`
	BiggestRisk       string `json:"biggestRisk"`
	BiggestLesson     string `json:"biggestLesson"`
	WisestDecision    string `json:"wisestDecision"`
}

type Accomplishments struct {
	List    []string `json:"list"`
	Actions string   `json:"actions"`
	Helpers string   `json:"helpers"`
}

type Challenges struct {
	List           []string `json:"list"`
	HowOvercome    string   `json:"howOvercome"`
	LessonsLearned string   `json:"lessonsLearned"`
}

type YearAhead struct {
	WordOfYear      string            `json:"wordOfYear"`
	SecretWish      string            `json:"secretWish"`
	SixSentences    AheadSixSentences `json:"sixSentences"`
	MagicalTriplets MagicalTriplets   `json:"magicalTriplets"`
	LifeAreas       AheadLifeAreas    `json:"lifeAreas"`
	DreamBig        string            `json:"dreamBig"`
}

type AheadSixSentences struct {
	SpecialReason     string `json:"specialReason"`
	SelfAdvice        string `json:"selfAdvice"`
	SayingYes         string `json:"sayingYes"`
	BeingBrave        string `json:"beingBrave"`
	EnergySources     string `json:"energySources"`
	NoProcrastination string `json:"noProcrastination"`
}

type MagicalTriplets struct {
	CozyEnvironment []string `json:"cozyEnvironment"`
	MorningRoutine  []string `json:"morningRoutine"`
	SelfCare        []string `json:"selfCare"`
	PlacesToVisit   []string `json:"placesToVisit"`
	Connections     []string `json:"connections"`
	Rewards         []string `json:"rewards"`
	SelfLove        []string `json:"selfLove"`
	LettingGo       []string `json:"lettingGo"`
	Achievements    []string `json:"achievements"`
	Supporters      []string `json:"supporters"`
	Discoveries     []string `json:"discoveries"`
	Boundaries      []string `json:"boundaries"`
}

type AheadLifeAreas struct {
	Personal  string `json:"personal"`
	Career    string `json:"career"`
	Community string `json:"community"`
	Hobbies   string `json:"hobbies"`
	Health    string `json:"health"`
	Mental    string `json:"mental"`
	Habits    string `json:"habits"`
	Impact    string `json:"impact"`
}
