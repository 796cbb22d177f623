package model

import "fmt"

// SourceEvent is one record of the upstream events feed. Values are kept as
// delivered; the formatter is responsible for interpreting start/end.
type SourceEvent struct {
	EventID   string `json:"eventID" validate:"required"`
	Name      string `json:"name" validate:"required"`
	EventType string `json:"eventType" validate:"required"`
	Heading   string `json:"heading"`
	Link      string `json:"link"`
	Image     string `json:"image"`

	// Start / End are either wall-clock ("2024-01-06T11:00:00.000") or
	// UTC ("2024-01-06T11:00:00.000Z") timestamps.
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`

	// Extra is the category-specific payload, nil when the feed carried none.
	Extra Extension `json:"-" validate:"-"`
}

// ExtensionKind tags the populated variant of an extension payload.
type ExtensionKind string

const (
	KindGeneric      ExtensionKind = "generic"
	KindSpotlight    ExtensionKind = "spotlight"
	KindRaidBattles  ExtensionKind = "raidbattles"
	KindCommunityDay ExtensionKind = "communityday"
	KindBreakthrough ExtensionKind = "breakthrough"
)

// Extension is the closed set of extraData variants.
type Extension interface {
	Kind() ExtensionKind
}

type Spawn struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type ShinySpawn struct {
	Spawn
	CanBeShiny bool `json:"canBeShiny"`
}

type Bonus struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type Task struct {
	Text   string `json:"text"`
	Reward Bonus  `json:"reward"`
}

type SpecialResearch struct {
	Name    string  `json:"name"`
	Step    int     `json:"step"`
	Tasks   []Task  `json:"tasks"`
	Rewards []Bonus `json:"rewards"`
}

type Generic struct {
	HasSpawns             bool `json:"hasSpawns"`
	HasFieldResearchTasks bool `json:"hasFieldResearchTasks"`
}

// Spotlight describes a spotlight hour: the featured creature plus a bonus.
type Spotlight struct {
	ShinySpawn
	Bonus string       `json:"bonus"`
	List  []ShinySpawn `json:"list"`
}

type RaidBattles struct {
	Bosses  []ShinySpawn `json:"bosses"`
	Shinies []Spawn      `json:"shinies"`
}

type CommunityDay struct {
	Spawns           []Spawn           `json:"spawns"`
	Bonuses          []Bonus           `json:"bonuses"`
	BonusDisclaimers []string          `json:"bonusDisclaimers"`
	Shinies          []Spawn           `json:"shinies"`
	SpecialResearch  []SpecialResearch `json:"specialresearch"`
}

type Breakthrough struct {
	ShinySpawn
}

func (Generic) Kind() ExtensionKind      { return KindGeneric }
func (Spotlight) Kind() ExtensionKind    { return KindSpotlight }
func (RaidBattles) Kind() ExtensionKind  { return KindRaidBattles }
func (CommunityDay) Kind() ExtensionKind { return KindCommunityDay }
func (Breakthrough) Kind() ExtensionKind { return KindBreakthrough }

// Zone says whether a timestamp is UTC or floating local wall-clock time.
type Zone string

const (
	ZoneLocal Zone = "local"
	ZoneUTC   Zone = "utc"
)

// DateTime is a decomposed timestamp. The same Zone is used for reading the
// source value and for rendering it in the calendar file.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Zone   Zone
}

func (d DateTime) String() string {
	s := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute)
	if d.Zone == ZoneUTC {
		s += "Z"
	}
	return s
}

const BusyFree = "FREE"

// CalendarEntry is one VEVENT worth of data, built fresh on every run.
type CalendarEntry struct {
	UID        string
	Title      string
	Start      DateTime
	End        DateTime
	BusyStatus string
	Categories []string
	URL        string

	// Optional rich content.
	Description string
	HTMLContent string
}
