package model

import "fmt"

// HealthBoard is one of the 14 fixed Scottish regional health boards.
type HealthBoard uint8

// AgeGroup is a presentation age band.
type AgeGroup uint8

// PresentationType is the presenting complaint category.
type PresentationType uint8

// BoardInfo pairs a health board with its default population weight.
type BoardInfo struct {
	Board  HealthBoard
	Name   string
	Weight float64 // relative baseline demand, urban boards weighted higher
}

// AllBoards lists the health boards in canonical (alphabetical) order.
var AllBoards = []BoardInfo{
	{Board: 0, Name: "NHS Ayrshire and Arran", Weight: 1.0},
	{Board: 1, Name: "NHS Borders", Weight: 0.4},
	{Board: 2, Name: "NHS Dumfries and Galloway", Weight: 0.6},
	{Board: 3, Name: "NHS Fife", Weight: 1.0},
	{Board: 4, Name: "NHS Forth Valley", Weight: 0.8},
	{Board: 5, Name: "NHS Grampian", Weight: 1.3},
	{Board: 6, Name: "NHS Greater Glasgow and Clyde", Weight: 2.5},
	{Board: 7, Name: "NHS Highland", Weight: 0.9},
	{Board: 8, Name: "NHS Lanarkshire", Weight: 1.5},
	{Board: 9, Name: "NHS Lothian", Weight: 2.0},
	{Board: 10, Name: "NHS Orkney", Weight: 0.15},
	{Board: 11, Name: "NHS Shetland", Weight: 0.15},
	{Board: 12, Name: "NHS Tayside", Weight: 1.2},
	{Board: 13, Name: "NHS Western Isles", Weight: 0.2},
}

// AgeGroupNames lists age bands in ascending order.
var AgeGroupNames = []string{"0-17", "18-25", "26-35", "36-45", "46-55", "56-65", "66-75", "76+"}

// PresentationTypeNames lists presentation types in canonical order.
var PresentationTypeNames = []string{
	"Self Harm",
	"Suicidal Ideation",
	"Acute Anxiety",
	"Depression",
	"Psychosis",
	"Substance Abuse",
	"Eating Disorder",
	"Other",
}

// NumQuintiles is the number of SIMD deprivation quintiles (1 = most deprived).
const NumQuintiles = 5

func (b HealthBoard) String() string {
	if int(b) < len(AllBoards) {
		return AllBoards[b].Name
	}
	return fmt.Sprintf("HealthBoard(%d)", uint8(b))
}

func (a AgeGroup) String() string {
	if int(a) < len(AgeGroupNames) {
		return AgeGroupNames[a]
	}
	return fmt.Sprintf("AgeGroup(%d)", uint8(a))
}

func (p PresentationType) String() string {
	if int(p) < len(PresentationTypeNames) {
		return PresentationTypeNames[p]
	}
	return fmt.Sprintf("PresentationType(%d)", uint8(p))
}

// BoardByName returns the BoardInfo for the given name, or ok=false.
func BoardByName(name string) (BoardInfo, bool) {
	for _, b := range AllBoards {
		if b.Name == name {
			return b, true
		}
	}
	return BoardInfo{}, false
}

// ParseAgeGroup maps an age band label back to its AgeGroup.
func ParseAgeGroup(s string) (AgeGroup, error) {
	for i, name := range AgeGroupNames {
		if name == s {
			return AgeGroup(i), nil
		}
	}
	return 0, fmt.Errorf("unknown age group %q", s)
}

// ParsePresentationType maps a type label back to its PresentationType.
func ParsePresentationType(s string) (PresentationType, error) {
	for i, name := range PresentationTypeNames {
		if name == s {
			return PresentationType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown presentation type %q", s)
}
