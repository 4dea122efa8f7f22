package tutor

import "strings"

// Learner proficiency levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Exercise types.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeFillInBlank    = "fill_in_blank"
	TypeTranslation    = "translation"
)

// Labeled pairs a machine value with a display label.
type Labeled struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// exerciseTopics lists curated practice topics per language.
var exerciseTopics = map[string][]string{
	"English": {
		"Common Idioms and Expressions",
		"Phrasal Verbs",
		"Confusing Word Pairs (affect/effect, their/there)",
		"Irregular Verbs",
		"Tenses and Verb Forms",
		"Prepositions",
		"Articles (a, an, the)",
		"Conditionals (if clauses)",
		"Passive Voice",
		"Reported Speech",
		"Collocations",
		"Academic Vocabulary",
	},
	"Chinese": {
		"Basic Greetings (你好, 谢谢)",
		"Numbers and Counting",
		"Measure Words (个, 只, 本)",
		"Basic Sentence Structure (SVO)",
		"Question Words (什么, 哪里, 为什么)",
		"Time Expressions",
		"Common Verbs (是, 有, 去, 来)",
		"Adjectives and Descriptions",
		"Family Members",
		"Food and Ordering",
		"Directions and Locations",
		"HSK Vocabulary Levels",
	},
	"Russian": {
		"Cyrillic Alphabet Basics",
		"Basic Greetings (Привет, Спасибо)",
		"Noun Gender (masculine/feminine/neuter)",
		"Case System Introduction",
		"Nominative and Accusative Cases",
		"Common Verbs (быть, иметь, идти)",
		"Verb Conjugation Patterns",
		"Numbers and Counting",
		"Question Formation",
		"Adjective Agreement",
		"Time and Date Expressions",
		"Verb Aspects (perfective/imperfective)",
	},
	"Japanese": {
		"Hiragana Reading Practice",
		"Katakana Reading Practice",
		"Basic Greetings (こんにちは, ありがとう)",
		"Sentence Particles (は, が, を, に)",
		"Verb Forms (masu form, te form)",
		"Adjective Types (i-adjectives, na-adjectives)",
		"Counting and Numbers",
		"Time Expressions",
		"Common Kanji (JLPT N5)",
		"Keigo (Polite Language) Basics",
		"Question Words (何, どこ, いつ)",
		"Giving and Receiving Verbs",
	},
}

// TopicsFor returns the curated topic list for a language, falling back to
// the English list for languages without a curated set.
func TopicsFor(language string) []string {
	if topics, ok := exerciseTopics[language]; ok {
		return topics
	}
	return exerciseTopics["English"]
}

// ExerciseTypes lists the supported exercise types with display labels.
func ExerciseTypes() []Labeled {
	types := []string{TypeMultipleChoice, TypeFillInBlank, TypeTranslation}
	out := make([]Labeled, len(types))
	for i, t := range types {
		out[i] = Labeled{Value: t, Label: titleCase(strings.ReplaceAll(t, "_", " "))}
	}
	return out
}

// Levels lists the supported learner levels with display labels.
func Levels() []Labeled {
	levels := []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	out := make([]Labeled, len(levels))
	for i, l := range levels {
		out[i] = Labeled{Value: l, Label: titleCase(l)}
	}
	return out
}

// ValidLevel reports whether level is a known learner level.
func ValidLevel(level string) bool {
	switch level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// ValidExerciseType reports whether t is a known exercise type.
func ValidExerciseType(t string) bool {
	switch t {
	case TypeMultipleChoice, TypeFillInBlank, TypeTranslation:
		return true
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
