// Package content provides read-only lookup over the loaded playbook banks:
// lesson plans, openers, quizzes, tasks, reflections and conversation
// starters. Banks are loaded once at process start and never mutated.
package content

// LessonPlan ties one lesson to its warmup opener, quiz, task and reflection.
type LessonPlan struct {
	ID         string `json:"id"`
	WarmupRef  string `json:"warmup"`
	QuizRef    string `json:"quiz"`
	TaskRef    string `json:"task"`
	ReflectRef string `json:"reflection"`
}

// Opener is a bilingual conversation warmup line.
type Opener struct {
	ID string `json:"id"`
	Es string `json:"es"`
	En string `json:"en"`
}

// Quiz is a single graded prompt. Answer is optional model-answer context
// for the grading oracle; ExpectedLanguage tells the oracle which language
// the learner is expected to answer in.
type Quiz struct {
	ID               string `json:"id"`
	Prompt           string `json:"prompt"`
	Answer           string `json:"answer,omitempty"`
	ExpectedLanguage string `json:"expected_language"`
}

// Task is a bilingual production exercise graded against ExpectedOutput.
type Task struct {
	ID             string `json:"id"`
	PromptEs       string `json:"prompt_es"`
	PromptEn       string `json:"prompt_en"`
	ExpectedOutput string `json:"expected_output"`
}

// Reflection is a bilingual end-of-lesson reflection prompt.
type Reflection struct {
	ID string `json:"id"`
	Es string `json:"es"`
	En string `json:"en"`
}

// Starter is a bilingual conversation opener pushed by the scheduled
// broadcast for one slot of the day.
type Starter struct {
	Slot string `json:"slot"`
	Es   string `json:"es"`
	En   string `json:"en"`
}

// Playbook is one content bank file. Multiple banks are concatenated in
// load order into a single lesson chain; ids are unique across banks.
type Playbook struct {
	LessonPlans []LessonPlan `json:"lesson_plans"`
	Openers     []Opener     `json:"openers"`
	Quizzes     []Quiz       `json:"quizzes"`
	Tasks       []Task       `json:"tasks"`
	Reflections []Reflection `json:"reflections"`
	Starters    []Starter    `json:"starters,omitempty"`
}
