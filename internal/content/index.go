package content

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Broadcast slots recognized by StarterFor.
const (
	SlotMorning = "morning"
	SlotNoon    = "noon"
	SlotEvening = "evening"
)

// Lookup errors.
var (
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrOpenerNotFound     = errors.New("opener not found")
	ErrReflectionNotFound = errors.New("reflection not found")
	ErrInvalidSlot        = errors.New("invalid broadcast slot")
	ErrEmptyBank          = errors.New("content bank is empty")
)

// Index is a read-only lookup over the flattened content banks.
// The random source is injectable so content selection is deterministic
// under test. Index is safe for concurrent use after construction; the
// generator is guarded internally.
type Index struct {
	lessonOrder []string
	lessons     map[string]*LessonPlan
	openers     map[string]*Opener
	quizzes     map[string]*Quiz
	tasks       map[string]*Task
	reflections map[string]*Reflection
	starters    map[string]*Starter

	quizOrder []string
	taskOrder []string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// pick returns a random int in [0, n). rand.Rand is not safe for
// concurrent use, so all draws go through the mutex.
func (idx *Index) pick(n int) int {
	idx.rngMu.Lock()
	defer idx.rngMu.Unlock()
	return idx.rng.Intn(n)
}

// NewIndex builds an index over the given playbooks, concatenated in order.
// Pass a nil source to use a time-seeded one.
func NewIndex(playbooks []Playbook, src rand.Source) (*Index, error) {
	idx := &Index{
		lessons:     make(map[string]*LessonPlan),
		openers:     make(map[string]*Opener),
		quizzes:     make(map[string]*Quiz),
		tasks:       make(map[string]*Task),
		reflections: make(map[string]*Reflection),
		starters:    defaultStarters(),
	}

	for _, pb := range playbooks {
		for i := range pb.LessonPlans {
			l := pb.LessonPlans[i]
			if _, dup := idx.lessons[l.ID]; dup {
				return nil, fmt.Errorf("duplicate lesson id %q", l.ID)
			}
			idx.lessons[l.ID] = &l
			idx.lessonOrder = append(idx.lessonOrder, l.ID)
		}
		for i := range pb.Openers {
			o := pb.Openers[i]
			idx.openers[o.ID] = &o
		}
		for i := range pb.Quizzes {
			q := pb.Quizzes[i]
			idx.quizzes[q.ID] = &q
			idx.quizOrder = append(idx.quizOrder, q.ID)
		}
		for i := range pb.Tasks {
			tk := pb.Tasks[i]
			idx.tasks[tk.ID] = &tk
			idx.taskOrder = append(idx.taskOrder, tk.ID)
		}
		for i := range pb.Reflections {
			r := pb.Reflections[i]
			idx.reflections[r.ID] = &r
		}
		for i := range pb.Starters {
			s := pb.Starters[i]
			idx.starters[s.Slot] = &s
		}
	}

	if len(idx.lessonOrder) == 0 {
		return nil, fmt.Errorf("no lesson plans: %w", ErrEmptyBank)
	}

	if src == nil {
		idx.rng = rand.New(rand.NewSource(rand.Int63()))
	} else {
		idx.rng = rand.New(src)
	}

	return idx, nil
}

// FirstLessonID returns the first lesson in the flattened chain.
func (idx *Index) FirstLessonID() string {
	return idx.lessonOrder[0]
}

// FindLesson resolves a lesson id.
func (idx *Index) FindLesson(id string) (*LessonPlan, error) {
	l, ok := idx.lessons[id]
	if !ok {
		return nil, fmt.Errorf("lesson %q: %w", id, ErrLessonNotFound)
	}
	return l, nil
}

// HasLesson reports whether a lesson id resolves.
func (idx *Index) HasLesson(id string) bool {
	_, ok := idx.lessons[id]
	return ok
}

// NextLessonID returns the successor of id in the flattened chain, or id
// itself when id is the last lesson. Progression stalls at the end of the
// chain rather than erroring.
func (idx *Index) NextLessonID(id string) string {
	for i, lid := range idx.lessonOrder {
		if lid == id && i < len(idx.lessonOrder)-1 {
			return idx.lessonOrder[i+1]
		}
	}
	return id
}

// RandomQuiz picks a quiz uniformly over the full flattened bank.
func (idx *Index) RandomQuiz() (*Quiz, error) {
	if len(idx.quizOrder) == 0 {
		return nil, fmt.Errorf("quizzes: %w", ErrEmptyBank)
	}
	return idx.quizzes[idx.quizOrder[idx.pick(len(idx.quizOrder))]], nil
}

// RandomTask picks a task uniformly over the full flattened bank.
func (idx *Index) RandomTask() (*Task, error) {
	if len(idx.taskOrder) == 0 {
		return nil, fmt.Errorf("tasks: %w", ErrEmptyBank)
	}
	return idx.tasks[idx.taskOrder[idx.pick(len(idx.taskOrder))]], nil
}

// QuizByID resolves a quiz id.
func (idx *Index) QuizByID(id string) (*Quiz, error) {
	q, ok := idx.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz %q: %w", id, ErrQuizNotFound)
	}
	return q, nil
}

// TaskByID resolves a task id.
func (idx *Index) TaskByID(id string) (*Task, error) {
	t, ok := idx.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	return t, nil
}

// OpenerOf resolves the warmup opener of a lesson.
func (idx *Index) OpenerOf(lesson *LessonPlan) (*Opener, error) {
	o, ok := idx.openers[lesson.WarmupRef]
	if !ok {
		return nil, fmt.Errorf("opener %q: %w", lesson.WarmupRef, ErrOpenerNotFound)
	}
	return o, nil
}

// ReflectionOf resolves the reflection of a lesson.
func (idx *Index) ReflectionOf(lesson *LessonPlan) (*Reflection, error) {
	r, ok := idx.reflections[lesson.ReflectRef]
	if !ok {
		return nil, fmt.Errorf("reflection %q: %w", lesson.ReflectRef, ErrReflectionNotFound)
	}
	return r, nil
}

// StarterFor returns the conversation starter for a broadcast slot.
// Unknown slots are a distinct outcome, never a silent no-op.
func (idx *Index) StarterFor(slot string) (*Starter, error) {
	s, ok := idx.starters[slot]
	if !ok {
		return nil, fmt.Errorf("slot %q: %w", slot, ErrInvalidSlot)
	}
	return s, nil
}

// defaultStarters is the built-in starter bank; playbook files may
// override individual slots.
func defaultStarters() map[string]*Starter {
	return map[string]*Starter{
		SlotMorning: {Slot: SlotMorning, Es: "¿Qué desayunaste hoy? 🌞", En: "What did you have for breakfast today? 🌞"},
		SlotNoon:    {Slot: SlotNoon, Es: "Háblame de tu familia 👨‍👩‍👧", En: "Tell me about your family 👨‍👩‍👧"},
		SlotEvening: {Slot: SlotEvening, Es: "¿Te gusta ver películas? 🎬", En: "Do you like watching movies? 🎬"},
	}
}
