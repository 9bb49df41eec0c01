package domain

import (
	"fmt"
	"sort"
)

// Board is the category x value grid for the active quiz. Categories keep the
// order they were first seen in the source; questions within a category are
// ordered by ascending value.
type Board struct {
	Categories []string
	ByCategory map[string][]*QuestionRecord
}

// NewBoard builds a board from loaded questions. It rejects empty input,
// duplicate (category, value) cells, and categories whose value ladders differ.
func NewBoard(questions []Question) (*Board, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	b := &Board{ByCategory: make(map[string][]*QuestionRecord)}
	for _, q := range questions {
		if _, seen := b.ByCategory[q.Category]; !seen {
			b.Categories = append(b.Categories, q.Category)
		}
		for _, existing := range b.ByCategory[q.Category] {
			if existing.Value == q.Value {
				return nil, fmt.Errorf("%w: duplicate question %s/%d", ErrMalformedQuiz, q.Category, q.Value)
			}
		}
		b.ByCategory[q.Category] = append(b.ByCategory[q.Category], &QuestionRecord{Question: q})
	}

	for _, category := range b.Categories {
		records := b.ByCategory[category]
		sort.Slice(records, func(i, j int) bool { return records[i].Value < records[j].Value })
	}

	ladder := valueLadder(b.ByCategory[b.Categories[0]])
	for _, category := range b.Categories[1:] {
		if valueLadder(b.ByCategory[category]) != ladder {
			return nil, fmt.Errorf("%w: category %q has a different value ladder", ErrMalformedQuiz, category)
		}
	}
	return b, nil
}

// Find returns the record at category/value, or nil if the cell does not exist.
func (b *Board) Find(category string, value int) *QuestionRecord {
	for _, record := range b.ByCategory[category] {
		if record.Value == value {
			return record
		}
	}
	return nil
}

// AllAnswered reports whether every cell on the board has been played.
func (b *Board) AllAnswered() bool {
	for _, records := range b.ByCategory {
		for _, record := range records {
			if !record.Answered {
				return false
			}
		}
	}
	return true
}

func valueLadder(records []*QuestionRecord) string {
	ladder := ""
	for _, record := range records {
		ladder += fmt.Sprintf("%d,", record.Value)
	}
	return ladder
}
