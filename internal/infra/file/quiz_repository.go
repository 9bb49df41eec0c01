package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"quizboard-service/internal/domain"
)

// QuizRepository serves quizzes from a directory of CSV files. The file name is
// the quiz id; expected columns are Category, Value, Question, Answer.
type QuizRepository struct {
	dir string
}

func NewQuizRepository(dir string) *QuizRepository {
	return &QuizRepository{dir: dir}
}

func (r *QuizRepository) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	quizzes := []domain.Quiz{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		quizzes = append(quizzes, domain.Quiz{
			ID:   entry.Name(),
			Name: strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
		})
	}
	return quizzes, nil
}

func (r *QuizRepository) LoadQuiz(_ context.Context, quizID string) (domain.QuizContent, error) {
	if quizID == "" || quizID != filepath.Base(quizID) {
		return domain.QuizContent{}, domain.ErrQuizNotFound
	}
	name := quizID
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		name += ".csv"
	}

	f, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.QuizContent{}, domain.ErrQuizNotFound
		}
		return domain.QuizContent{}, fmt.Errorf("open quiz %s: %w", quizID, err)
	}
	defer f.Close()

	questions, err := parseQuestions(f)
	if err != nil {
		return domain.QuizContent{}, fmt.Errorf("quiz %s: %w", quizID, err)
	}
	return domain.QuizContent{
		Quiz:      domain.Quiz{ID: quizID, Name: strings.TrimSuffix(name, filepath.Ext(name))},
		Questions: questions,
	}, nil
}

func parseQuestions(src io.Reader) ([]domain.Question, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var questions []domain.Question
	var problems []string
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		category := strings.TrimSpace(row[cols.category])
		rawValue := strings.TrimSpace(row[cols.value])
		prompt := strings.TrimSpace(row[cols.question])
		answer := strings.TrimSpace(row[cols.answer])
		if category == "" || rawValue == "" || prompt == "" || answer == "" {
			problems = append(problems, fmt.Sprintf("line %d: missing required fields", line))
			continue
		}
		value, err := strconv.Atoi(rawValue)
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: value %q is not a number", line, rawValue))
			continue
		}

		questions = append(questions, domain.Question{
			Category: category,
			Value:    value,
			Prompt:   prompt,
			Answer:   answer,
		})
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("csv validation failed: %s", strings.Join(problems, "; "))
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}

type columns struct {
	category, value, question, answer int
}

func columnIndex(header []string) (columns, error) {
	cols := columns{category: -1, value: -1, question: -1, answer: -1}
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "Category":
			cols.category = i
		case "Value":
			cols.value = i
		case "Question":
			cols.question = i
		case "Answer":
			cols.answer = i
		}
	}
	if cols.category < 0 || cols.value < 0 || cols.question < 0 || cols.answer < 0 {
		return cols, fmt.Errorf("invalid csv header, required columns: Category, Value, Question, Answer")
	}
	return cols, nil
}
