package domain

import "time"

// Difficulty is the tier of a quiz; it scales the point value of a result.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Question models an MCQ question with at least one correct option.
type Question struct {
	Text        string   `json:"text"`
	Options     []Option `json:"options"`
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is an ordered collection of questions played against a countdown.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`
	DurationMinutes int        `json:"duration"`
	Questions       []Question `json:"questions"`
	CreatorID       string     `json:"creator,omitempty"`
}

// DurationSeconds is the countdown length of a session on this quiz.
func (q Quiz) DurationSeconds() int {
	return q.DurationMinutes * 60
}

// Answer is a committed choice for one question.
type Answer struct {
	QuestionIndex    int  `json:"questionIndex"`
	OptionIndex      int  `json:"selectedOptionIndex"`
	Correct          bool `json:"isCorrect"`
	TimeSpentSeconds int  `json:"timeSpent"`
}

// Result summarizes a completed session.
type Result struct {
	ScorePercent              int `json:"score"`
	CorrectCount              int `json:"correctAnswers"`
	IncorrectCount            int `json:"incorrectAnswers"`
	TotalQuestions            int `json:"totalQuestions"`
	TimeSpentSeconds          int `json:"timeSpent"`
	AverageSecondsPerQuestion int `json:"averageTimePerQuestion"`
	Points                    int `json:"totalPoints"`
}

// CategoryStats accumulates the scores a user obtained in a single category.
type CategoryStats struct {
	QuizzesTaken int `json:"quizzesTaken"`
	ScoreSum     int `json:"scoreSum"`
}

// ProfileStats are the running statistics of a user.
type ProfileStats struct {
	TotalQuizzesTaken   int                      `json:"totalQuizzesTaken"`
	TotalQuestions      int                      `json:"totalQuestions"`
	TotalCorrectAnswers int                      `json:"totalCorrectAnswers"`
	AverageScore        float64                  `json:"averageScore"`
	QuizStreak          int                      `json:"quizStreak"`
	LastQuizDate        time.Time                `json:"lastQuizDate,omitempty"`
	BestCategory        string                   `json:"bestCategory,omitempty"`
	Categories          map[string]CategoryStats `json:"categories,omitempty"`
}

// HistoryEntry is one completed quiz in a user's history.
type HistoryEntry struct {
	QuizID           string     `json:"quizId"`
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	Score            int        `json:"score"`
	TotalQuestions   int        `json:"totalQuestions"`
	CorrectAnswers   int        `json:"correctAnswers"`
	TimeTakenSeconds int        `json:"timeTaken"`
	Points           int        `json:"points"`
	CompletedAt      time.Time  `json:"completedAt"`
}

// Achievement is an earned badge. Once stored it is never modified.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Earned      bool      `json:"earned"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// Profile is the persistent per-user aggregate.
type Profile struct {
	UserID       string         `json:"userId"`
	Stats        ProfileStats   `json:"stats"`
	History      []HistoryEntry `json:"quizHistory"`
	Achievements []Achievement  `json:"achievements"`
	Version      int64          `json:"-"`
}

// LeaderboardEntry is the standing of one user on one board.
type LeaderboardEntry struct {
	UserID       string    `json:"userId"`
	QuizzesTaken int       `json:"quizzesTaken"`
	AverageScore float64   `json:"averageScore"`
	TotalPoints  int       `json:"totalPoints"`
	Rank         int       `json:"rank"`
	LastActive   time.Time `json:"lastActive"`
	Seq          int64     `json:"seq"`
}

// Board is a ranked collection of entries scoped to a category or to the whole platform.
type Board struct {
	Key       string             `json:"key"`
	Category  string             `json:"category,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	NextSeq   int64              `json:"nextSeq"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Version   int64              `json:"-"`
}

// Entry returns the entry of userID, if any.
func (b Board) Entry(userID string) (LeaderboardEntry, bool) {
	for _, e := range b.Entries {
		if e.UserID == userID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}
