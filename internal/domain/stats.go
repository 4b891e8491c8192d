package domain

import (
	"math"
	"sort"
)

// ComputePlayerStats summarizes a player's results. score is the client's
// running score; response times only count entries with both timestamps.
func ComputePlayerStats(results []PlayerResult, score int) PlayerStats {
	stats := PlayerStats{QuestionsAnswered: len(results), Score: score}

	var total float64
	timed := 0
	for _, r := range results {
		if r.Correct {
			stats.CorrectAnswers++
		}
		if !r.QuestionStartedAt.IsZero() && !r.AnsweredAt.IsZero() {
			total += r.AnsweredAt.Sub(r.QuestionStartedAt).Seconds()
			timed++
		}
	}
	stats.IncorrectAnswers = stats.QuestionsAnswered - stats.CorrectAnswers
	if timed > 0 {
		stats.AverageResponseTime = math.Round(total/float64(timed)*10) / 10
	}
	return stats
}

// RankPlayers scores each player by correct answers, highest first. Ties keep
// name order.
func RankPlayers(players []SessionPlayer) []PlayerRanking {
	rankings := make([]PlayerRanking, 0, len(players))
	for _, p := range players {
		name := p.Name
		if name == "" {
			name = "Anonymous"
		}
		score := 0
		for _, a := range p.Answers {
			if a.Correct {
				score++
			}
		}
		rankings = append(rankings, PlayerRanking{PlayerID: p.ID, Name: name, Score: score})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].Score != rankings[j].Score {
			return rankings[i].Score > rankings[j].Score
		}
		return rankings[i].Name < rankings[j].Name
	})
	return rankings
}
