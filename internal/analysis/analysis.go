// Package analysis scores a finished practice conversation.
//
// [Analyze] is a pure function of the session record and its transcript.
// It has no side effects and returns the same result for the same input,
// so results are recomputed on demand rather than stored.
package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/MrWong99/parley/pkg/types"
)

const (
	minResponseTime = 1 * time.Second
	maxResponseTime = 60 * time.Second

	// followUpWords is the length from which a user message counts as an
	// elaborated follow-up.
	followUpWords = 20
)

// Depth buckets the average length of the user's messages.
type Depth string

const (
	DepthShallow  Depth = "shallow"
	DepthModerate Depth = "moderate"
	DepthDeep     Depth = "deep"
)

// Metrics are the raw measurements a score is derived from.
type Metrics struct {
	UserMessages int `json:"userMessages"`
	TotalWords   int `json:"totalWords"`

	// WordCounts holds the word count of each user message in order.
	WordCounts []int `json:"wordCounts"`

	// ResponseTimeAvg is the mean delay in seconds between a partner line
	// and the user's answer, over samples between 1s and 60s.
	ResponseTimeAvg     float64 `json:"responseTimeAvg"`
	ResponseTimeSamples int     `json:"responseTimeSamples"`

	AverageResponseLength float64        `json:"averageResponseLength"`
	FillerWords           int            `json:"fillerWords"`
	FillerWordPercentage  float64        `json:"fillerWordPercentage"`
	FillerBreakdown       map[string]int `json:"fillerBreakdown,omitempty"`
	MessagesPerMinute     float64        `json:"messagesPerMinute"`

	Questions int `json:"questions"`
	FollowUps int `json:"followUps"`
}

// Fluency is the 100-point fluency score and its four sub-scores.
type Fluency struct {
	ResponseTime  int `json:"responseTime"`
	MessageLength int `json:"messageLength"`
	FillerWords   int `json:"fillerWords"`
	Pace          int `json:"pace"`
	Total         int `json:"total"`
}

// Engagement is the 100-point engagement score.
type Engagement struct {
	Questions int   `json:"questions"`
	FollowUps int   `json:"followUps"`
	Messages  int   `json:"messages"`
	Depth     Depth `json:"depth"`
	DepthPts  int   `json:"depthPoints"`
	Total     int   `json:"total"`
}

// Result is the analysis of one session.
type Result struct {
	SessionID    string     `json:"sessionId"`
	Metrics      Metrics    `json:"metrics"`
	Fluency      Fluency    `json:"fluency"`
	Engagement   Engagement `json:"engagement"`
	Feedback     []string   `json:"feedback"`
	Strengths    []string   `json:"strengths"`
	Improvements []string   `json:"improvements"`
}

// Analyze scores transcript, which belongs to session. The session supplies
// the ID and the active duration used for pace.
func Analyze(session types.Session, transcript []types.ConversationMessage) Result {
	m := measure(session, transcript)
	fl := scoreFluency(m)
	en := scoreEngagement(m)
	r := Result{
		SessionID:  session.ID,
		Metrics:    m,
		Fluency:    fl,
		Engagement: en,
	}
	r.Feedback, r.Strengths, r.Improvements = commentary(m, fl, en)
	return r
}

func measure(session types.Session, transcript []types.ConversationMessage) Metrics {
	var (
		m        Metrics
		rtTotal  time.Duration
		lastPeer *types.ConversationMessage
	)
	m.FillerBreakdown = make(map[string]int)
	m.WordCounts = []int{}

	for i := range transcript {
		msg := &transcript[i]
		switch msg.Role {
		case types.RoleAssistant:
			lastPeer = msg
		case types.RoleUser:
			m.UserMessages++
			ws := words(msg.Content)
			m.TotalWords += len(ws)
			m.WordCounts = append(m.WordCounts, len(ws))
			n, per := countFillers(ws)
			m.FillerWords += n
			for k, v := range per {
				m.FillerBreakdown[k] += v
			}
			if isQuestion(msg.Content, ws) {
				m.Questions++
			}
			if len(ws) > followUpWords {
				m.FollowUps++
			}
			if lastPeer != nil {
				d := msg.Timestamp.Sub(lastPeer.Timestamp)
				if d >= minResponseTime && d <= maxResponseTime {
					rtTotal += d
					m.ResponseTimeSamples++
				}
				lastPeer = nil
			}
		}
	}

	if m.ResponseTimeSamples > 0 {
		m.ResponseTimeAvg = round2(rtTotal.Seconds() / float64(m.ResponseTimeSamples))
	}
	if m.UserMessages > 0 {
		m.AverageResponseLength = round2(float64(m.TotalWords) / float64(m.UserMessages))
	}
	if m.TotalWords > 0 {
		m.FillerWordPercentage = round2(float64(m.FillerWords) / float64(m.TotalWords) * 100)
	}
	if minutes := activeMinutes(session, transcript); minutes > 0 {
		m.MessagesPerMinute = round2(float64(m.UserMessages) / minutes)
	}
	if len(m.FillerBreakdown) == 0 {
		m.FillerBreakdown = nil
	}
	return m
}

// activeMinutes prefers the recorded session duration and falls back to
// the span of the transcript.
func activeMinutes(session types.Session, transcript []types.ConversationMessage) float64 {
	if session.Duration > 0 {
		return session.Duration / 60
	}
	if len(transcript) < 2 {
		return 0
	}
	return transcript[len(transcript)-1].Timestamp.Sub(transcript[0].Timestamp).Minutes()
}

var questionOpeners = map[string]bool{
	"what": true, "why": true, "how": true, "when": true, "where": true,
	"who": true, "which": true, "can": true, "could": true, "would": true,
	"should": true, "do": true, "does": true, "did": true, "is": true,
	"are": true,
}

// isQuestion accepts a question mark or, for unpunctuated transcripts, an
// interrogative first word.
func isQuestion(text string, ws []string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	return len(ws) > 0 && questionOpeners[ws[0]]
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
