package analysis

// Sub-score buckets. Each fluency sub-score is one of 25, 20, 15 or 10.
const (
	bucketExcellent = 25
	bucketGood      = 20
	bucketFair      = 15
	bucketWeak      = 10
)

// responseTimeScore buckets the average response delay in seconds. Without
// samples the score is neutral.
func responseTimeScore(avg float64, samples int) int {
	switch {
	case samples == 0:
		return bucketFair
	case avg <= 3:
		return bucketExcellent
	case avg <= 6:
		return bucketGood
	case avg <= 10:
		return bucketFair
	default:
		return bucketWeak
	}
}

func messageLengthScore(avgWords float64) int {
	switch {
	case avgWords >= 10:
		return bucketExcellent
	case avgWords >= 7:
		return bucketGood
	case avgWords >= 4:
		return bucketFair
	default:
		return bucketWeak
	}
}

func fillerScore(pct float64) int {
	switch {
	case pct <= 2:
		return bucketExcellent
	case pct <= 5:
		return bucketGood
	case pct <= 10:
		return bucketFair
	default:
		return bucketWeak
	}
}

func paceScore(perMinute float64) int {
	switch {
	case perMinute >= 3:
		return bucketExcellent
	case perMinute >= 2:
		return bucketGood
	case perMinute >= 1:
		return bucketFair
	default:
		return bucketWeak
	}
}

func scoreFluency(m Metrics) Fluency {
	f := Fluency{
		ResponseTime:  responseTimeScore(m.ResponseTimeAvg, m.ResponseTimeSamples),
		MessageLength: messageLengthScore(m.AverageResponseLength),
		FillerWords:   fillerScore(m.FillerWordPercentage),
		Pace:          paceScore(m.MessagesPerMinute),
	}
	f.Total = f.ResponseTime + f.MessageLength + f.FillerWords + f.Pace
	return f
}

func depthOf(avgWords float64) (Depth, int) {
	switch {
	case avgWords < 8:
		return DepthShallow, 5
	case avgWords < 15:
		return DepthModerate, 12
	default:
		return DepthDeep, 20
	}
}

func scoreEngagement(m Metrics) Engagement {
	e := Engagement{
		Questions: min(m.Questions*10, 30),
		FollowUps: min(m.FollowUps*10, 30),
		Messages:  min(m.UserMessages*2, 20),
	}
	e.Depth, e.DepthPts = depthOf(m.AverageResponseLength)
	e.Total = min(e.Questions+e.FollowUps+e.Messages+e.DepthPts, 100)
	return e
}

// commentary derives fixed feedback lines from the same thresholds as the
// scores.
func commentary(m Metrics, f Fluency, e Engagement) (feedback, strengths, improvements []string) {
	switch {
	case f.Total >= 85:
		feedback = append(feedback, "Excellent fluency. You kept the conversation flowing naturally.")
	case f.Total >= 70:
		feedback = append(feedback, "Good fluency overall, with a few areas to polish.")
	case f.Total >= 55:
		feedback = append(feedback, "Fair fluency. Focus on the improvement areas below.")
	default:
		feedback = append(feedback, "Keep practising. Fluency improves quickly with regular sessions.")
	}
	switch e.Depth {
	case DepthDeep:
		feedback = append(feedback, "Your answers were detailed and well developed.")
	case DepthModerate:
		feedback = append(feedback, "Your answers had reasonable detail.")
	default:
		feedback = append(feedback, "Your answers were brief. Try adding examples and reasons.")
	}

	if m.ResponseTimeSamples > 0 {
		switch f.ResponseTime {
		case bucketExcellent:
			strengths = append(strengths, "Quick, confident responses")
		case bucketWeak:
			improvements = append(improvements, "Try to respond a little sooner; a short pause is fine, long silences break the flow")
		}
	}
	switch f.MessageLength {
	case bucketExcellent:
		strengths = append(strengths, "Well-developed answers")
	case bucketFair, bucketWeak:
		improvements = append(improvements, "Expand your answers with details or examples")
	}
	switch f.FillerWords {
	case bucketExcellent:
		strengths = append(strengths, "Clear speech with very few filler words")
	case bucketFair, bucketWeak:
		improvements = append(improvements, "Reduce filler words such as \"um\", \"like\" and \"you know\"")
	}
	switch f.Pace {
	case bucketExcellent:
		strengths = append(strengths, "Kept an active conversational pace")
	case bucketWeak:
		improvements = append(improvements, "Engage more often to keep the conversation moving")
	}
	if m.Questions > 0 {
		strengths = append(strengths, "Asked questions to engage your partner")
	} else {
		improvements = append(improvements, "Ask your partner a question to show interest")
	}
	if m.FollowUps > 0 {
		strengths = append(strengths, "Elaborated with follow-up detail")
	}
	return feedback, strengths, improvements
}
