package conversation

import "testing"

func TestEndingDetector_Match(t *testing.T) {
	t.Parallel()

	d := EndingDetector{MinMessages: 6}
	tests := []struct {
		name  string
		reply string
		n     int
		want  bool
	}{
		{"strong phrase", "Thank you, have a great day!", 2, true},
		{"question", "What is your experience with distributed systems?", 2, false},
		{"goodbye", "Alright. Goodbye!", 1, true},
		{"take care mixed case", "TAKE CARE, and see you soon.", 3, true},
		{"weak phrase early", "Thanks for your time.", 3, false},
		{"weak phrase late", "Thanks for your time.", 8, true},
		{"weak phrase at threshold", "Good luck with the launch.", 6, true},
		{"no word-boundary match", "The byte order matters here.", 10, false},
		{"goodbye inside word", "He said goodbyes were hard.", 10, false},
		{"empty", "", 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := d.Match(tt.reply, tt.n); got != tt.want {
				t.Errorf("Match(%q, %d) = %v, want %v", tt.reply, tt.n, got, tt.want)
			}
		})
	}
}

func TestEndingDetector_DefaultThreshold(t *testing.T) {
	t.Parallel()

	var d EndingDetector
	if d.Match("Best of luck!", DefaultMinMessages-1) {
		t.Error("weak phrase matched below the default threshold")
	}
	if !d.Match("Best of luck!", DefaultMinMessages) {
		t.Error("weak phrase did not match at the default threshold")
	}
}
