package recommend

// EmotionStat counts finalized sessions per representative emotion.
type EmotionStat struct {
	Emotion string `json:"rep_emotion"`
	Count   int    `json:"count"`
}

// MovieStat counts how often a title was recommended.
type MovieStat struct {
	Movie string `json:"movie"`
	Count int    `json:"count"`
}
