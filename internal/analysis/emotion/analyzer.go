package emotion

import (
	"sort"
	"strings"
)

// Label 表示推荐流程使用的代表情绪。
type Label string

const (
	Neutral    Label = ""
	Anger      Label = "분노"
	Anxiety    Label = "불안"
	Sadness    Label = "슬픔"
	Loneliness Label = "외로움"
	Boredom    Label = "심심"
	Curiosity  Label = "탐구"
	Happiness  Label = "행복"
)

// Labels lists every non-neutral label. Ties are broken in this order.
func Labels() []Label {
	return []Label{Anger, Anxiety, Sadness, Loneliness, Boredom, Curiosity, Happiness}
}

// Decision 给出情绪识别结果。
type Decision struct {
	Emotion Label
	Score   int
}

// keywordWeight is added once per matched keyword.
const keywordWeight = 3

var keywordBuckets = map[Label][]string{
	Anger: {
		"화나", "화가", "짜증", "열받", "빡치", "빡쳐", "분노", "억울", "어이없", "미치겠", "싸웠", "싸움",
		"angry", "furious", "mad", "annoyed", "pissed",
	},
	Anxiety: {
		"불안", "걱정", "긴장", "초조", "무서", "두려", "떨려", "떨리", "시험", "면접", "발표", "조마조마",
		"nervous", "anxious", "worried", "scared",
	},
	Sadness: {
		"슬퍼", "슬프", "우울", "눈물", "울었", "울고", "속상", "힘들", "지쳤", "지친", "상처", "이별", "헤어",
		"sad", "depressed", "upset", "cry", "hurt",
	},
	Loneliness: {
		"외로", "혼자", "쓸쓸", "그리워", "그립", "보고싶", "보고 싶", "허전", "아무도", "친구가 없",
		"lonely", "alone", "miss you",
	},
	Boredom: {
		"심심", "지루", "따분", "할 게 없", "할게 없", "할 일이 없", "뭐하지", "무료", "귀찮",
		"bored", "boring", "nothing to do",
	},
	Curiosity: {
		"궁금", "알고 싶", "알고싶", "신기", "왜 그런", "배우", "공부", "탐구", "미스터리", "호기심", "새로운",
		"curious", "wonder", "interesting",
	},
	Happiness: {
		"행복", "기뻐", "기쁘", "좋아", "신나", "설레", "최고", "즐거", "웃겨", "재밌", "감사", "ㅋㅋ", "ㅎㅎ",
		"happy", "great", "awesome", "love", "excited",
	},
}

var punctuationBoost = map[string]Label{
	"!": Happiness,
	"?": Curiosity,
}

// Scores accumulates evidence per label.
type Scores map[Label]int

// Score counts keyword and punctuation evidence in text.
func Score(text string) Scores {
	normalized := strings.TrimSpace(strings.ToLower(text))
	scores := make(Scores)
	if normalized == "" {
		return scores
	}

	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += keywordWeight
			}
		}
	}

	// Punctuation only tips the balance when a keyword already matched.
	if len(scores) > 0 {
		for mark, label := range punctuationBoost {
			if strings.Contains(text, mark) {
				scores[label]++
			}
		}
	}
	return scores
}

// Add merges other into s.
func (s Scores) Add(other Scores) {
	for label, v := range other {
		s[label] += v
	}
}

// Ranked returns the labels with a positive score, best first.
func (s Scores) Ranked() []Decision {
	ranked := make([]Decision, 0, len(s))
	for _, label := range Labels() {
		if v := s[label]; v > 0 {
			ranked = append(ranked, Decision{Emotion: label, Score: v})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// Top returns the dominant emotion and, when a distinct runner-up carries at least half
// of its score, the secondary one. Missing results are Neutral.
func (s Scores) Top() (primary, secondary Decision) {
	ranked := s.Ranked()
	if len(ranked) == 0 {
		return Decision{Emotion: Neutral}, Decision{Emotion: Neutral}
	}
	primary = ranked[0]
	secondary = Decision{Emotion: Neutral}
	if len(ranked) > 1 && ranked[1].Score*2 >= primary.Score {
		secondary = ranked[1]
	}
	return primary, secondary
}

// Analyze 根据一句用户话语推断情绪。
func Analyze(text string) Decision {
	primary, _ := Score(text).Top()
	return primary
}
